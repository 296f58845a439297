package directory

import (
	"context"
	"errors"

	"support-desk-backend/internal/model"
)

// ErrTenantNotFound is returned for lookups of tenants that were never
// registered. Callers surface it; nothing retries a miss.
var ErrTenantNotFound = errors.New("directory: tenant not found")

// Directory resolves tenant identifiers to their connection parameters and
// lists the staff members of a tenant. It is a pure lookup; both registries
// consume it.
type Directory interface {
	GetTenantRecord(ctx context.Context, tenantID string) (model.TenantRecord, error)
	ListMembers(ctx context.Context, tenantID string) ([]model.MemberItem, error)
}
