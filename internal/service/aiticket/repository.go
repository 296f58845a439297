package aiticket

import (
	"context"
	"errors"
	"fmt"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTriggerNotFound = errors.New("aiticket repository: trigger not found")

type TriggerRepository interface {
	CreateTrigger(ctx context.Context, trigger model.Trigger) error
	GetTrigger(ctx context.Context, id string) (model.Trigger, error)
	ListTriggers(ctx context.Context, tenantID string) ([]model.Trigger, error)
	DeleteTrigger(ctx context.Context, id string) error
}

type TriggerRepositoryFactory func(ctx context.Context, tenantID string) (TriggerRepository, error)

func NewPgxTriggerFactory(registry *database.Registry) TriggerRepositoryFactory {
	return func(ctx context.Context, tenantID string) (TriggerRepository, error) {
		conn, err := registry.Acquire(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return &PgxTriggerRepository{pool: conn.Pool()}, nil
	}
}

type PgxTriggerRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTriggerRepository(pool *pgxpool.Pool) *PgxTriggerRepository {
	return &PgxTriggerRepository{pool: pool}
}

func (r *PgxTriggerRepository) CreateTrigger(ctx context.Context, t model.Trigger) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ai_ticket_trigger (id, tenant_id, keyword, intent, assigned_role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.TenantID, t.Keyword, t.Intent, t.AssignedRole, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	return nil
}

func (r *PgxTriggerRepository) GetTrigger(ctx context.Context, id string) (model.Trigger, error) {
	var t model.Trigger
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, keyword, intent, assigned_role, created_at
		 FROM ai_ticket_trigger WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.TenantID, &t.Keyword, &t.Intent, &t.AssignedRole, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Trigger{}, ErrTriggerNotFound
	}
	if err != nil {
		return model.Trigger{}, err
	}
	return t, nil
}

func (r *PgxTriggerRepository) ListTriggers(ctx context.Context, tenantID string) ([]model.Trigger, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, keyword, intent, assigned_role, created_at
		 FROM ai_ticket_trigger WHERE tenant_id = $1 ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []model.Trigger
	for rows.Next() {
		var t model.Trigger
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Keyword, &t.Intent, &t.AssignedRole, &t.CreatedAt); err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

func (r *PgxTriggerRepository) DeleteTrigger(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ai_ticket_trigger WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTriggerNotFound
	}
	return nil
}
