package jwt

type Role int

const (
	RoleStaff Role = iota
	RoleGuest
)

// StaffClaims identifies an agent/staff member of one tenant. A staff
// credential only ever grants access to its own tenant's room.
type StaffClaims struct {
	UserID   string
	TenantID string
	Email    string
}

// GuestClaims identifies an external web-chat contact. A guest credential
// only ever grants access to its own conversation's room.
type GuestClaims struct {
	ConversationID string
	TenantID       string
	Name           string
}
