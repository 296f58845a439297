package ticket

import (
	"context"
	"errors"
	"fmt"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("ticket repository: not found")

type Repository interface {
	// CreateTicket inserts the ticket with the tenant's next sequential
	// number, computed by nextNumber from the most recently created
	// ticket's number (empty when the tenant has none). Allocation and
	// insert are atomic per tenant, so concurrent creates never share a
	// number.
	CreateTicket(ctx context.Context, ticket model.Ticket, nextNumber func(latest string) string) (model.Ticket, error)
	GetTicket(ctx context.Context, id string) (model.Ticket, error)
	GetTicketByConversation(ctx context.Context, conversationID string) (model.Ticket, error)
	ListTickets(ctx context.Context, tenantID string, filters Filters) ([]model.Ticket, error)
	UpdateTicket(ctx context.Context, ticket model.Ticket) error
}

// Filters narrows ticket listings. Zero values mean "all".
type Filters struct {
	Status         model.TicketStatus
	Priority       model.TicketPriority
	AssignedToID   string
	AssignedByType string
}

type RepositoryFactory func(ctx context.Context, tenantID string) (Repository, error)

func NewPgxFactory(registry *database.Registry) RepositoryFactory {
	return func(ctx context.Context, tenantID string) (Repository, error) {
		conn, err := registry.Acquire(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return &PgxRepository{pool: conn.Pool()}, nil
	}
}

type PgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) *PgxRepository {
	return &PgxRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, title, COALESCE(description, ''), priority, status,
	tenant_id, COALESCE(conversation_id::text, ''), COALESCE(assigned_to_id, ''),
	COALESCE(created_by_id, ''), assigned_by_type, COALESCE(assigned_by_id, ''),
	created_at, updated_at`

func scanTicket(row pgx.Row) (model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID, &t.TicketNumber, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.TenantID, &t.ConversationID, &t.AssignedToID,
		&t.CreatedByID, &t.AssignedByType, &t.AssignedByID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Ticket{}, ErrNotFound
		}
		return model.Ticket{}, err
	}
	return t, nil
}

func (r *PgxRepository) CreateTicket(ctx context.Context, t model.Ticket, nextNumber func(latest string) string) (model.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serializes number allocation for the tenant; the lock is released
	// when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, t.TenantID); err != nil {
		return model.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}

	var latest string
	err = tx.QueryRow(ctx,
		`SELECT ticket_number FROM ticket
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		t.TenantID,
	).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	t.TicketNumber = nextNumber(latest)

	var conversationID *string
	if t.ConversationID != "" {
		conversationID = &t.ConversationID
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO ticket
			(id, ticket_number, title, description, priority, status, tenant_id,
			 conversation_id, assigned_to_id, created_by_id, assigned_by_type,
			 assigned_by_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.TicketNumber, t.Title, t.Description, t.Priority, t.Status, t.TenantID,
		conversationID, nullable(t.AssignedToID), nullable(t.CreatedByID), t.AssignedByType,
		nullable(t.AssignedByID), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return t, nil
}

func (r *PgxRepository) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM ticket WHERE id = $1`, id)
	return scanTicket(row)
}

func (r *PgxRepository) GetTicketByConversation(ctx context.Context, conversationID string) (model.Ticket, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM ticket
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		conversationID,
	)
	return scanTicket(row)
}

func (r *PgxRepository) ListTickets(ctx context.Context, tenantID string, filters Filters) ([]model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM ticket WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Priority != "" {
		args = append(args, filters.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filters.AssignedToID != "" {
		args = append(args, filters.AssignedToID)
		query += fmt.Sprintf(" AND assigned_to_id = $%d", len(args))
	}
	if filters.AssignedByType != "" {
		args = append(args, filters.AssignedByType)
		query += fmt.Sprintf(" AND assigned_by_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *PgxRepository) UpdateTicket(ctx context.Context, t model.Ticket) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ticket
		 SET title = $2, description = $3, priority = $4, status = $5,
		     assigned_to_id = $6, assigned_by_type = $7, assigned_by_id = $8,
		     updated_at = $9
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Priority, t.Status,
		nullable(t.AssignedToID), t.AssignedByType, nullable(t.AssignedByID), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
