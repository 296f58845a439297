package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("conversation repository: not found")

// Repository is the persistence surface for one tenant's conversations and
// messages. Implementations are bound to a single tenant database.
type Repository interface {
	GetConversation(ctx context.Context, conversationID string) (model.Conversation, error)
	FindByContact(ctx context.Context, tenantID, contactNumber, platform string) (model.Conversation, error)
	CreateConversation(ctx context.Context, conv model.Conversation) error
	// SaveIncoming applies the inbound write set atomically: unread counter
	// increment, preview/timestamp update and the message insert.
	SaveIncoming(ctx context.Context, conversationID, preview string, at time.Time, msg model.Message) error
	// SaveOutgoing updates the preview and inserts the message atomically;
	// the unread counter is untouched for agent-sent messages.
	SaveOutgoing(ctx context.Context, conversationID, preview string, at time.Time, msg model.Message) error
	ListConversations(ctx context.Context, tenantID string, limit int) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string) error
}

// RepositoryFactory resolves the repository bound to a tenant's database.
// The default factory acquires the connection through the tenant registry.
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

const conversationColumns = `id, tenant_id, user_id, platform,
	COALESCE(contact_name, ''), COALESCE(contact_number, ''),
	unread_count, COALESCE(last_message, ''), last_message_at, started_at`

func scanConversation(row pgx.Row) (model.Conversation, error) {
	var conv model.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.UserID,
		&conv.Platform,
		&conv.ContactName,
		&conv.ContactNumber,
		&conv.UnreadCount,
		&conv.LastMessage,
		&conv.LastMessageAt,
		&conv.StartedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Conversation{}, ErrNotFound
		}
		return model.Conversation{}, err
	}
	return conv, nil
}

func (r *PgxRepository) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversation WHERE id = $1`,
		conversationID,
	)
	return scanConversation(row)
}

func (r *PgxRepository) FindByContact(ctx context.Context, tenantID, contactNumber, platform string) (model.Conversation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversation
		 WHERE tenant_id = $1 AND contact_number = $2 AND platform = $3
		 ORDER BY started_at DESC LIMIT 1`,
		tenantID, contactNumber, platform,
	)
	return scanConversation(row)
}

func (r *PgxRepository) CreateConversation(ctx context.Context, conv model.Conversation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation
			(id, tenant_id, user_id, platform, contact_name, contact_number, unread_count, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		conv.ID, conv.TenantID, conv.UserID, conv.Platform,
		conv.ContactName, conv.ContactNumber, conv.UnreadCount, conv.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (r *PgxRepository) SaveIncoming(ctx context.Context, conversationID, preview string, at time.Time, msg model.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE conversation
		 SET unread_count = unread_count + 1, last_message = $2, last_message_at = $3
		 WHERE id = $1`,
		conversationID, preview, at,
	); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgxRepository) SaveOutgoing(ctx context.Context, conversationID, preview string, at time.Time, msg model.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE conversation SET last_message = $2, last_message_at = $3 WHERE id = $1`,
		conversationID, preview, at,
	); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg model.Message) error {
	var mediaURL *string
	if msg.MediaURL != "" {
		mediaURL = &msg.MediaURL
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO message (id, conversation_id, sender, type, content, media_url, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Type, msg.Content, mediaURL, msg.IsRead, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *PgxRepository) ListConversations(ctx context.Context, tenantID string, limit int) ([]model.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversation
		 WHERE tenant_id = $1
		 ORDER BY last_message_at DESC NULLS LAST, started_at DESC
		 LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []model.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (r *PgxRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, sender, type, content, COALESCE(media_url, ''), is_read, created_at
		 FROM message
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Sender, &msg.Type,
			&msg.Content, &msg.MediaURL, &msg.IsRead, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *PgxRepository) MarkConversationRead(ctx context.Context, conversationID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE conversation SET unread_count = 0 WHERE id = $1`,
		conversationID,
	); err != nil {
		return fmt.Errorf("reset unread count: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE message SET is_read = true WHERE conversation_id = $1 AND sender = 'user'`,
		conversationID,
	); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return tx.Commit(ctx)
}
