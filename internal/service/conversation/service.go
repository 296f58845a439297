package conversation

import (
	"context"
	"errors"
	"time"

	"support-desk-backend/internal/database"
	"support-desk-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeInternal   ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IncomingParams is a normalized inbound message ready for persistence.
// Preview is what the conversation list shows; Content is stored on the
// message itself (they differ for media captions).
type IncomingParams struct {
	TenantID      string
	ContactNumber string
	ContactName   string
	Platform      string
	Content       string
	Preview       string
	Type          string
}

type Service struct {
	repos RepositoryFactory
	now   func() time.Time
}

func New(registry *database.Registry) *Service {
	return &Service{
		repos: NewPgxFactory(registry),
		now:   time.Now,
	}
}

func NewWithFactory(repos RepositoryFactory, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repos: repos,
		now:   now,
	}
}

// RecordIncoming finds or creates the (tenant, contact, platform)
// conversation, applies the unread/preview/insert write set atomically and
// returns the updated conversation plus the stored message.
func (s *Service) RecordIncoming(ctx context.Context, params IncomingParams) (model.Conversation, model.Message, error) {
	if params.TenantID == "" || params.ContactNumber == "" {
		return model.Conversation{}, model.Message{}, newError(ErrorCodeValidation, "tenant and contact are required", nil)
	}

	repo, err := s.repos(ctx, params.TenantID)
	if err != nil {
		return model.Conversation{}, model.Message{}, err
	}

	now := s.now().UTC()

	conv, err := repo.FindByContact(ctx, params.TenantID, params.ContactNumber, params.Platform)
	if errors.Is(err, ErrNotFound) {
		conv = model.Conversation{
			ID:            uuid.NewString(),
			TenantID:      params.TenantID,
			UserID:        "guest",
			Platform:      params.Platform,
			ContactName:   params.ContactName,
			ContactNumber: params.ContactNumber,
			StartedAt:     now,
		}
		if err := repo.CreateConversation(ctx, conv); err != nil {
			return model.Conversation{}, model.Message{}, err
		}
	} else if err != nil {
		return model.Conversation{}, model.Message{}, err
	}

	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         model.SenderUser,
		Type:           params.Type,
		Content:        params.Content,
		IsRead:         false,
		CreatedAt:      now,
	}

	if err := repo.SaveIncoming(ctx, conv.ID, params.Preview, now, msg); err != nil {
		return model.Conversation{}, model.Message{}, err
	}

	conv.UnreadCount++
	conv.LastMessage = params.Preview
	conv.LastMessageAt = &now
	return conv, msg, nil
}

// RecordOutgoing persists an outbound message and refreshes the
// conversation preview. The sender distinguishes agent replies from
// automated ones; outbound messages are stored already-read.
func (s *Service) RecordOutgoing(ctx context.Context, tenantID, conversationID, sender, content, msgType, mediaURL string) (model.Conversation, model.Message, error) {
	if sender == "" {
		sender = model.SenderAgent
	}
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return model.Conversation{}, model.Message{}, err
	}

	conv, err := repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Conversation{}, model.Message{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.Conversation{}, model.Message{}, err
	}

	now := s.now().UTC()
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         sender,
		Type:           msgType,
		Content:        content,
		MediaURL:       mediaURL,
		IsRead:         true,
		CreatedAt:      now,
	}

	if err := repo.SaveOutgoing(ctx, conv.ID, content, now, msg); err != nil {
		return model.Conversation{}, model.Message{}, err
	}

	conv.LastMessage = content
	conv.LastMessageAt = &now
	return conv, msg, nil
}

func (s *Service) GetConversation(ctx context.Context, tenantID, conversationID string) (model.Conversation, error) {
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return model.Conversation{}, err
	}
	conv, err := repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Conversation{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.Conversation{}, err
	}
	return conv, nil
}

func (s *Service) ListConversations(ctx context.Context, tenantID string, limit int) ([]model.Conversation, error) {
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return repo.ListConversations(ctx, tenantID, limit)
}

func (s *Service) ListMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]model.Message, error) {
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return repo.ListMessages(ctx, conversationID, limit)
}

// MarkRead clears the unread counter and flags the contact's messages as
// read, typically when an agent opens the thread.
func (s *Service) MarkRead(ctx context.Context, tenantID, conversationID string) error {
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return err
	}
	return repo.MarkConversationRead(ctx, conversationID)
}
