package ticket

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
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

var ticketNumberPattern = regexp.MustCompile(`TK(\d+)`)

type CreateParams struct {
	Title          string
	Description    string
	Priority       model.TicketPriority
	ConversationID string
	AssignedToID   string
	AssignedByType string
	AssignedByID   string
}

// UpdateParams applies a partial update. Nil fields are left unchanged.
type UpdateParams struct {
	Title        *string
	Description  *string
	Priority     *model.TicketPriority
	Status       *model.TicketStatus
	AssignedToID *string
	AssignedByID *string
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

// Create assigns the next sequential ticket number for the tenant and
// persists the ticket. Numbers continue from the most recent ticket, so
// TK007 is followed by TK008 even when earlier tickets were closed. The
// repository allocates the number inside the insert, keeping concurrent
// creates from sharing one.
func (s *Service) Create(ctx context.Context, tenantID, createdByID string, params CreateParams) (model.Ticket, error) {
	if tenantID == "" {
		return model.Ticket{}, newError(ErrorCodeValidation, "tenant id is required", nil)
	}
	if params.Title == "" {
		return model.Ticket{}, newError(ErrorCodeValidation, "ticket title is required", nil)
	}

	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return model.Ticket{}, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}

	priority := params.Priority
	if priority == "" {
		priority = model.TicketPriorityLow
	}
	assignedByType := params.AssignedByType
	if assignedByType == "" {
		assignedByType = model.AssignedByHuman
	}
	assignedByID := params.AssignedByID
	if assignedByID == "" {
		assignedByID = createdByID
	}

	now := s.now()
	ticket := model.Ticket{
		ID:             uuid.NewString(),
		Title:          params.Title,
		Description:    params.Description,
		Priority:       priority,
		Status:         model.TicketStatusOpen,
		TenantID:       tenantID,
		ConversationID: params.ConversationID,
		AssignedToID:   params.AssignedToID,
		CreatedByID:    createdByID,
		AssignedByType: assignedByType,
		AssignedByID:   assignedByID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := repo.CreateTicket(ctx, ticket, nextTicketNumber)
	if err != nil {
		return model.Ticket{}, newError(ErrorCodeInternal, "failed to create ticket", err)
	}
	return created, nil
}

func nextTicketNumber(latest string) string {
	next := 1
	if match := ticketNumberPattern.FindStringSubmatch(latest); match != nil {
		n, err := strconv.Atoi(match[1])
		if err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("TK%03d", next)
}

func (s *Service) Get(ctx context.Context, tenantID, ticketID string) (model.Ticket, error) {
	if tenantID == "" || ticketID == "" {
		return model.Ticket{}, newError(ErrorCodeValidation, "tenant id and ticket id are required", nil)
	}
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return model.Ticket{}, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	ticket, err := repo.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Ticket{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.Ticket{}, newError(ErrorCodeInternal, "failed to load ticket", err)
	}
	return ticket, nil
}

// GetByConversation returns the most recent ticket attached to a
// conversation, or a not found error when the conversation has none.
func (s *Service) GetByConversation(ctx context.Context, tenantID, conversationID string) (model.Ticket, error) {
	if tenantID == "" || conversationID == "" {
		return model.Ticket{}, newError(ErrorCodeValidation, "tenant id and conversation id are required", nil)
	}
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return model.Ticket{}, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	ticket, err := repo.GetTicketByConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Ticket{}, newError(ErrorCodeNotFound, "no ticket for conversation", err)
		}
		return model.Ticket{}, newError(ErrorCodeInternal, "failed to load ticket", err)
	}
	return ticket, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filters Filters) ([]model.Ticket, error) {
	if tenantID == "" {
		return nil, newError(ErrorCodeValidation, "tenant id is required", nil)
	}
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	tickets, err := repo.ListTickets(ctx, tenantID, filters)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list tickets", err)
	}
	return tickets, nil
}

// Update applies the non-nil fields of params to the ticket. Changing
// AssignedToID without an explicit AssignedByID marks the assignment as
// made by updatedByID.
func (s *Service) Update(ctx context.Context, tenantID, ticketID, updatedByID string, params UpdateParams) (model.Ticket, error) {
	if tenantID == "" || ticketID == "" {
		return model.Ticket{}, newError(ErrorCodeValidation, "tenant id and ticket id are required", nil)
	}
	repo, err := s.repos(ctx, tenantID)
	if err != nil {
		return model.Ticket{}, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	ticket, err := repo.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Ticket{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.Ticket{}, newError(ErrorCodeInternal, "failed to load ticket", err)
	}

	if params.Title != nil {
		ticket.Title = *params.Title
	}
	if params.Description != nil {
		ticket.Description = *params.Description
	}
	if params.Priority != nil {
		ticket.Priority = *params.Priority
	}
	if params.Status != nil {
		ticket.Status = *params.Status
	}
	if params.AssignedToID != nil {
		ticket.AssignedToID = *params.AssignedToID
		ticket.AssignedByType = model.AssignedByHuman
		if params.AssignedByID != nil {
			ticket.AssignedByID = *params.AssignedByID
		} else {
			ticket.AssignedByID = updatedByID
		}
	}
	ticket.UpdatedAt = s.now()

	if err := repo.UpdateTicket(ctx, ticket); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Ticket{}, newError(ErrorCodeNotFound, "ticket not found", err)
		}
		return model.Ticket{}, newError(ErrorCodeInternal, "failed to update ticket", err)
	}
	return ticket, nil
}
