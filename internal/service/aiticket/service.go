package aiticket

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"support-desk-backend/internal/kb"
	"support-desk-backend/internal/model"
	"support-desk-backend/internal/service/ticket"

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

// TicketCreator is the slice of the ticket service the orchestrator needs.
type TicketCreator interface {
	Create(ctx context.Context, tenantID, createdByID string, params ticket.CreateParams) (model.Ticket, error)
}

// TenantLookup resolves tenant metadata and staff from the control plane.
type TenantLookup interface {
	GetTenantRecord(ctx context.Context, tenantID string) (model.TenantRecord, error)
	ListMembers(ctx context.Context, tenantID string) ([]model.MemberItem, error)
}

// Knowledge answers free-form questions from a tenant's document collection.
type Knowledge interface {
	Query(ctx context.Context, kbPointer, question string) (kb.QueryResult, error)
}

// Outcome is what handling one inbound message produced: a ticket, a
// knowledge-base reply, or neither.
type Outcome struct {
	TicketCreated bool
	Ticket        model.Ticket
	Reply         string
}

type Service struct {
	triggers  TriggerRepositoryFactory
	scorer    Scorer
	tickets   TicketCreator
	directory TenantLookup
	knowledge Knowledge
	now       func() time.Time
	pick      func(n int) int
}

type Config struct {
	Triggers  TriggerRepositoryFactory
	Scorer    Scorer
	Tickets   TicketCreator
	Directory TenantLookup
	Knowledge Knowledge

	// Now and Pick are injectable for tests. Pick returns a uniform index
	// in [0, n).
	Now  func() time.Time
	Pick func(n int) int
}

func New(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.Intn
	}
	return &Service{
		triggers:  cfg.Triggers,
		scorer:    cfg.Scorer,
		tickets:   cfg.Tickets,
		directory: cfg.Directory,
		knowledge: cfg.Knowledge,
		now:       cfg.Now,
		pick:      cfg.Pick,
	}
}

// HandleInbound scores message against the tenant's triggers. A match
// creates a ticket assigned to a random member holding the trigger's role;
// no match forwards the message to the knowledge base for a reply.
func (s *Service) HandleInbound(ctx context.Context, tenantID, conversationID, message string) (Outcome, error) {
	if tenantID == "" || message == "" {
		return Outcome{}, newError(ErrorCodeValidation, "tenant id and message are required", nil)
	}

	repo, err := s.triggers(ctx, tenantID)
	if err != nil {
		return Outcome{}, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	triggers, err := repo.ListTriggers(ctx, tenantID)
	if err != nil {
		return Outcome{}, newError(ErrorCodeInternal, "failed to list triggers", err)
	}

	if len(triggers) > 0 {
		result, err := s.scorer.Score(ctx, message, triggers)
		if err != nil {
			// Scoring is best effort; a dead analysis service must not
			// swallow the message. Fall through to the knowledge base.
			log.Printf("trigger scoring failed for tenant %s: %v", tenantID, err)
		} else if result.Match {
			trigger, ok := findTrigger(triggers, result.TriggerID)
			if !ok {
				log.Printf("scorer matched unknown trigger %s for tenant %s", result.TriggerID, tenantID)
			} else {
				created, err := s.createFromTrigger(ctx, tenantID, conversationID, trigger)
				if err != nil {
					return Outcome{}, err
				}
				return Outcome{TicketCreated: true, Ticket: created}, nil
			}
		}
	}

	return s.answerFromKnowledge(ctx, tenantID, message)
}

func (s *Service) createFromTrigger(ctx context.Context, tenantID, conversationID string, trigger model.Trigger) (model.Ticket, error) {
	assignedTo := ""
	members, err := s.directory.ListMembers(ctx, tenantID)
	if err != nil {
		log.Printf("failed to list members for tenant %s: %v", tenantID, err)
	} else if candidates := membersWithRole(members, trigger.AssignedRole); len(candidates) > 0 {
		assignedTo = candidates[s.pick(len(candidates))].MemberID
	}

	created, err := s.tickets.Create(ctx, tenantID, "", ticket.CreateParams{
		Title:          "AI Ticket: " + trigger.Keyword,
		Description:    trigger.Intent,
		Priority:       model.TicketPriorityMedium,
		ConversationID: conversationID,
		AssignedToID:   assignedTo,
		AssignedByType: model.AssignedByAI,
	})
	if err != nil {
		return model.Ticket{}, newError(ErrorCodeInternal, "failed to create ticket from trigger", err)
	}
	return created, nil
}

func (s *Service) answerFromKnowledge(ctx context.Context, tenantID, message string) (Outcome, error) {
	record, err := s.directory.GetTenantRecord(ctx, tenantID)
	if err != nil {
		return Outcome{}, newError(ErrorCodeNotFound, "tenant not found", err)
	}
	if record.KBPointer == "" {
		return Outcome{}, nil
	}
	result, err := s.knowledge.Query(ctx, record.KBPointer, message)
	if err != nil {
		return Outcome{}, newError(ErrorCodeInternal, "knowledge base query failed", err)
	}
	return Outcome{Reply: result.Answer}, nil
}

func findTrigger(triggers []model.Trigger, id string) (model.Trigger, bool) {
	for _, t := range triggers {
		if t.ID == id {
			return t, true
		}
	}
	return model.Trigger{}, false
}

func membersWithRole(members []model.MemberItem, role string) []model.MemberItem {
	var out []model.MemberItem
	for _, m := range members {
		if m.SpecialRole == role {
			out = append(out, m)
		}
	}
	return out
}

// CreateTrigger registers a new auto-ticket rule in the tenant database.
func (s *Service) CreateTrigger(ctx context.Context, tenantID, keyword, intent, assignedRole string) (model.Trigger, error) {
	if tenantID == "" || keyword == "" {
		return model.Trigger{}, newError(ErrorCodeValidation, "tenant id and keyword are required", nil)
	}
	repo, err := s.triggers(ctx, tenantID)
	if err != nil {
		return model.Trigger{}, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	trigger := model.Trigger{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Keyword:      keyword,
		Intent:       intent,
		AssignedRole: assignedRole,
		CreatedAt:    s.now(),
	}
	if err := repo.CreateTrigger(ctx, trigger); err != nil {
		return model.Trigger{}, newError(ErrorCodeInternal, "failed to create trigger", err)
	}
	return trigger, nil
}

func (s *Service) ListTriggers(ctx context.Context, tenantID string) ([]model.Trigger, error) {
	if tenantID == "" {
		return nil, newError(ErrorCodeValidation, "tenant id is required", nil)
	}
	repo, err := s.triggers(ctx, tenantID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	triggers, err := repo.ListTriggers(ctx, tenantID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list triggers", err)
	}
	return triggers, nil
}

func (s *Service) DeleteTrigger(ctx context.Context, tenantID, triggerID string) error {
	if tenantID == "" || triggerID == "" {
		return newError(ErrorCodeValidation, "tenant id and trigger id are required", nil)
	}
	repo, err := s.triggers(ctx, tenantID)
	if err != nil {
		return newError(ErrorCodeInternal, "tenant database unavailable", err)
	}
	if err := repo.DeleteTrigger(ctx, triggerID); err != nil {
		if errors.Is(err, ErrTriggerNotFound) {
			return newError(ErrorCodeNotFound, "trigger not found", err)
		}
		return newError(ErrorCodeInternal, "failed to delete trigger", err)
	}
	return nil
}
