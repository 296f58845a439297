package ticket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"support-desk-backend/internal/model"
)

type memoryRepository struct {
	mu      sync.Mutex
	tickets []model.Ticket
	latest  map[string]string
}

func (r *memoryRepository) factory(ctx context.Context, tenantID string) (Repository, error) {
	return r, nil
}

func (r *memoryRepository) CreateTicket(ctx context.Context, ticket model.Ticket, nextNumber func(latest string) string) (model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		r.latest = make(map[string]string)
	}
	ticket.TicketNumber = nextNumber(r.latest[ticket.TenantID])
	r.latest[ticket.TenantID] = ticket.TicketNumber
	r.tickets = append(r.tickets, ticket)
	return ticket, nil
}

// seed inserts a ticket directly, bypassing number allocation.
func (r *memoryRepository) seed(ticket model.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		r.latest = make(map[string]string)
	}
	r.latest[ticket.TenantID] = ticket.TicketNumber
	r.tickets = append(r.tickets, ticket)
}

func (r *memoryRepository) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return model.Ticket{}, ErrNotFound
}

func (r *memoryRepository) GetTicketByConversation(ctx context.Context, conversationID string) (model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *model.Ticket
	for i := range r.tickets {
		t := &r.tickets[i]
		if t.ConversationID != conversationID {
			continue
		}
		if found == nil || t.CreatedAt.After(found.CreatedAt) {
			found = t
		}
	}
	if found == nil {
		return model.Ticket{}, ErrNotFound
	}
	return *found, nil
}

func (r *memoryRepository) ListTickets(ctx context.Context, tenantID string, filters Filters) ([]model.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Ticket
	for _, t := range r.tickets {
		if t.TenantID != tenantID {
			continue
		}
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		if filters.Priority != "" && t.Priority != filters.Priority {
			continue
		}
		if filters.AssignedToID != "" && t.AssignedToID != filters.AssignedToID {
			continue
		}
		if filters.AssignedByType != "" && t.AssignedByType != filters.AssignedByType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepository) UpdateTicket(ctx context.Context, ticket model.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tickets {
		if r.tickets[i].ID == ticket.ID {
			r.tickets[i] = ticket
			return nil
		}
	}
	return ErrNotFound
}

func newTestTicketService() (*Service, *memoryRepository, *time.Time) {
	repo := &memoryRepository{}
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	current := &now
	var clockMu sync.Mutex
	svc := NewWithFactory(repo.factory, func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		*current = current.Add(time.Second)
		return *current
	})
	return svc, repo, current
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	svc, _, _ := newTestTicketService()

	first, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "Printer down"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.TicketNumber != "TK001" {
		t.Fatalf("first number = %q, want TK001", first.TicketNumber)
	}

	second, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "VPN broken"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.TicketNumber != "TK002" {
		t.Fatalf("second number = %q, want TK002", second.TicketNumber)
	}
}

func TestCreateContinuesFromExistingNumber(t *testing.T) {
	svc, repo, _ := newTestTicketService()

	repo.seed(model.Ticket{
		ID:           "seed",
		TenantID:     "t1",
		TicketNumber: "TK041",
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	ticket, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "Follow-up"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.TicketNumber != "TK042" {
		t.Fatalf("number = %q, want TK042", ticket.TicketNumber)
	}
}

func TestCreateNumbersAreTenantScoped(t *testing.T) {
	svc, _, _ := newTestTicketService()

	a, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "A"})
	if err != nil {
		t.Fatalf("tenant t1: %v", err)
	}
	b, err := svc.Create(context.Background(), "t2", "agent-2", CreateParams{Title: "B"})
	if err != nil {
		t.Fatalf("tenant t2: %v", err)
	}

	if a.TicketNumber != "TK001" || b.TicketNumber != "TK001" {
		t.Fatalf("numbers = %q / %q, each tenant starts at TK001", a.TicketNumber, b.TicketNumber)
	}
}

func TestCreateConcurrentNumbersAreUnique(t *testing.T) {
	svc, _, _ := newTestTicketService()

	const creates = 16
	numbers := make(chan string, creates)
	errs := make(chan error, creates)
	var wg sync.WaitGroup
	for i := 0; i < creates; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "Burst"})
			if err != nil {
				errs <- err
				return
			}
			numbers <- ticket.TicketNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("create: %v", err)
	}
	seen := make(map[string]bool, creates)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("number %s allocated twice", number)
		}
		seen[number] = true
	}
	if len(seen) != creates {
		t.Fatalf("allocated %d distinct numbers, want %d", len(seen), creates)
	}
}

func TestCreateDefaults(t *testing.T) {
	svc, _, _ := newTestTicketService()

	ticket, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "Defaults"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if ticket.Priority != model.TicketPriorityLow {
		t.Fatalf("priority = %q, want low", ticket.Priority)
	}
	if ticket.Status != model.TicketStatusOpen {
		t.Fatalf("status = %q, want open", ticket.Status)
	}
	if ticket.AssignedByType != model.AssignedByHuman {
		t.Fatalf("assigned by type = %q, want human", ticket.AssignedByType)
	}
	if ticket.CreatedByID != "agent-1" || ticket.AssignedByID != "agent-1" {
		t.Fatalf("attribution = %q / %q", ticket.CreatedByID, ticket.AssignedByID)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _, _ := newTestTicketService()

	_, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestUpdateAssignmentMarksHuman(t *testing.T) {
	svc, _, _ := newTestTicketService()

	created, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{
		Title:          "Escalation",
		AssignedByType: model.AssignedByAI,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	assignee := "agent-2"
	updated, err := svc.Update(context.Background(), "t1", created.ID, "agent-3", UpdateParams{
		AssignedToID: &assignee,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.AssignedToID != "agent-2" {
		t.Fatalf("assigned to = %q", updated.AssignedToID)
	}
	if updated.AssignedByType != model.AssignedByHuman {
		t.Fatalf("assigned by type = %q, manual reassignment is human", updated.AssignedByType)
	}
	if updated.AssignedByID != "agent-3" {
		t.Fatalf("assigned by = %q, want the updating agent", updated.AssignedByID)
	}
}

func TestUpdateStatusAndPriority(t *testing.T) {
	svc, _, _ := newTestTicketService()

	created, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "Bug"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	status := model.TicketStatusResolved
	priority := model.TicketPriorityCritical
	updated, err := svc.Update(context.Background(), "t1", created.ID, "agent-1", UpdateParams{
		Status:   &status,
		Priority: &priority,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Status != model.TicketStatusResolved || updated.Priority != model.TicketPriorityCritical {
		t.Fatalf("ticket = %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatal("updated timestamp must advance")
	}
}

func TestGetByConversation(t *testing.T) {
	svc, _, _ := newTestTicketService()

	created, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{
		Title:          "From chat",
		ConversationID: "conv-9",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := svc.GetByConversation(context.Background(), "t1", "conv-9")
	if err != nil {
		t.Fatalf("get by conversation: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("found %q, want %q", found.ID, created.ID)
	}

	_, err = svc.GetByConversation(context.Background(), "t1", "conv-none")
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Code != ErrorCodeNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestTicketService()

	if _, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "A", Priority: model.TicketPriorityHigh}); err != nil {
		t.Fatalf("seed A: %v", err)
	}
	if _, err := svc.Create(context.Background(), "t1", "agent-1", CreateParams{Title: "B"}); err != nil {
		t.Fatalf("seed B: %v", err)
	}

	high, err := svc.List(context.Background(), "t1", Filters{Priority: model.TicketPriorityHigh})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(high) != 1 || high[0].Title != "A" {
		t.Fatalf("filtered = %+v", high)
	}
}
