package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/model"
	ticketservice "support-desk-backend/internal/service/ticket"
)

type TicketEndpoints interface {
	Tickets(http.ResponseWriter, *http.Request) error
	TicketByID(http.ResponseWriter, *http.Request) error
}

type ticketEndpoints struct {
	service       *ticketservice.Service
	ticketsPrefix string
}

func NewTicketEndpoints(service *ticketservice.Service, prefix string) TicketEndpoints {
	return &ticketEndpoints{
		service:       service,
		ticketsPrefix: strings.TrimRight(prefix, "/") + "/tickets/",
	}
}

func (h *ticketEndpoints) Tickets(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleList,
		http.MethodPost: h.handleCreate,
	})
}

// TicketByID serves GET and PATCH on .../tickets/{id} plus the
// GET .../tickets/by-conversation/{conversationId} lookup.
func (h *ticketEndpoints) TicketByID(w http.ResponseWriter, r *http.Request) error {
	rest, err := pathSuffix(r.URL.Path, h.ticketsPrefix, "Ticket")
	if err != nil {
		return err
	}

	if strings.HasPrefix(rest, "by-conversation/") {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleGetByConversation(w, r, strings.TrimPrefix(rest, "by-conversation/"))
			},
		})
	}

	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			return h.handleGet(w, r, rest)
		},
		http.MethodPatch: func(w http.ResponseWriter, r *http.Request) error {
			return h.handleUpdate(w, r, rest)
		},
	})
}

func (h *ticketEndpoints) handleList(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	q := r.URL.Query()
	filters := ticketservice.Filters{
		Status:         model.TicketStatus(q.Get("status")),
		Priority:       model.TicketPriority(q.Get("priority")),
		AssignedToID:   q.Get("assignedTo"),
		AssignedByType: q.Get("assignedByType"),
	}

	tickets, err := h.service.List(r.Context(), claims.TenantID, filters)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.TicketsResponse{Tickets: tickets})
}

func (h *ticketEndpoints) handleCreate(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create ticket request: %w", err),
		}
	}

	ticket, err := h.service.Create(r.Context(), claims.TenantID, claims.UserID, ticketservice.CreateParams{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       model.TicketPriority(req.Priority),
		ConversationID: req.ConversationID,
		AssignedToID:   req.AssignedToID,
	})
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, ticket)
}

func (h *ticketEndpoints) handleGet(w http.ResponseWriter, r *http.Request, ticketID string) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(r.Context(), claims.TenantID, ticketID)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ticket)
}

func (h *ticketEndpoints) handleGetByConversation(w http.ResponseWriter, r *http.Request, conversationID string) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetByConversation(r.Context(), claims.TenantID, conversationID)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ticket)
}

func (h *ticketEndpoints) handleUpdate(w http.ResponseWriter, r *http.Request, ticketID string) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode update ticket request: %w", err),
		}
	}

	params := ticketservice.UpdateParams{
		Title:        req.Title,
		Description:  req.Description,
		AssignedToID: req.AssignedToID,
	}
	if req.Priority != nil {
		p := model.TicketPriority(*req.Priority)
		params.Priority = &p
	}
	if req.Status != nil {
		s := model.TicketStatus(*req.Status)
		params.Status = &s
	}

	ticket, err := h.service.Update(r.Context(), claims.TenantID, ticketID, claims.UserID, params)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ticket)
}

func (h *ticketEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*ticketservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("ticket service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case ticketservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case ticketservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
