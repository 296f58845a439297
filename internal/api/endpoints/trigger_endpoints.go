package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"support-desk-backend/internal/dto"
	aiticketservice "support-desk-backend/internal/service/aiticket"
)

type TriggerEndpoints interface {
	Triggers(http.ResponseWriter, *http.Request) error
	TriggerByID(http.ResponseWriter, *http.Request) error
}

type triggerEndpoints struct {
	service        *aiticketservice.Service
	triggersPrefix string
}

func NewTriggerEndpoints(service *aiticketservice.Service, prefix string) TriggerEndpoints {
	return &triggerEndpoints{
		service:        service,
		triggersPrefix: strings.TrimRight(prefix, "/") + "/triggers/",
	}
}

func (h *triggerEndpoints) Triggers(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleList,
		http.MethodPost: h.handleCreate,
	})
}

func (h *triggerEndpoints) TriggerByID(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodDelete: h.handleDelete,
	})
}

func (h *triggerEndpoints) handleList(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	triggers, err := h.service.ListTriggers(r.Context(), claims.TenantID)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.TriggersResponse{Triggers: triggers})
}

func (h *triggerEndpoints) handleCreate(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.CreateTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode create trigger request: %w", err),
		}
	}

	trigger, err := h.service.CreateTrigger(r.Context(), claims.TenantID, req.Keyword, req.Intent, req.AssignedRole)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, trigger)
}

func (h *triggerEndpoints) handleDelete(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	triggerID, err := pathSuffix(r.URL.Path, h.triggersPrefix, "Trigger")
	if err != nil {
		return err
	}
	if err := h.service.DeleteTrigger(r.Context(), claims.TenantID, triggerID); err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "ok"})
}

func (h *triggerEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*aiticketservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("trigger service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case aiticketservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case aiticketservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
