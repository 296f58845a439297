package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"support-desk-backend/internal/dto"
	"support-desk-backend/internal/session"
)

type SessionEndpoints interface {
	Session(http.ResponseWriter, *http.Request) error
	SessionStatus(http.ResponseWriter, *http.Request) error
	SendText(http.ResponseWriter, *http.Request) error
	SendImage(http.ResponseWriter, *http.Request) error
}

type sessionEndpoints struct {
	sessions *session.Registry
}

func NewSessionEndpoints(sessions *session.Registry) SessionEndpoints {
	return &sessionEndpoints{sessions: sessions}
}

// Session multiplexes the lifecycle verbs: POST .../start, .../reset and
// .../disconnect.
func (h *sessionEndpoints) Session(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleLifecycle,
	})
}

func (h *sessionEndpoints) SessionStatus(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleStatus,
	})
}

func (h *sessionEndpoints) SendText(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSendText,
	})
}

func (h *sessionEndpoints) SendImage(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSendImage,
	})
}

func (h *sessionEndpoints) handleLifecycle(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	trimmed := strings.TrimRight(r.URL.Path, "/")
	action := trimmed[strings.LastIndex(trimmed, "/")+1:]

	switch action {
	case "start":
		if err := h.sessions.Start(claims.TenantID); err != nil {
			return &HTTPError{
				StatusCode: http.StatusInternalServerError,
				Message:    "Failed to start messaging session",
				ErrorLog:   fmt.Errorf("start session for tenant %s: %w", claims.TenantID, err),
			}
		}
	case "reset":
		if err := h.sessions.Reset(claims.TenantID); err != nil {
			return &HTTPError{
				StatusCode: http.StatusInternalServerError,
				Message:    "Failed to reset messaging session",
				ErrorLog:   fmt.Errorf("reset session for tenant %s: %w", claims.TenantID, err),
			}
		}
	case "disconnect":
		h.sessions.Disconnect(claims.TenantID)
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Unknown session action",
			ErrorLog:   fmt.Errorf("session action %q", action),
		}
	}

	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "ok"})
}

func (h *sessionEndpoints) handleStatus(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, h.sessions.Status(claims.TenantID))
}

func (h *sessionEndpoints) handleSendText(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode send text request: %w", err),
		}
	}
	if req.ConversationID == "" || req.Message == "" {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "conversationId and message are required",
			ErrorLog:   fmt.Errorf("send text missing fields"),
		}
	}

	msg, err := h.sessions.SendText(r.Context(), claims.TenantID, req.ConversationID, req.Message)
	if err != nil {
		return h.sendError(claims.TenantID, err)
	}

	return WriteJSON(w, http.StatusCreated, dto.SendMessageResponse{Message: msg})
}

func (h *sessionEndpoints) handleSendImage(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	var req dto.SendImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode send image request: %w", err),
		}
	}
	if req.ConversationID == "" || (req.ImageURL == "" && req.Base64 == "") {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "conversationId and an image source are required",
			ErrorLog:   fmt.Errorf("send image missing fields"),
		}
	}

	msg, err := h.sessions.SendImage(r.Context(), claims.TenantID, session.SendImageParams{
		ConversationID: req.ConversationID,
		ImageURL:       req.ImageURL,
		Base64:         req.Base64,
		Caption:        req.Caption,
	})
	if err != nil {
		return h.sendError(claims.TenantID, err)
	}

	return WriteJSON(w, http.StatusCreated, dto.SendMessageResponse{Message: msg})
}

func (h *sessionEndpoints) sendError(tenantID string, err error) error {
	if errors.Is(err, session.ErrSessionNotConnected) {
		return &HTTPError{
			StatusCode: http.StatusConflict,
			Message:    "Messaging session is not connected",
			ErrorLog:   fmt.Errorf("send for tenant %s: %w", tenantID, err),
		}
	}
	return &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Failed to send message",
		ErrorLog:   fmt.Errorf("send for tenant %s: %w", tenantID, err),
	}
}
