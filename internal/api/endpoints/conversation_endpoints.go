package endpoints

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"support-desk-backend/internal/dto"
	conversationservice "support-desk-backend/internal/service/conversation"
)

type ConversationEndpoints interface {
	Conversations(http.ResponseWriter, *http.Request) error
	ConversationByID(http.ResponseWriter, *http.Request) error
}

type ConversationPaths struct {
	ConversationsPath   string
	ConversationsPrefix string
}

type conversationEndpoints struct {
	service *conversationservice.Service
	paths   ConversationPaths
}

func NewConversationEndpoints(service *conversationservice.Service, prefix string) ConversationEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &conversationEndpoints{
		service: service,
		paths: ConversationPaths{
			ConversationsPath:   base + "/conversations",
			ConversationsPrefix: base + "/conversations/",
		},
	}
}

func (h *conversationEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListConversations,
	})
}

// ConversationByID serves GET .../conversations/{id}/messages and
// POST .../conversations/{id}/read.
func (h *conversationEndpoints) ConversationByID(w http.ResponseWriter, r *http.Request) error {
	trimmed := strings.TrimRight(r.URL.Path, "/")
	if strings.HasSuffix(trimmed, "/messages") {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: h.handleListMessages,
		})
	}
	if strings.HasSuffix(trimmed, "/read") {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleMarkRead,
		})
	}
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleGetConversation,
	})
}

func (h *conversationEndpoints) handleListConversations(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	conversations, err := h.service.ListConversations(r.Context(), claims.TenantID, limit)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.ConversationsResponse{Conversations: conversations})
}

func (h *conversationEndpoints) handleGetConversation(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	convID, err := h.conversationID(r.URL.Path, "")
	if err != nil {
		return err
	}
	conversation, err := h.service.GetConversation(r.Context(), claims.TenantID, convID)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, conversation)
}

func (h *conversationEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	convID, err := h.conversationID(r.URL.Path, "/messages")
	if err != nil {
		return err
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	messages, err := h.service.ListMessages(r.Context(), claims.TenantID, convID, limit)
	if err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.MessagesResponse{Messages: messages})
}

func (h *conversationEndpoints) handleMarkRead(w http.ResponseWriter, r *http.Request) error {
	claims, err := staffFromRequest(r)
	if err != nil {
		return err
	}
	convID, err := h.conversationID(r.URL.Path, "/read")
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(r.Context(), claims.TenantID, convID); err != nil {
		return h.serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, ApiMessageResponse{Message: "ok"})
}

func (h *conversationEndpoints) conversationID(path, suffix string) (string, error) {
	id, err := pathSuffix(path, h.paths.ConversationsPrefix, "Conversation")
	if err != nil {
		return "", err
	}
	if suffix != "" {
		id = strings.Trim(strings.TrimSuffix(id, strings.Trim(suffix, "/")), "/")
	}
	if id == "" || strings.Contains(id, "/") {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Conversation not found",
			ErrorLog:   fmt.Errorf("invalid conversation path: %s", path),
		}
	}
	return id, nil
}

func (h *conversationEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*conversationservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("conversation service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case conversationservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case conversationservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}
