package dto

import "support-desk-backend/internal/model"

type SendTextRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type SendImageRequest struct {
	ConversationID string `json:"conversationId"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Base64         string `json:"base64,omitempty"`
	Caption        string `json:"caption,omitempty"`
}

type SendMessageResponse struct {
	Message model.Message `json:"message"`
}

type ConversationsResponse struct {
	Conversations []model.Conversation `json:"conversations"`
}

type MessagesResponse struct {
	Messages []model.Message `json:"messages"`
}

type CreateTicketRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Priority       string `json:"priority,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	AssignedToID   string `json:"assignedToId,omitempty"`
}

type UpdateTicketRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Priority     *string `json:"priority,omitempty"`
	Status       *string `json:"status,omitempty"`
	AssignedToID *string `json:"assignedToId,omitempty"`
}

type TicketsResponse struct {
	Tickets []model.Ticket `json:"tickets"`
}

type CreateTriggerRequest struct {
	Keyword      string `json:"keyword"`
	Intent       string `json:"intent,omitempty"`
	AssignedRole string `json:"assignedRole,omitempty"`
}

type TriggersResponse struct {
	Triggers []model.Trigger `json:"triggers"`
}
