package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Publish delivers an event to every currently-joined client of the room,
// across all processes, via the redis bridge. Fire-and-forget: there is no
// persistence or replay, a disconnected client reconciles with a later pull.
// Publishing before the transport is initialised logs and no-ops so emitting
// callers never crash on startup ordering.
func Publish(roomID, event string, payload interface{}) error {
	if roomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}
	if redisClient == nil {
		log.Printf("websocket publish: transport not initialised, dropping %q for room %s", event, roomID)
		return nil
	}

	envelope := WSMessage{
		Event:     event,
		Data:      payload,
		RoomID:    roomID,
		Timestamp: time.Now().Unix(),
	}
	messageJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal payload: %w", err)
	}

	if err := redisClient.Publish(context.Background(), roomID, string(messageJSON)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}

// Gateway is the fan-out surface handed to the session registry and the
// orchestration layer. Errors are logged, never propagated: a failed emit
// must not abort the pipeline that triggered it.
type Gateway struct{}

func NewGateway() *Gateway {
	return &Gateway{}
}

func (g *Gateway) ToTenant(tenantID, event string, payload interface{}) {
	if err := Publish(TenantRoom(tenantID), event, payload); err != nil {
		log.Printf("websocket gateway: emit %q to tenant %s: %v", event, tenantID, err)
	}
}

func (g *Gateway) ToConversation(conversationID, event string, payload interface{}) {
	if err := Publish(ConversationRoom(conversationID), event, payload); err != nil {
		log.Printf("websocket gateway: emit %q to conversation %s: %v", event, conversationID, err)
	}
}
