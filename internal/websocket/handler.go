package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	internaljwt "support-desk-backend/internal/jwt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient *redis.Client
)

// InitTransport connects the package to redis. Must run before the first
// Publish; until then publishes are dropped with a log line.
func InitTransport(addr, password string) {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

type Handler struct {
	hub *Hub
}

func NewHandler(h *Hub) *Handler {
	return &Handler{hub: h}
}

func (h *Handler) subscribeToRoomChannel(roomID string) {
	if redisClient == nil {
		log.Printf("Room %s: transport not initialised, skipping subscription", roomID)
		return
	}

	log.Printf("Subscribing to Redis channel: %s", roomID)
	subscriber := redisClient.Subscribe(context.Background(), roomID)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		var envelope WSMessage
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			log.Printf("Room %s: dropping malformed envelope: %v", roomID, err)
			continue
		}
		envelope.RoomID = roomID
		h.hub.Broadcast <- &envelope
	}
	log.Printf("Unsubscribed from Redis channel: %s", roomID)
}

// CreateRoom registers the room in the hub and bridges its redis channel.
// Idempotent; the subscription is started only for a newly created room.
func (h *Handler) CreateRoom(id string) {
	if created := h.hub.EnsureRoom(id); created {
		go h.subscribeToRoomChannel(id)
	}
}

// JoinStaff authenticates a staff credential and joins the client to its own
// tenant's room. The room is derived from the token, never from the request,
// so a staff client cannot join an arbitrary tenant.
func (h *Handler) JoinStaff(w http.ResponseWriter, r *http.Request) {
	claims, err := internaljwt.ParseStaffToken(tokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.join(w, r, TenantRoom(claims.TenantID), claims.UserID)
}

// JoinGuest authenticates a guest/contact credential and joins the client to
// the single conversation room the token was minted for.
func (h *Handler) JoinGuest(w http.ResponseWriter, r *http.Request) {
	claims, err := internaljwt.ParseGuestToken(tokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.join(w, r, ConversationRoom(claims.ConversationID), "guest-"+uuid.NewString())
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request, roomID, clientID string) {
	h.CreateRoom(roomID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := &WSClient{
		Conn:     conn,
		Message:  make(chan *WSMessage, 10),
		ID:       clientID,
		RoomID:   roomID,
		done:     make(chan struct{}),
		isClosed: false,
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(h.hub)
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]RoomRes, 0)
	for _, id := range h.hub.RoomIDs() {
		rooms = append(rooms, RoomRes{ID: id})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rooms)
}

// SubscribeToRedisChannels re-attaches bridge subscriptions for every known
// room, e.g. after the transport reconnects.
func (h *Handler) SubscribeToRedisChannels() {
	for _, id := range h.hub.RoomIDs() {
		go h.subscribeToRoomChannel(id)
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.Header.Get("Sec-WebSocket-Protocol")
}
