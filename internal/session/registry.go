package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"support-desk-backend/internal/model"
	"support-desk-backend/internal/platform"
	"support-desk-backend/internal/queue"
	"support-desk-backend/internal/service/conversation"
)

// ErrSessionNotConnected is returned when an outbound send is attempted for
// a tenant with no ready session. Surfaced to the user as "not connected".
var ErrSessionNotConnected = errors.New("session: whatsapp client not connected")

// Session status values. Derived from in-memory and filesystem state only;
// a status query never performs a network round-trip.
const (
	StatusInactive     = "inactive"
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusUnauthorized = "unauthorized"
	StatusError        = "error"
)

// ConversationStore is the persistence surface the registry writes through.
// Implemented by the conversation service over the tenant's database.
type ConversationStore interface {
	RecordIncoming(ctx context.Context, params conversation.IncomingParams) (model.Conversation, model.Message, error)
	RecordOutgoing(ctx context.Context, tenantID, conversationID, sender, content, msgType, mediaURL string) (model.Conversation, model.Message, error)
	GetConversation(ctx context.Context, tenantID, conversationID string) (model.Conversation, error)
}

// Broadcaster pushes events to the tenant- and conversation-scoped rooms.
// Implemented by websocket.Gateway.
type Broadcaster interface {
	ToTenant(tenantID, event string, payload interface{})
	ToConversation(conversationID, event string, payload interface{})
}

// InboundHook runs after an inbound message has been persisted and
// broadcast. The orchestration layer hangs off it; nil disables it.
type InboundHook func(ctx context.Context, tenantID, conversationID, content string)

type Config struct {
	Store         *Store
	Dial          platform.Dialer
	Conversations ConversationStore
	Events        Broadcaster
	OnInbound     InboundHook

	// Classify decides logout vs transient on close. Defaults to
	// platform.DefaultClassifier.
	Classify platform.Classifier

	// ReconnectDelay spaces reconnect attempts after a transient drop so a
	// flapping socket cannot spin in a tight loop. Defaults to 2s.
	ReconnectDelay time.Duration
	// ResetDelay spaces the single automatic credential reset after a
	// logout-classified close. Defaults to 1s.
	ResetDelay time.Duration
	// MaxAutoReset bounds automatic re-pairing per tenant; a successful
	// connect makes the allowance available again. Defaults to 1.
	MaxAutoReset int

	// Workers, when set, bounds how many startup restores dial the platform
	// at once. Without it every restore runs on its own goroutine.
	Workers *queue.RequestQueueManager
}

type client struct {
	sock  platform.Socket
	ready bool
}

// Registry owns one messaging-platform session per tenant: pairing,
// reconnects, bounded re-pairing, inbound normalization and outbound sends.
// All state transitions are published through the Broadcaster.
type Registry struct {
	cfg Config

	mu            sync.Mutex
	clients       map[string]*client
	resetAttempts map[string]int
	// gen is bumped whenever a tenant's session is registered, removed or
	// explicitly torn down. Delayed reconnect/reset callbacks capture the
	// value at schedule time and abort when it moved on, so a timer never
	// acts on a superseded session.
	gen map[string]uint64
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Classify == nil {
		cfg.Classify = platform.DefaultClassifier
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.ResetDelay <= 0 {
		cfg.ResetDelay = time.Second
	}
	if cfg.MaxAutoReset <= 0 {
		cfg.MaxAutoReset = 1
	}
	return &Registry{
		cfg:           cfg,
		clients:       make(map[string]*client),
		resetAttempts: make(map[string]int),
		gen:           make(map[string]uint64),
	}
}

// Start initializes the tenant's platform session. Idempotent: a second call
// while a session object exists is a no-op. Credentials are loaded from (or
// initialized in) the tenant's session directory; a fresh directory produces
// an unpaired socket that will emit a pairing challenge.
func (r *Registry) Start(tenantID string) error {
	r.mu.Lock()
	if _, exists := r.clients[tenantID]; exists {
		r.mu.Unlock()
		log.Printf("[session][tenant=%s] session already exists, skipping start", tenantID)
		return nil
	}
	r.gen[tenantID]++
	r.mu.Unlock()

	log.Printf("[session][tenant=%s] initializing platform session", tenantID)

	auth, err := r.cfg.Store.Load(tenantID)
	if err != nil {
		r.cfg.Events.ToTenant(tenantID, "status_change", statusPayload{Status: StatusError})
		return fmt.Errorf("load credentials for tenant %s: %w", tenantID, err)
	}

	sock, err := r.cfg.Dial(context.Background(), auth)
	if err != nil {
		r.cfg.Events.ToTenant(tenantID, "status_change", statusPayload{Status: StatusError})
		return fmt.Errorf("dial platform for tenant %s: %w", tenantID, err)
	}

	c := &client{sock: sock}
	r.mu.Lock()
	if _, exists := r.clients[tenantID]; exists {
		// Lost a start race; the winner's session stands.
		r.mu.Unlock()
		go func() {
			if err := sock.Logout(context.Background()); err != nil {
				log.Printf("[session][tenant=%s] discarding duplicate socket: %v", tenantID, err)
			}
		}()
		return nil
	}
	r.clients[tenantID] = c
	setLiveSessions(len(r.clients))
	r.mu.Unlock()

	go r.runEvents(tenantID, c)
	return nil
}

// RestoreAll starts a session for every tenant with persisted credentials.
// Each start runs independently; one tenant failing to come back must not
// hold up or abort the others.
func (r *Registry) RestoreAll() {
	tenants, err := r.cfg.Store.ListTenants()
	if err != nil {
		log.Printf("[session] failed to scan sessions root: %v", err)
		return
	}

	for _, tenantID := range tenants {
		id := tenantID
		log.Printf("[session][tenant=%s] found existing session, restoring", id)
		restore := func() error {
			if err := r.Start(id); err != nil {
				log.Printf("[session][tenant=%s] auto-connect failed: %v", id, err)
			}
			return nil
		}
		if r.cfg.Workers != nil {
			r.cfg.Workers.EnqueueJob(queue.Job{Fn: restore})
		} else {
			go restore()
		}
	}
}

// Status derives the tenant's session state without touching the network:
// inactive (never paired), disconnected (paired but no live session),
// connecting (session up, handshake pending) or connected.
func (r *Registry) Status(tenantID string) StatusInfo {
	r.mu.Lock()
	c, ok := r.clients[tenantID]
	ready := ok && c.ready
	r.mu.Unlock()

	if !ok {
		if r.cfg.Store.Exists(tenantID) {
			return StatusInfo{Status: StatusDisconnected, Initialized: true}
		}
		return StatusInfo{Status: StatusInactive}
	}
	if ready {
		return StatusInfo{Status: StatusConnected, Connected: true, Initialized: true}
	}
	return StatusInfo{Status: StatusConnecting, Initialized: true}
}

type StatusInfo struct {
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	Initialized bool   `json:"initialized"`
}

// Reset discards the tenant's pairing entirely: best-effort logout, credential
// wipe, then a fresh start that will publish a new pairing challenge. Used by
// operator-triggered reconfiguration and the bounded automatic re-pair path.
func (r *Registry) Reset(tenantID string) error {
	log.Printf("[session][tenant=%s] resetting session", tenantID)
	r.cleanupClient(tenantID)

	if err := r.cfg.Store.Wipe(tenantID); err != nil {
		// A failed wipe is logged, not fatal; the restart below still
		// produces a fresh pairing when the platform rejects the creds.
		log.Printf("[session][tenant=%s] failed to delete session dir: %v", tenantID, err)
	}

	return r.Start(tenantID)
}

// Disconnect logs the session out and removes it from the registry, keeping
// the persisted credentials so a later Start can resume without re-pairing.
func (r *Registry) Disconnect(tenantID string) {
	r.cleanupClient(tenantID)
}

// retireClient removes c from the registry if it is still the registered
// session for the tenant and reports whether it was. A socket that lost the
// slot to a later Start, Reset or Disconnect must not tear down or reschedule
// its successor.
func (r *Registry) retireClient(tenantID string, c *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[tenantID] != c {
		return false
	}
	delete(r.clients, tenantID)
	r.gen[tenantID]++
	setLiveSessions(len(r.clients))
	return true
}

// cleanupClient removes the in-memory session after a best-effort logout and
// bumps the tenant's generation so pending delayed callbacks stand down.
func (r *Registry) cleanupClient(tenantID string) {
	r.mu.Lock()
	c, ok := r.clients[tenantID]
	delete(r.clients, tenantID)
	r.gen[tenantID]++
	setLiveSessions(len(r.clients))
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := c.sock.Logout(context.Background()); err != nil {
		// Logout routinely fails on an already-dead socket.
		log.Printf("[session][tenant=%s] logout: %v", tenantID, err)
	}
}

func (r *Registry) currentGen(tenantID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[tenantID]
}

func (r *Registry) runEvents(tenantID string, c *client) {
	for ev := range c.sock.Events() {
		switch e := ev.(type) {
		case platform.ConnectionUpdate:
			r.handleConnectionUpdate(tenantID, c, e)
		case platform.MessagesUpsert:
			r.handleMessagesUpsert(tenantID, e)
		case platform.CredsUpdate:
			if err := r.cfg.Store.Save(tenantID, e.Auth); err != nil {
				log.Printf("[session][tenant=%s] error saving creds: %v", tenantID, err)
			}
		}
	}
}

func (r *Registry) handleConnectionUpdate(tenantID string, c *client, update platform.ConnectionUpdate) {
	if update.QR != "" {
		dataURI, err := qrDataURI(update.QR)
		if err != nil {
			log.Printf("[session][tenant=%s] failed to render pairing challenge: %v", tenantID, err)
		} else {
			log.Printf("[session][tenant=%s] pairing challenge received, emitting", tenantID)
			r.cfg.Events.ToTenant(tenantID, "qr", qrPayload{
				QR:        update.QR,
				DataURI:   dataURI,
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}

	switch update.Connection {
	case platform.ConnStateOpen:
		log.Printf("[session][tenant=%s] connection open", tenantID)
		r.mu.Lock()
		if r.clients[tenantID] == c {
			c.ready = true
			r.resetAttempts[tenantID] = 0
		}
		r.mu.Unlock()
		r.cfg.Events.ToTenant(tenantID, "whatsapp_connected", statusPayload{Status: StatusConnected})
		r.cfg.Events.ToTenant(tenantID, "status_change", statusPayload{Status: StatusConnected})

	case platform.ConnStateClose:
		if !r.retireClient(tenantID, c) {
			// A socket logged out by Disconnect or Reset still reports its
			// own close; the registered session has moved on, so neither a
			// reconnect nor a reset may be scheduled for it.
			log.Printf("[session][tenant=%s] ignoring close from superseded socket", tenantID)
			return
		}
		log.Printf("[session][tenant=%s] connection closed", tenantID)
		r.cfg.Events.ToTenant(tenantID, "status_change", statusPayload{Status: StatusDisconnected})

		if r.cfg.Classify(update.LastDisconnect) == platform.DisconnectRecoverable {
			r.scheduleReconnect(tenantID)
			return
		}

		r.mu.Lock()
		attempts := r.resetAttempts[tenantID]
		underCeiling := attempts < r.cfg.MaxAutoReset
		if underCeiling {
			r.resetAttempts[tenantID] = attempts + 1
		}
		r.mu.Unlock()

		if underCeiling {
			log.Printf("[session][tenant=%s] logged out, scheduling automatic reset (attempt %d)", tenantID, attempts+1)
			r.scheduleReset(tenantID)
			return
		}

		log.Printf("[session][tenant=%s] max auto-reset attempts reached, manual reconfigure required", tenantID)
		r.cfg.Events.ToTenant(tenantID, "status_change", statusPayload{Status: StatusUnauthorized})
		incUnauthorized()
	}
}

// scheduleReconnect re-establishes the session after a short delay. The
// generation captured here lets the callback detect an intervening Start,
// Disconnect or Reset and stand down.
func (r *Registry) scheduleReconnect(tenantID string) {
	gen := r.currentGen(tenantID)
	incReconnects()
	log.Printf("[session][tenant=%s] reconnecting in %s", tenantID, r.cfg.ReconnectDelay)
	time.AfterFunc(r.cfg.ReconnectDelay, func() {
		if r.currentGen(tenantID) != gen {
			log.Printf("[session][tenant=%s] skipping stale reconnect", tenantID)
			return
		}
		if err := r.Start(tenantID); err != nil {
			log.Printf("[session][tenant=%s] reconnect failed: %v", tenantID, err)
		}
	})
}

func (r *Registry) scheduleReset(tenantID string) {
	gen := r.currentGen(tenantID)
	incAutoResets()
	time.AfterFunc(r.cfg.ResetDelay, func() {
		if r.currentGen(tenantID) != gen {
			log.Printf("[session][tenant=%s] skipping stale auto-reset", tenantID)
			return
		}
		if err := r.Reset(tenantID); err != nil {
			log.Printf("[session][tenant=%s] auto-reset failed: %v", tenantID, err)
		}
	})
}

func (r *Registry) handleMessagesUpsert(tenantID string, batch platform.MessagesUpsert) {
	for _, msg := range batch.Messages {
		if msg.FromMe {
			continue
		}
		if err := r.handleIncomingMessage(tenantID, msg); err != nil {
			// One malformed message must not take the session down or
			// block the rest of the batch.
			log.Printf("[session][tenant=%s] error handling incoming message: %v", tenantID, err)
		}
	}
}

func (r *Registry) handleIncomingMessage(tenantID string, msg platform.IncomingMessage) error {
	contactNumber := contactFromAddress(msg.RemoteAddress)
	if contactNumber == "" {
		return fmt.Errorf("message without routing address")
	}

	content, preview, msgType := normalizeContent(msg)

	contactName := msg.PushName
	if contactName == "" {
		contactName = contactNumber
	}

	log.Printf("[session][tenant=%s] incoming %s -> %q", tenantID, contactNumber, preview)

	conv, message, err := r.cfg.Conversations.RecordIncoming(context.Background(), conversation.IncomingParams{
		TenantID:      tenantID,
		ContactNumber: contactNumber,
		ContactName:   contactName,
		Platform:      model.PlatformWhatsApp,
		Content:       content,
		Preview:       preview,
		Type:          msgType,
	})
	if err != nil {
		return fmt.Errorf("persist incoming message: %w", err)
	}

	r.cfg.Events.ToTenant(tenantID, "incoming_message", messagePayload{
		Message:       message,
		ContactName:   conv.ContactName,
		ContactNumber: conv.ContactNumber,
	})
	r.cfg.Events.ToTenant(tenantID, "chat:updated", conv)

	// Orchestration runs off the event loop; a slow analysis call must not
	// delay the next message in the batch.
	if r.cfg.OnInbound != nil && msgType == model.MessageTypeText {
		go r.cfg.OnInbound(context.Background(), tenantID, conv.ID, content)
	}
	return nil
}

// normalizeContent flattens the platform's union of payload shapes into the
// canonical message content, the conversation-list preview and the type.
func normalizeContent(msg platform.IncomingMessage) (content, preview, msgType string) {
	switch {
	case msg.Conversation != "":
		return msg.Conversation, msg.Conversation, model.MessageTypeText
	case msg.ExtendedText != "":
		return msg.ExtendedText, msg.ExtendedText, model.MessageTypeText
	case msg.Image != nil:
		preview = msg.Image.Caption
		if preview == "" {
			preview = "[Image]"
		}
		return "[Image]", preview, model.MessageTypeImage
	case msg.Video != nil:
		content = msg.Video.Caption
		if content == "" {
			content = "[Video]"
		}
		return content, content, model.MessageTypeText
	default:
		return "[Unsupported]", "[Unsupported]", model.MessageTypeText
	}
}

func contactFromAddress(address string) string {
	if i := strings.Index(address, "@"); i >= 0 {
		return address[:i]
	}
	return address
}

func (r *Registry) readyClient(tenantID string) (*client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[tenantID]
	if !ok || !c.ready {
		return nil, ErrSessionNotConnected
	}
	return c, nil
}

// SendText dispatches an agent reply through the tenant's session, persists
// the outbound message and notifies the tenant's other staff clients.
func (r *Registry) SendText(ctx context.Context, tenantID, conversationID, text string) (model.Message, error) {
	return r.sendText(ctx, tenantID, conversationID, text, model.SenderAgent)
}

// SendAutoReply delivers a generated answer through the tenant's session.
// It differs from SendText only in the recorded sender, so automated
// replies stay distinguishable from agent ones in the transcript.
func (r *Registry) SendAutoReply(ctx context.Context, tenantID, conversationID, text string) (model.Message, error) {
	return r.sendText(ctx, tenantID, conversationID, text, model.SenderAI)
}

func (r *Registry) sendText(ctx context.Context, tenantID, conversationID, text, sender string) (model.Message, error) {
	c, err := r.readyClient(tenantID)
	if err != nil {
		return model.Message{}, err
	}

	conv, err := r.cfg.Conversations.GetConversation(ctx, tenantID, conversationID)
	if err != nil {
		return model.Message{}, fmt.Errorf("conversation not found: %w", err)
	}
	if conv.ContactNumber == "" {
		return model.Message{}, fmt.Errorf("conversation %s has no contact address", conversationID)
	}

	if err := c.sock.SendText(ctx, platformAddress(conv.ContactNumber), text); err != nil {
		return model.Message{}, fmt.Errorf("platform send: %w", err)
	}

	updated, message, err := r.cfg.Conversations.RecordOutgoing(ctx, tenantID, conversationID, sender, text, model.MessageTypeText, "")
	if err != nil {
		return model.Message{}, fmt.Errorf("persist outgoing message: %w", err)
	}

	r.cfg.Events.ToTenant(tenantID, "member_sent_message", message)
	r.cfg.Events.ToTenant(tenantID, "chat:updated", updated)
	r.cfg.Events.ToConversation(conversationID, "member_sent_message", message)
	log.Printf("[session][tenant=%s] sent -> %q", tenantID, text)
	return message, nil
}

// SendImageParams carries an outbound image, either inline (base64) or by
// URL. Exactly one of the two sources must be set.
type SendImageParams struct {
	ConversationID string `json:"conversationId"`
	ImageURL       string `json:"imageUrl,omitempty"`
	Base64         string `json:"base64,omitempty"`
	Caption        string `json:"caption,omitempty"`
}

func (r *Registry) SendImage(ctx context.Context, tenantID string, params SendImageParams) (model.Message, error) {
	c, err := r.readyClient(tenantID)
	if err != nil {
		return model.Message{}, err
	}

	conv, err := r.cfg.Conversations.GetConversation(ctx, tenantID, params.ConversationID)
	if err != nil {
		return model.Message{}, fmt.Errorf("conversation not found: %w", err)
	}
	if conv.ContactNumber == "" {
		return model.Message{}, fmt.Errorf("conversation %s has no contact address", params.ConversationID)
	}

	image, err := resolveImage(ctx, params)
	if err != nil {
		return model.Message{}, err
	}

	if err := c.sock.SendImage(ctx, platformAddress(conv.ContactNumber), image, params.Caption); err != nil {
		return model.Message{}, fmt.Errorf("platform send: %w", err)
	}

	content := params.Caption
	if content == "" {
		content = "[Image]"
	}
	updated, message, err := r.cfg.Conversations.RecordOutgoing(ctx, tenantID, params.ConversationID, model.SenderAgent, content, model.MessageTypeImage, params.ImageURL)
	if err != nil {
		return model.Message{}, fmt.Errorf("persist outgoing message: %w", err)
	}

	r.cfg.Events.ToTenant(tenantID, "member_sent_message", message)
	r.cfg.Events.ToTenant(tenantID, "chat:updated", updated)
	r.cfg.Events.ToConversation(params.ConversationID, "member_sent_message", message)
	log.Printf("[session][tenant=%s] sent image -> %q", tenantID, content)
	return message, nil
}

func resolveImage(ctx context.Context, params SendImageParams) ([]byte, error) {
	if params.Base64 != "" {
		image, err := base64.StdEncoding.DecodeString(params.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return image, nil
	}

	if params.ImageURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.ImageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch image: unexpected status %d", res.StatusCode)
		}
		image, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		return image, nil
	}

	return nil, fmt.Errorf("no image provided")
}

func platformAddress(contactNumber string) string {
	return contactNumber + "@s.whatsapp.net"
}

type qrPayload struct {
	QR        string `json:"qr"`
	DataURI   string `json:"dataUri"`
	Timestamp int64  `json:"timestamp"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type messagePayload struct {
	model.Message
	ContactName   string `json:"contactName"`
	ContactNumber string `json:"contactNumber"`
}
