package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"support-desk-backend/internal/model"
	"support-desk-backend/internal/platform"
	"support-desk-backend/internal/service/conversation"
)

type fakeSocket struct {
	events chan platform.Event

	// logoutClose, when set, is reported as a trailing close event by
	// Logout, the way real platform sockets announce their own teardown.
	logoutClose *platform.Disconnect

	mu        sync.Mutex
	sentTexts []string
	sentTo    []string
	loggedOut bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{events: make(chan platform.Event, 32)}
}

func (s *fakeSocket) Events() <-chan platform.Event { return s.events }

func (s *fakeSocket) SendText(ctx context.Context, address, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentTexts = append(s.sentTexts, text)
	s.sentTo = append(s.sentTo, address)
	return nil
}

func (s *fakeSocket) SendImage(ctx context.Context, address string, image []byte, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentTo = append(s.sentTo, address)
	return nil
}

func (s *fakeSocket) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loggedOut {
		s.loggedOut = true
		if s.logoutClose != nil {
			s.events <- platform.ConnectionUpdate{
				Connection:     platform.ConnStateClose,
				LastDisconnect: s.logoutClose,
			}
		}
		close(s.events)
	}
	return nil
}

func (s *fakeSocket) emit(ev platform.Event) {
	s.events <- ev
}

type fakeDialer struct {
	// logoutClose is copied onto every dialed socket.
	logoutClose *platform.Disconnect

	mu      sync.Mutex
	sockets []*fakeSocket
	auths   []platform.AuthState
}

func (d *fakeDialer) dial(ctx context.Context, auth platform.AuthState) (platform.Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sock := newFakeSocket()
	sock.logoutClose = d.logoutClose
	d.sockets = append(d.sockets, sock)
	d.auths = append(d.auths, auth)
	return sock, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[i]
}

func (d *fakeDialer) auth(i int) platform.AuthState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.auths[i]
}

type recordedEvent struct {
	room    string
	event   string
	payload interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) ToTenant(tenantID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{room: "tenant:" + tenantID, event: event, payload: payload})
}

func (b *fakeBroadcaster) ToConversation(conversationID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{room: "conversation:" + conversationID, event: event, payload: payload})
}

func (b *fakeBroadcaster) find(event string) (recordedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.event == event {
			return e, true
		}
	}
	return recordedEvent{}, false
}

func (b *fakeBroadcaster) countOf(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type fakeConversations struct {
	mu       sync.Mutex
	incoming []conversation.IncomingParams
	outgoing []string
	senders  []string
	conv     model.Conversation
	err      error
}

func (f *fakeConversations) RecordIncoming(ctx context.Context, params conversation.IncomingParams) (model.Conversation, model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Conversation{}, model.Message{}, f.err
	}
	f.incoming = append(f.incoming, params)
	conv := f.conv
	if conv.ID == "" {
		conv.ID = "conv-1"
	}
	conv.ContactName = params.ContactName
	conv.ContactNumber = params.ContactNumber
	return conv, model.Message{ID: "msg-1", Content: params.Content, Type: params.Type}, nil
}

func (f *fakeConversations) RecordOutgoing(ctx context.Context, tenantID, conversationID, sender, content, msgType, mediaURL string) (model.Conversation, model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Conversation{}, model.Message{}, f.err
	}
	f.outgoing = append(f.outgoing, content)
	f.senders = append(f.senders, sender)
	return f.conv, model.Message{ID: "msg-out", Sender: sender, Content: content, Type: msgType}, nil
}

func (f *fakeConversations) GetConversation(ctx context.Context, tenantID, conversationID string) (model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conv.ID == "" {
		return model.Conversation{}, errors.New("not found")
	}
	return f.conv, nil
}

func (f *fakeConversations) incomingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.incoming)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestRegistry(t *testing.T) (*Registry, *fakeDialer, *fakeBroadcaster, *fakeConversations, *Store) {
	t.Helper()
	store := NewStore(t.TempDir())
	dialer := &fakeDialer{}
	events := &fakeBroadcaster{}
	convs := &fakeConversations{}
	r := NewRegistry(Config{
		Store:          store,
		Dial:           dialer.dial,
		Conversations:  convs,
		Events:         events,
		ReconnectDelay: 10 * time.Millisecond,
		ResetDelay:     10 * time.Millisecond,
	})
	return r, dialer, events, convs, store
}

func TestStartIsIdempotent(t *testing.T) {
	r, dialer, _, _, _ := newTestRegistry(t)

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start("t1"); err != nil {
		t.Fatalf("second start: %v", err)
	}

	if got := dialer.count(); got != 1 {
		t.Fatalf("dialed %d times, want 1", got)
	}
}

func TestStartPublishesPairingChallenge(t *testing.T) {
	r, dialer, events, _, _ := newTestRegistry(t)

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.ConnectionUpdate{QR: "challenge-1"})

	waitFor(t, "qr event", func() bool {
		_, ok := events.find("qr")
		return ok
	})

	ev, _ := events.find("qr")
	if ev.room != "tenant:t1" {
		t.Fatalf("qr published to %s, want tenant:t1", ev.room)
	}
	payload := ev.payload.(qrPayload)
	if payload.QR != "challenge-1" {
		t.Fatalf("payload QR = %q", payload.QR)
	}
	if !strings.HasPrefix(payload.DataURI, "data:image/png;base64,") {
		t.Fatalf("payload DataURI = %q, want png data URI", payload.DataURI)
	}
	if payload.Timestamp == 0 {
		t.Fatal("payload timestamp not set")
	}
}

func TestOpenMarksConnected(t *testing.T) {
	r, dialer, events, _, _ := newTestRegistry(t)

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})

	waitFor(t, "connected status", func() bool {
		return r.Status("t1").Connected
	})

	info := r.Status("t1")
	if info.Status != StatusConnected || !info.Initialized {
		t.Fatalf("status = %+v", info)
	}
	if _, ok := events.find("whatsapp_connected"); !ok {
		t.Fatal("whatsapp_connected not emitted")
	}
}

func TestStatusBeforeStart(t *testing.T) {
	r, _, _, _, store := newTestRegistry(t)

	if got := r.Status("t1").Status; got != StatusInactive {
		t.Fatalf("status = %q, want inactive", got)
	}

	if err := store.Save("t1", platform.AuthState{"creds.json": []byte("{}")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	info := r.Status("t1")
	if info.Status != StatusDisconnected || !info.Initialized {
		t.Fatalf("status = %+v, want disconnected/initialized", info)
	}
}

func TestTransientDropReconnects(t *testing.T) {
	r, dialer, _, _, store := newTestRegistry(t)

	if err := store.Save("t1", platform.AuthState{"creds.json": []byte("{}")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	sock := dialer.socket(0)
	sock.emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	sock.emit(platform.ConnectionUpdate{
		Connection:     platform.ConnStateClose,
		LastDisconnect: &platform.Disconnect{StatusCode: 500, Reason: "stream error"},
	})

	waitFor(t, "reconnect dial", func() bool {
		return dialer.count() == 2
	})

	// A transient drop must not cost the pairing.
	if !store.Exists("t1") {
		t.Fatal("credentials were wiped on a transient drop")
	}
	if len(dialer.auth(1)) == 0 {
		t.Fatal("reconnect dialed without persisted credentials")
	}
}

func TestLoggedOutRepairsExactlyOnce(t *testing.T) {
	r, dialer, events, _, store := newTestRegistry(t)

	if err := store.Save("t1", platform.AuthState{"creds.json": []byte("{}")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	logout := platform.ConnectionUpdate{
		Connection:     platform.ConnStateClose,
		LastDisconnect: &platform.Disconnect{StatusCode: 401},
	}

	dialer.socket(0).emit(logout)
	waitFor(t, "auto-reset dial", func() bool {
		return dialer.count() == 2
	})

	// The reset wiped the credentials, so the re-pair dial starts unpaired.
	if len(dialer.auth(1)) != 0 {
		t.Fatalf("re-pair dialed with stale credentials: %v", dialer.auth(1))
	}

	dialer.socket(1).emit(logout)
	time.Sleep(100 * time.Millisecond)

	if got := dialer.count(); got != 2 {
		t.Fatalf("dialed %d times, want 2 (one auto-reset only)", got)
	}

	waitFor(t, "unauthorized status", func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		for _, e := range events.events {
			if e.event == "status_change" {
				if p, ok := e.payload.(statusPayload); ok && p.Status == StatusUnauthorized {
					return true
				}
			}
		}
		return false
	})
}

func TestSuccessfulConnectAllowsRepairAgain(t *testing.T) {
	r, dialer, _, _, store := newTestRegistry(t)

	if err := store.Save("t1", platform.AuthState{"creds.json": []byte("{}")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	logout := platform.ConnectionUpdate{
		Connection:     platform.ConnStateClose,
		LastDisconnect: &platform.Disconnect{Reason: "401"},
	}

	dialer.socket(0).emit(logout)
	waitFor(t, "auto-reset dial", func() bool { return dialer.count() == 2 })

	// A successful pairing afterwards makes the single automatic re-pair available again.
	dialer.socket(1).emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "connected", func() bool { return r.Status("t1").Connected })

	dialer.socket(1).emit(logout)
	waitFor(t, "second auto-reset dial", func() bool { return dialer.count() == 3 })
}

func TestDisconnectKeepsCredentials(t *testing.T) {
	r, dialer, _, _, store := newTestRegistry(t)

	if err := store.Save("t1", platform.AuthState{"creds.json": []byte("{}")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "connected", func() bool { return r.Status("t1").Connected })

	r.Disconnect("t1")

	info := r.Status("t1")
	if info.Status != StatusDisconnected {
		t.Fatalf("status after disconnect = %q", info.Status)
	}
	if !store.Exists("t1") {
		t.Fatal("disconnect must keep the persisted pairing")
	}
}

func TestDisconnectIgnoresTrailingClose(t *testing.T) {
	r, dialer, _, _, store := newTestRegistry(t)
	dialer.logoutClose = &platform.Disconnect{StatusCode: 401, Reason: "logout"}

	if err := store.Save("t1", platform.AuthState{"creds.json": []byte("{}")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "connected", func() bool { return r.Status("t1").Connected })

	r.Disconnect("t1")

	// The logged-out socket reports its own close with a logout status. It
	// must not schedule a reconnect or an auto-reset for the disabled
	// session; the delays are 10ms, so 100ms is enough to catch either.
	time.Sleep(100 * time.Millisecond)

	if got := dialer.count(); got != 1 {
		t.Fatalf("dial count = %d, the trailing close resurrected the session", got)
	}
	if info := r.Status("t1"); info.Status != StatusDisconnected {
		t.Fatalf("status after disconnect = %q, want %q", info.Status, StatusDisconnected)
	}
	if !store.Exists("t1") {
		t.Fatal("the trailing close must not wipe the persisted pairing")
	}
}

func TestResetSurvivesOldSocketClose(t *testing.T) {
	r, dialer, _, _, _ := newTestRegistry(t)
	dialer.logoutClose = &platform.Disconnect{StatusCode: 500, Reason: "connection lost"}

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "connected", func() bool { return r.Status("t1").Connected })

	if err := r.Reset("t1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	waitFor(t, "second dial", func() bool { return dialer.count() == 2 })

	dialer.socket(1).emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "successor connected", func() bool { return r.Status("t1").Connected })

	// The old socket's close must not tear down the successor session or
	// schedule a reconnect on its behalf.
	time.Sleep(100 * time.Millisecond)

	if info := r.Status("t1"); !info.Connected {
		t.Fatalf("status after reset = %q, the old socket's close tore down the successor", info.Status)
	}
	if got := dialer.count(); got != 2 {
		t.Fatalf("dial count = %d, want 2", got)
	}
}

func TestCredsUpdatePersisted(t *testing.T) {
	r, dialer, _, _, store := newTestRegistry(t)

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.CredsUpdate{Auth: platform.AuthState{
		"creds.json": []byte(`{"paired":true}`),
	}})

	waitFor(t, "creds persisted", func() bool {
		return store.Exists("t1")
	})

	auth, err := store.Load("t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(auth["creds.json"]) != `{"paired":true}` {
		t.Fatalf("persisted creds = %q", auth["creds.json"])
	}
}

func TestInboundMessagePersistedAndBroadcast(t *testing.T) {
	r, dialer, events, convs, _ := newTestRegistry(t)

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.MessagesUpsert{Messages: []platform.IncomingMessage{
		{FromMe: true, RemoteAddress: "111@s.whatsapp.net", Conversation: "own echo"},
		{RemoteAddress: "4915551234@s.whatsapp.net", PushName: "Ada", Conversation: "hello"},
	}})

	waitFor(t, "incoming recorded", func() bool {
		return convs.incomingCount() == 1
	})

	convs.mu.Lock()
	got := convs.incoming[0]
	convs.mu.Unlock()
	if got.ContactNumber != "4915551234" {
		t.Fatalf("contact number = %q", got.ContactNumber)
	}
	if got.ContactName != "Ada" {
		t.Fatalf("contact name = %q", got.ContactName)
	}
	if got.Platform != model.PlatformWhatsApp {
		t.Fatalf("platform = %q", got.Platform)
	}
	if got.Content != "hello" || got.Type != model.MessageTypeText {
		t.Fatalf("content = %q type = %q", got.Content, got.Type)
	}

	waitFor(t, "incoming_message event", func() bool {
		return events.countOf("incoming_message") == 1
	})
}

func TestInboundHookReceivesTextMessages(t *testing.T) {
	store := NewStore(t.TempDir())
	dialer := &fakeDialer{}
	convs := &fakeConversations{}

	type hookCall struct {
		tenantID, conversationID, content string
	}
	calls := make(chan hookCall, 1)

	r := NewRegistry(Config{
		Store:         store,
		Dial:          dialer.dial,
		Conversations: convs,
		Events:        &fakeBroadcaster{},
		OnInbound: func(ctx context.Context, tenantID, conversationID, content string) {
			calls <- hookCall{tenantID, conversationID, content}
		},
	})

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	dialer.socket(0).emit(platform.MessagesUpsert{Messages: []platform.IncomingMessage{
		{RemoteAddress: "42@s.whatsapp.net", Conversation: "need help"},
	}})

	select {
	case call := <-calls:
		if call.tenantID != "t1" || call.conversationID != "conv-1" || call.content != "need help" {
			t.Fatalf("hook call = %+v", call)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound hook never ran")
	}
}

func TestSendTextRequiresConnection(t *testing.T) {
	r, _, _, convs, _ := newTestRegistry(t)

	_, err := r.SendText(context.Background(), "t1", "conv-1", "hi")
	if !errors.Is(err, ErrSessionNotConnected) {
		t.Fatalf("err = %v, want ErrSessionNotConnected", err)
	}
	if len(convs.outgoing) != 0 {
		t.Fatal("nothing should be persisted for a failed send")
	}
}

func TestSendTextPersistsAndBroadcasts(t *testing.T) {
	r, dialer, events, convs, _ := newTestRegistry(t)
	convs.conv = model.Conversation{ID: "conv-1", ContactNumber: "4915551234"}

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	sock := dialer.socket(0)
	sock.emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "connected", func() bool { return r.Status("t1").Connected })

	msg, err := r.SendText(context.Background(), "t1", "conv-1", "on our way")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "on our way" {
		t.Fatalf("message content = %q", msg.Content)
	}

	sock.mu.Lock()
	to := sock.sentTo[0]
	sock.mu.Unlock()
	if to != "4915551234@s.whatsapp.net" {
		t.Fatalf("sent to %q", to)
	}

	if len(convs.outgoing) != 1 || convs.outgoing[0] != "on our way" {
		t.Fatalf("outgoing persisted = %v", convs.outgoing)
	}
	if convs.senders[0] != model.SenderAgent {
		t.Fatalf("sender = %q, want agent", convs.senders[0])
	}
	if _, ok := events.find("member_sent_message"); !ok {
		t.Fatal("member_sent_message not emitted")
	}
}

func TestSendAutoReplyPersistsAISender(t *testing.T) {
	r, dialer, _, convs, _ := newTestRegistry(t)
	convs.conv = model.Conversation{ID: "conv-1", ContactNumber: "4915551234"}

	if err := r.Start("t1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	sock := dialer.socket(0)
	sock.emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	waitFor(t, "connected", func() bool { return r.Status("t1").Connected })

	msg, err := r.SendAutoReply(context.Background(), "t1", "conv-1", "our refund policy is thirty days")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Sender != model.SenderAI {
		t.Fatalf("message sender = %q, want ai", msg.Sender)
	}
	if len(convs.senders) != 1 || convs.senders[0] != model.SenderAI {
		t.Fatalf("persisted senders = %v, want [ai]", convs.senders)
	}
}

func TestNormalizeContent(t *testing.T) {
	cases := []struct {
		name        string
		msg         platform.IncomingMessage
		wantContent string
		wantPreview string
		wantType    string
	}{
		{
			name:        "plain text",
			msg:         platform.IncomingMessage{Conversation: "hello"},
			wantContent: "hello", wantPreview: "hello", wantType: model.MessageTypeText,
		},
		{
			name:        "extended text",
			msg:         platform.IncomingMessage{ExtendedText: "quoted reply"},
			wantContent: "quoted reply", wantPreview: "quoted reply", wantType: model.MessageTypeText,
		},
		{
			name:        "image with caption",
			msg:         platform.IncomingMessage{Image: &platform.Media{Caption: "receipt"}},
			wantContent: "[Image]", wantPreview: "receipt", wantType: model.MessageTypeImage,
		},
		{
			name:        "image without caption",
			msg:         platform.IncomingMessage{Image: &platform.Media{}},
			wantContent: "[Image]", wantPreview: "[Image]", wantType: model.MessageTypeImage,
		},
		{
			name:        "video with caption",
			msg:         platform.IncomingMessage{Video: &platform.Media{Caption: "demo"}},
			wantContent: "demo", wantPreview: "demo", wantType: model.MessageTypeText,
		},
		{
			name:        "video without caption",
			msg:         platform.IncomingMessage{Video: &platform.Media{}},
			wantContent: "[Video]", wantPreview: "[Video]", wantType: model.MessageTypeText,
		},
		{
			name:        "unknown shape",
			msg:         platform.IncomingMessage{},
			wantContent: "[Unsupported]", wantPreview: "[Unsupported]", wantType: model.MessageTypeText,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content, preview, msgType := normalizeContent(tc.msg)
			if content != tc.wantContent || preview != tc.wantPreview || msgType != tc.wantType {
				t.Fatalf("got (%q, %q, %q), want (%q, %q, %q)",
					content, preview, msgType, tc.wantContent, tc.wantPreview, tc.wantType)
			}
		})
	}
}
