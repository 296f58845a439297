// Package devsock is a loopback platform adapter for local development. It
// self-pairs after publishing one pairing challenge and echoes sent messages
// back as inbound traffic so the full pipeline can be exercised without the
// real platform.
package devsock

import (
	"context"
	"log"
	"sync"
	"time"

	"support-desk-backend/internal/platform"

	"github.com/google/uuid"
)

const credsFile = "creds.json"

func init() {
	platform.RegisterDialer("dev", Dial)
}

type socket struct {
	events chan platform.Event

	mu     sync.Mutex
	closed bool
}

func Dial(ctx context.Context, auth platform.AuthState) (platform.Socket, error) {
	s := &socket{events: make(chan platform.Event, 16)}

	go func() {
		if len(auth) == 0 {
			s.emit(platform.ConnectionUpdate{QR: uuid.NewString()})
			time.Sleep(200 * time.Millisecond)
			s.emit(platform.CredsUpdate{Auth: platform.AuthState{
				credsFile: []byte(`{"paired":true}`),
			}})
		}
		s.emit(platform.ConnectionUpdate{Connection: platform.ConnStateOpen})
	}()

	return s, nil
}

func (s *socket) Events() <-chan platform.Event {
	return s.events
}

func (s *socket) SendText(ctx context.Context, address, text string) error {
	log.Printf("devsock: text to %s: %s", address, text)
	s.emit(platform.MessagesUpsert{Messages: []platform.IncomingMessage{{
		RemoteAddress: address,
		PushName:      "Dev Echo",
		Conversation:  "echo: " + text,
	}}})
	return nil
}

func (s *socket) SendImage(ctx context.Context, address string, image []byte, caption string) error {
	log.Printf("devsock: image to %s (%d bytes): %s", address, len(image), caption)
	return nil
}

func (s *socket) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.events <- platform.ConnectionUpdate{
		Connection:     platform.ConnStateClose,
		LastDisconnect: &platform.Disconnect{StatusCode: 401, Reason: "logout"},
	}
	close(s.events)
	return nil
}

func (s *socket) emit(ev platform.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Printf("devsock: dropping event, buffer full")
	}
}
