// Package platform is the boundary to the external messaging platform. The
// session registry only ever sees these types; the concrete socket behind the
// Dialer is an external library adapter in production and a fake in tests.
package platform

import "context"

// AuthState is the multi-file credential set persisted per tenant. Keys are
// file names within the tenant's session directory, values are the raw file
// contents the platform library hands back on creds.update.
type AuthState map[string][]byte

// Socket is one live connection to the platform. Events are delivered on a
// single channel in platform order; the channel is closed when the socket is
// finished for good.
type Socket interface {
	Events() <-chan Event
	SendText(ctx context.Context, address, text string) error
	SendImage(ctx context.Context, address string, image []byte, caption string) error
	Logout(ctx context.Context) error
}

// Dialer opens a platform socket using previously persisted credentials. An
// empty AuthState starts an unpaired session, which will emit a pairing
// challenge on its connection updates.
type Dialer func(ctx context.Context, auth AuthState) (Socket, error)

type Event interface {
	isEvent()
}

type ConnState string

const (
	ConnStateOpen  ConnState = "open"
	ConnStateClose ConnState = "close"
)

// ConnectionUpdate mirrors the platform's connection.update event: an
// optional state transition, an optional pairing challenge, and details of
// the last disconnect when the state is close.
type ConnectionUpdate struct {
	Connection     ConnState
	QR             string
	LastDisconnect *Disconnect
}

func (ConnectionUpdate) isEvent() {}

// Disconnect carries the loosely-typed failure details the platform attaches
// to a close. No single field is authoritative; classification is a policy.
type Disconnect struct {
	StatusCode int
	Reason     string
	Message    string
}

// MessagesUpsert mirrors messages.upsert: a batch of inbound messages in
// delivery order.
type MessagesUpsert struct {
	Messages []IncomingMessage
}

func (MessagesUpsert) isEvent() {}

// CredsUpdate signals that credentials changed and must be re-persisted.
type CredsUpdate struct {
	Auth AuthState
}

func (CredsUpdate) isEvent() {}

// IncomingMessage is the loose union of payload shapes the platform emits.
// Exactly one of the content fields is normally set; unknown shapes leave
// them all empty.
type IncomingMessage struct {
	FromMe        bool
	RemoteAddress string // routing address, e.g. "4915551234@s.whatsapp.net"
	PushName      string

	Conversation string // plain text
	ExtendedText string // quoted/extended text
	Image        *Media
	Video        *Media
}

type Media struct {
	Caption string
	URL     string
}

// DisconnectClass is the outcome of close-reason classification.
type DisconnectClass int

const (
	// DisconnectRecoverable is an ordinary drop; the session reconnects
	// after a short delay.
	DisconnectRecoverable DisconnectClass = iota
	// DisconnectLoggedOut means the platform revoked the pairing; recovery
	// needs a credential wipe and a fresh pairing challenge.
	DisconnectLoggedOut
)

// Classifier decides whether a close was an authentication failure. The
// heuristics below are not assumed exhaustive, which is why the policy is
// injected rather than hard-coded in the registry.
type Classifier func(d *Disconnect) DisconnectClass
