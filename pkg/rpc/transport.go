package rpc

import "context"

// EventKind identifies a TransportEvent.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventMessage
	EventDisconnected
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// TransportEvent is emitted on the channel returned by Transport.Events.
// Data is set for EventMessage, Err for EventDisconnected and EventError.
type TransportEvent struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Transport is a framed, bidirectional message channel to one node.
//
// A successful Dial opens a fresh event stream that starts with EventConnected
// and ends with exactly one EventDisconnected, after which the channel is
// closed. Messages on a live connection are sent in call order; nothing is
// carried across a reconnect.
type Transport interface {
	// Dial connects to url. Failures wrap ErrConnection.
	Dial(ctx context.Context, url string) error
	// Send writes one frame. It fails with ErrNotConnected when there is no
	// live connection.
	Send(ctx context.Context, data []byte) error
	// Close tears down the live connection, if any.
	Close() error
	// Events returns the stream of the most recent Dial.
	Events() <-chan TransportEvent
	IsConnected() bool
}
