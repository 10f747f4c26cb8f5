package network

import (
	"context"
	"errors"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
)

var (
	// ErrPeerUnreachable is returned when a link can no longer deliver frames.
	ErrPeerUnreachable = errors.New("peer unreachable")
	// ErrLinkClosed is returned when writing to a link that was closed locally.
	ErrLinkClosed = errors.New("link closed")
)

// Link is a bidirectional transport to one remote peer. Send takes an encoded
// envelope; the link frames it. Implementations serialize concurrent Sends.
type Link interface {
	Send(ctx context.Context, b []byte) error
	Close() error
	RemoteAddr() string
}

// Inbound is a decoded envelope queued for the tick goroutine.
type Inbound struct {
	PeerID     uint32
	Envelope   *messages.Envelope
	ReceivedAt time.Time
}

// PeerEventType represents the type of a peer event
type PeerEventType int

const (
	PeerEventTypeConnect PeerEventType = iota
	PeerEventTypeDisconnect
)

func (t PeerEventType) String() string {
	switch t {
	case PeerEventTypeConnect:
		return "connect"
	case PeerEventTypeDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// PeerEvent represents a change in the set of connected peers.
// Link is set on connect, Err may be set on disconnect.
type PeerEvent struct {
	PeerID uint32
	Type   PeerEventType
	Link   Link
	Err    error
}
