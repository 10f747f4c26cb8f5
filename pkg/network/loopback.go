package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
)

// LoopbackLink delivers frames synchronously into another PeerManager in the
// same process. Drop can be set to simulate loss.
type LoopbackLink struct {
	target *PeerManager
	// as is the peer id the frames are attributed to on the target.
	as     uint32
	framer *Framer
	shared *loopbackState

	lock sync.Mutex
	drop func(env *messages.Envelope) bool
	sent int
}

type loopbackState struct {
	lock   sync.Mutex
	closed bool
}

// Loopback connects client to server. It returns the server-side link, the
// client-side link and the peer id the server assigned.
func Loopback(server, client *PeerManager) (*LoopbackLink, *LoopbackLink, uint32, error) {
	shared := &loopbackState{}
	toClient := &LoopbackLink{target: client, as: messages.ServerOrigin, framer: server.Framer(), shared: shared}

	peerID, err := server.Connect(toClient)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to connect loopback peer: %w", err)
	}

	toServer := &LoopbackLink{target: server, as: peerID, framer: client.Framer(), shared: shared}
	if err := client.Attach(messages.ServerOrigin, toServer); err != nil {
		server.Disconnect(peerID, nil)
		return nil, nil, 0, err
	}

	return toClient, toServer, peerID, nil
}

// SetDrop installs a filter; envelopes for which it returns true are lost.
func (l *LoopbackLink) SetDrop(drop func(env *messages.Envelope) bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.drop = drop
}

// Sent returns the number of frames delivered or dropped so far.
func (l *LoopbackLink) Sent() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.sent
}

func (l *LoopbackLink) Send(_ context.Context, b []byte) error {
	l.shared.lock.Lock()
	closed := l.shared.closed
	l.shared.lock.Unlock()
	if closed {
		return fmt.Errorf("%w: %w", ErrPeerUnreachable, ErrLinkClosed)
	}

	l.lock.Lock()
	l.sent++
	drop := l.drop
	l.lock.Unlock()

	if drop != nil {
		if env, err := messages.Decode(b); err == nil && drop(env) {
			return nil
		}
	}

	return l.target.Deliver(l.as, l.framer.Frame(b))
}

// Close closes both directions.
func (l *LoopbackLink) Close() error {
	l.shared.lock.Lock()
	defer l.shared.lock.Unlock()
	l.shared.closed = true
	return nil
}

func (l *LoopbackLink) RemoteAddr() string {
	return fmt.Sprintf("loopback:%d", l.as)
}
