package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/queue"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/telemetry"
)

const (
	// PeerIDMaxRetries represents the maximum number of retries when generating a unique ID
	PeerIDMaxRetries = 1024
)

// Peer represents a connected remote endpoint.
type Peer struct {
	ID          uint32
	Link        Link
	ConnectedAt time.Time
}

// PeerManager tracks the links to remote peers and feeds their traffic into
// the inbound queue. Peer events and decoded envelopes are both enqueued so
// the tick goroutine observes them in arrival order.
type PeerManager struct {
	peers     map[uint32]*Peer
	peersLock sync.RWMutex
	nextID    uint32
	queue     queue.Queue
	framer    *Framer
	logger    *log.Logger
}

// NewPeerManager creates a PeerManager that enqueues onto q.
func NewPeerManager(q queue.Queue, framer *Framer) *PeerManager {
	return &PeerManager{
		peers:  make(map[uint32]*Peer),
		nextID: 1,
		queue:  q,
		framer: framer,
		logger: log.Named("peers"),
	}
}

// Framer returns the framer shared by every link of this manager.
func (pm *PeerManager) Framer() *Framer {
	return pm.framer
}

// Connect registers a new link under a fresh peer id.
func (pm *PeerManager) Connect(link Link) (uint32, error) {
	pm.peersLock.Lock()
	defer pm.peersLock.Unlock()

	peerID, err := pm.generateUniqueID(PeerIDMaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to generate a unique ID: %w", err)
	}
	if err := pm.attach(peerID, link); err != nil {
		return 0, err
	}
	return peerID, nil
}

// Attach registers a link under a known peer id, e.g. the server on a client.
func (pm *PeerManager) Attach(peerID uint32, link Link) error {
	pm.peersLock.Lock()
	defer pm.peersLock.Unlock()
	return pm.attach(peerID, link)
}

// attach must be called with the lock held.
func (pm *PeerManager) attach(peerID uint32, link Link) error {
	if _, exists := pm.peers[peerID]; exists {
		return fmt.Errorf("peer %d is already connected", peerID)
	}

	pm.peers[peerID] = &Peer{
		ID:          peerID,
		Link:        link,
		ConnectedAt: time.Now(),
	}
	telemetry.ConnectedPeers.Inc()

	event := &PeerEvent{
		PeerID: peerID,
		Type:   PeerEventTypeConnect,
		Link:   link,
	}
	if err := pm.queue.Enqueue(event); err != nil {
		delete(pm.peers, peerID)
		telemetry.ConnectedPeers.Dec()
		return fmt.Errorf("failed to enqueue connect event for peer %d: %w", peerID, err)
	}

	pm.logger.Debug("Peer %d connected from %s", peerID, link.RemoteAddr())
	return nil
}

// Disconnect closes and forgets the link of a peer. Unknown peers are ignored.
func (pm *PeerManager) Disconnect(peerID uint32, cause error) {
	pm.peersLock.Lock()
	peer, ok := pm.peers[peerID]
	if ok {
		delete(pm.peers, peerID)
		telemetry.ConnectedPeers.Dec()
	}
	pm.peersLock.Unlock()

	if !ok {
		return
	}

	if err := peer.Link.Close(); err != nil {
		pm.logger.Trace("Failed to close link of peer %d: %v", peerID, err)
	}

	event := &PeerEvent{
		PeerID: peerID,
		Type:   PeerEventTypeDisconnect,
		Err:    cause,
	}
	if err := pm.queue.Enqueue(event); err != nil {
		pm.logger.Error("Failed to enqueue disconnect event for peer %d: %v", peerID, err)
	}

	pm.logger.Debug("Peer %d disconnected", peerID)
}

// DisconnectAll closes every link.
func (pm *PeerManager) DisconnectAll(cause error) {
	for _, peer := range pm.Peers() {
		pm.Disconnect(peer.ID, cause)
	}
}

// Deliver unframes and decodes a frame received from peerID and enqueues it.
// Malformed frames are logged and dropped.
func (pm *PeerManager) Deliver(peerID uint32, frame []byte) error {
	b, err := pm.framer.Unframe(frame)
	if err != nil {
		telemetry.MalformedFrames.Inc()
		pm.logger.Warn("Dropping frame from peer %d: %v", peerID, err)
		return err
	}

	env, err := messages.Decode(b)
	if err != nil {
		telemetry.MalformedFrames.Inc()
		pm.logger.Warn("Dropping frame from peer %d: %v", peerID, err)
		return err
	}
	telemetry.MessagesReceived.WithLabelValues(env.Category.String(), env.Type.String()).Inc()
	pm.logger.Trace("Received %s from peer %d", env, peerID)

	inbound := &Inbound{
		PeerID:     peerID,
		Envelope:   env,
		ReceivedAt: time.Now(),
	}
	if err := pm.queue.Enqueue(inbound); err != nil {
		return fmt.Errorf("failed to enqueue envelope from peer %d: %w", peerID, err)
	}
	return nil
}

// FrameReader reads one frame from a link-specific connection.
type FrameReader func(ctx context.Context) ([]byte, error)

// ReadLoop delivers frames until read fails, then disconnects the peer.
func (pm *PeerManager) ReadLoop(ctx context.Context, peerID uint32, read FrameReader) {
	for {
		frame, err := read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrLinkClosed) {
				pm.Disconnect(peerID, nil)
				return
			}
			pm.logger.Debug("Read from peer %d failed: %v", peerID, err)
			pm.Disconnect(peerID, fmt.Errorf("%w: %v", ErrPeerUnreachable, err))
			return
		}
		if err := pm.Deliver(peerID, frame); err != nil && !errors.Is(err, messages.ErrMalformedEnvelope) {
			pm.logger.Error("Failed to deliver frame from peer %d: %v", peerID, err)
		}
	}
}

// Get returns the peer with the given id.
func (pm *PeerManager) Get(peerID uint32) (*Peer, bool) {
	pm.peersLock.RLock()
	defer pm.peersLock.RUnlock()
	peer, ok := pm.peers[peerID]
	return peer, ok
}

// Exists reports whether a peer is connected.
func (pm *PeerManager) Exists(peerID uint32) bool {
	_, ok := pm.Get(peerID)
	return ok
}

// Peers returns the connected peers ordered by id.
func (pm *PeerManager) Peers() []*Peer {
	pm.peersLock.RLock()
	defer pm.peersLock.RUnlock()
	peers := make([]*Peer, 0, len(pm.peers))
	for _, peer := range pm.peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

// Count returns the number of connected peers.
func (pm *PeerManager) Count() int {
	pm.peersLock.RLock()
	defer pm.peersLock.RUnlock()
	return len(pm.peers)
}

// generateUniqueID generates a unique peer ID with a maximum number of retries.
// Zero is reserved for the server. Must be called with the lock held.
func (pm *PeerManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := pm.nextID
		pm.nextID++
		if id == messages.ServerOrigin {
			continue
		}
		if _, ok := pm.peers[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
