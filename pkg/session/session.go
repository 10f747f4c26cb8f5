package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/delivery"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/telemetry"
)

// ErrDuplicateDelivery is returned by OnReceive for a registered id already seen.
// The receipt has been sent again; the envelope must not be processed.
var ErrDuplicateDelivery = errors.New("duplicate delivery")

const (
	DefaultPeerTimeout  = 10 * time.Second
	DefaultPingInterval = time.Second
)

// Session is the per-remote-peer endpoint. It is owned by the tick goroutine
// and must not be used concurrently.
type Session struct {
	peerID  uint32
	localID uint32
	link    network.Link
	tracker *delivery.Tracker
	seen    *idWindow

	timeout      time.Duration
	pingInterval time.Duration
	lastHeard    time.Time
	lastPing     time.Time

	rtts rttWindow
	ping float64

	failed bool
	closed bool

	logger *log.Logger
}

type NewSessionOptions struct {
	// PeerID identifies the remote end. The server is always messages.ServerOrigin.
	PeerID uint32
	// LocalID is written as Origin on every outgoing envelope.
	LocalID       uint32
	Link          network.Link
	RetryInterval time.Duration
	MaxRetries    int
	PeerTimeout   time.Duration
	PingInterval  time.Duration
}

// New creates a Session. now is taken as the last time the peer was heard.
func New(opts NewSessionOptions, now time.Time) *Session {
	if opts.PeerTimeout <= 0 {
		opts.PeerTimeout = DefaultPeerTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	return &Session{
		peerID:  opts.PeerID,
		localID: opts.LocalID,
		link:    opts.Link,
		tracker: delivery.NewTracker(delivery.NewTrackerOptions{
			RetryInterval: opts.RetryInterval,
			MaxRetries:    opts.MaxRetries,
		}),
		seen:         newIDWindow(),
		timeout:      opts.PeerTimeout,
		pingInterval: opts.PingInterval,
		lastHeard:    now,
		lastPing:     now,
		logger:       log.Named(fmt.Sprintf("session-%d", opts.PeerID)),
	}
}

func (s *Session) PeerID() uint32 {
	return s.peerID
}

func (s *Session) LocalID() uint32 {
	return s.localID
}

// SetLocalID changes the origin stamped on outgoing envelopes, e.g. once the
// server has assigned this client its id.
func (s *Session) SetLocalID(id uint32) {
	s.localID = id
}

// Send transmits env. Registered envelopes are copied and tracked, so one
// envelope can be sent to several sessions.
func (s *Session) Send(ctx context.Context, env *messages.Envelope, now time.Time) error {
	if s.closed {
		return fmt.Errorf("%w: session %d is closed", network.ErrPeerUnreachable, s.peerID)
	}

	out := env.Clone()
	out.Origin = s.localID
	if out.Category == messages.Registered {
		s.tracker.Register(out, now)
	}

	return s.write(ctx, out)
}

func (s *Session) write(ctx context.Context, env *messages.Envelope) error {
	b, err := messages.Encode(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", env, err)
	}
	if err := s.link.Send(ctx, b); err != nil {
		return fmt.Errorf("failed to send %s to peer %d: %w", env, s.peerID, err)
	}
	telemetry.MessagesSent.WithLabelValues(env.Category.String(), env.Type.String()).Inc()
	s.logger.Trace("Sent %s", env)
	return nil
}

// OnReceive handles the delivery bookkeeping of an inbound envelope and
// reports whether the caller should dispatch it. Receipts are consumed here,
// registered envelopes are acknowledged before dispatch, and ping/pong are
// answered here.
func (s *Session) OnReceive(ctx context.Context, env *messages.Envelope, now time.Time) (bool, error) {
	s.lastHeard = now

	switch env.Category {
	case messages.Receipt:
		if !s.tracker.Acknowledge(env.ID) {
			s.logger.Trace("Ignoring receipt for unknown id %d", env.ID)
		}
		return false, nil
	case messages.Registered:
		receiptErr := s.write(ctx, messages.NewReceipt(s.localID, env.ID))
		if s.seen.contains(env.ID) {
			telemetry.DuplicateDeliveries.Inc()
			return false, ErrDuplicateDelivery
		}
		s.seen.add(env.ID)
		if receiptErr != nil {
			return true, fmt.Errorf("failed to acknowledge %s: %w", env, receiptErr)
		}
		return true, nil
	}

	switch payload := env.Payload.(type) {
	case *messages.Ping:
		if err := s.write(ctx, messages.NewEnvelope(s.localID, &messages.Pong{Timestamp: payload.Timestamp})); err != nil {
			return false, err
		}
		return false, nil
	case *messages.Pong:
		s.recordRTT(now.UnixMilli() - payload.Timestamp)
		return false, nil
	}

	return true, nil
}

// Tick retransmits unacknowledged envelopes and pings the peer when due.
// Failures mark the session as failed and are returned for escalation.
func (s *Session) Tick(ctx context.Context, now time.Time) []*delivery.DeliveryFailure {
	if s.closed {
		return nil
	}

	result := s.tracker.Tick(now)
	for _, env := range result.Resend {
		telemetry.Retransmissions.Inc()
		if err := s.write(ctx, env); err != nil {
			s.logger.Debug("Retransmission failed: %v", err)
		}
	}
	if len(result.Failed) > 0 {
		s.failed = true
		telemetry.DeliveryFailures.Add(float64(len(result.Failed)))
		for _, failure := range result.Failed {
			s.logger.Warn("%v", failure)
		}
	}

	if now.Sub(s.lastPing) >= s.pingInterval {
		s.lastPing = now
		if err := s.write(ctx, messages.NewEnvelope(s.localID, &messages.Ping{Timestamp: now.UnixMilli()})); err != nil {
			s.logger.Debug("Ping failed: %v", err)
		}
	}

	return result.Failed
}

// IsAlive reports whether the session is open, has not failed a delivery and
// heard from its peer within the timeout.
func (s *Session) IsAlive(now time.Time) bool {
	return !s.closed && !s.failed && now.Sub(s.lastHeard) <= s.timeout
}

// Failed reports whether a registered envelope exhausted its retries.
func (s *Session) Failed() bool {
	return s.failed
}

// Pending returns the number of registered envelopes awaiting a receipt.
func (s *Session) Pending() int {
	return s.tracker.Pending()
}

// Close stops all further sends and forgets outstanding deliveries.
func (s *Session) Close() {
	s.closed = true
	s.tracker.Reset()
	s.seen.reset()
}

// Ping returns the smoothed round trip time.
func (s *Session) Ping() time.Duration {
	return time.Duration(s.ping * float64(time.Millisecond))
}

func (s *Session) recordRTT(rtt int64) {
	if rtt < 0 {
		return
	}
	telemetry.PeerRTT.Observe(float64(rtt) / 1000)

	s.rtts.add(rtt)
	s.ping = s.rtts.estimate()
}
