package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1700000000, 0)

type recordingLink struct {
	sent []*messages.Envelope
	err  error
}

func (l *recordingLink) Send(_ context.Context, b []byte) error {
	if l.err != nil {
		return l.err
	}
	env, err := messages.Decode(b)
	if err != nil {
		return err
	}
	l.sent = append(l.sent, env)
	return nil
}

func (l *recordingLink) Close() error       { return nil }
func (l *recordingLink) RemoteAddr() string { return "recording" }

func (l *recordingLink) ofCategory(category messages.Category) []*messages.Envelope {
	var out []*messages.Envelope
	for _, env := range l.sent {
		if env.Category == category {
			out = append(out, env)
		}
	}
	return out
}

func newTestSession(link network.Link) *Session {
	return New(NewSessionOptions{
		PeerID:        5,
		LocalID:       messages.ServerOrigin,
		Link:          link,
		RetryInterval: 100 * time.Millisecond,
		MaxRetries:    2,
		PeerTimeout:   time.Second,
		PingInterval:  time.Hour,
	}, epoch)
}

func TestSession_SendRegistersReliableEnvelopes(t *testing.T) {
	link := &recordingLink{}
	s := newTestSession(link)
	ctx := context.Background()

	env := messages.NewEnvelope(99, &messages.LockHard{})
	require.NoError(t, s.Send(ctx, env, epoch))
	require.NoError(t, s.Send(ctx, env, epoch))
	require.NoError(t, s.Send(ctx, messages.NewEnvelope(99, &messages.SyncPlayer{}), epoch))

	require.Len(t, link.sent, 3)
	assert.Equal(t, uint32(1), link.sent[0].ID)
	assert.Equal(t, uint32(2), link.sent[1].ID)
	assert.Equal(t, messages.ServerOrigin, link.sent[0].Origin)
	assert.Equal(t, messages.Unregistered, link.sent[2].Category)
	assert.Equal(t, 2, s.Pending())

	// the caller's envelope is untouched
	assert.Equal(t, uint32(0), env.ID)
	assert.Equal(t, uint32(99), env.Origin)
}

func TestSession_OnReceiveAcknowledgesBeforeDispatch(t *testing.T) {
	link := &recordingLink{}
	s := newTestSession(link)
	ctx := context.Background()

	dig := &messages.Envelope{Category: messages.Registered, ID: 7, Origin: 5, Type: messages.TypeEntityDig, Payload: &messages.EntityDig{EntityID: 1, TileX: 2, TileY: 3}}

	dispatch, err := s.OnReceive(ctx, dig, epoch)
	require.NoError(t, err)
	assert.True(t, dispatch)
	require.Len(t, link.sent, 1)
	assert.Equal(t, messages.NewReceipt(messages.ServerOrigin, 7), link.sent[0])

	// duplicate: one more receipt, no dispatch
	dispatch, err = s.OnReceive(ctx, dig, epoch)
	assert.False(t, dispatch)
	assert.True(t, errors.Is(err, ErrDuplicateDelivery))
	assert.Len(t, link.ofCategory(messages.Receipt), 2)
}

func TestSession_DedupWindowIsRolling(t *testing.T) {
	link := &recordingLink{}
	s := newTestSession(link)
	ctx := context.Background()

	receive := func(id uint32) (bool, error) {
		return s.OnReceive(ctx, &messages.Envelope{Category: messages.Registered, ID: id, Origin: 5, Type: messages.TypeVoteToSkip, Payload: &messages.VoteToSkip{}}, epoch)
	}

	for id := uint32(1); id <= DedupWindow+1; id++ {
		dispatch, err := receive(id)
		require.NoError(t, err)
		require.True(t, dispatch)
	}

	// id 1 fell out of the window, the newest id is still remembered
	dispatch, err := receive(1)
	assert.NoError(t, err)
	assert.True(t, dispatch)

	_, err = receive(DedupWindow + 1)
	assert.True(t, errors.Is(err, ErrDuplicateDelivery))
}

func TestSession_ReceiptAcknowledges(t *testing.T) {
	link := &recordingLink{}
	s := newTestSession(link)
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, messages.NewEnvelope(0, &messages.Unlock{}), epoch))
	require.Equal(t, 1, s.Pending())

	dispatch, err := s.OnReceive(ctx, messages.NewReceipt(5, link.sent[0].ID), epoch)
	require.NoError(t, err)
	assert.False(t, dispatch)
	assert.Equal(t, 0, s.Pending())

	// late receipt is harmless
	dispatch, err = s.OnReceive(ctx, messages.NewReceipt(5, link.sent[0].ID), epoch)
	assert.NoError(t, err)
	assert.False(t, dispatch)
}

func TestSession_TickRetransmitsThenFails(t *testing.T) {
	link := &recordingLink{}
	s := newTestSession(link)
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, messages.NewEnvelope(0, &messages.BeginGame{Map: "level-1"}), epoch))

	now := epoch
	for i := 0; i < 2; i++ {
		now = now.Add(100 * time.Millisecond)
		assert.Empty(t, s.Tick(ctx, now))
	}
	assert.Len(t, link.ofCategory(messages.Registered), 3, "one send plus two retries")
	assert.True(t, s.IsAlive(now))

	now = now.Add(100 * time.Millisecond)
	failures := s.Tick(ctx, now)
	require.Len(t, failures, 1)
	assert.True(t, s.Failed())
	assert.False(t, s.IsAlive(now))
}

func TestSession_IsAliveTimeout(t *testing.T) {
	s := newTestSession(&recordingLink{})

	assert.True(t, s.IsAlive(epoch.Add(time.Second)))
	assert.False(t, s.IsAlive(epoch.Add(time.Second+time.Millisecond)))

	_, err := s.OnReceive(context.Background(), messages.NewEnvelope(5, &messages.SyncPlayer{}), epoch.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, s.IsAlive(epoch.Add(1500*time.Millisecond)))

	s.Close()
	assert.False(t, s.IsAlive(epoch.Add(time.Second)))
	assert.Error(t, s.Send(context.Background(), messages.NewEnvelope(0, &messages.Unlock{}), epoch))
}

func TestSession_PingPong(t *testing.T) {
	link := &recordingLink{}
	s := New(NewSessionOptions{PeerID: 5, Link: link, PingInterval: time.Second}, epoch)
	ctx := context.Background()

	s.Tick(ctx, epoch.Add(time.Second))
	require.Len(t, link.sent, 1)
	ping, ok := link.sent[0].Payload.(*messages.Ping)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second).UnixMilli(), ping.Timestamp)

	dispatch, err := s.OnReceive(ctx, messages.NewEnvelope(5, &messages.Pong{Timestamp: ping.Timestamp}), epoch.Add(time.Second+40*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, dispatch)
	assert.Equal(t, 40*time.Millisecond, s.Ping())

	// a remote ping is answered with a pong carrying its timestamp
	dispatch, err = s.OnReceive(ctx, messages.NewEnvelope(5, &messages.Ping{Timestamp: 123}), epoch)
	require.NoError(t, err)
	assert.False(t, dispatch)
	assert.Equal(t, &messages.Pong{Timestamp: 123}, link.sent[len(link.sent)-1].Payload)
}

func TestRTTWindow(t *testing.T) {
	tests := []struct {
		name string
		rtts []int64
		want float64
	}{
		{name: "empty", rtts: nil, want: 0},
		{name: "steady", rtts: []int64{10, 12, 11}, want: 11},
		{name: "spike dropped", rtts: []int64{30, 32, 31, 200}, want: 31},
		{name: "small spike kept", rtts: []int64{5, 6, 5, 16}, want: 8},
		{name: "oldest evicted", rtts: []int64{500, 500, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10}, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w rttWindow
			for _, rtt := range tt.rtts {
				w.add(rtt)
			}
			assert.Equal(t, tt.want, w.estimate())
		})
	}
}
