package delivery

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
)

const (
	// DefaultRetryInterval is how long a registered message waits for its receipt
	// before being sent again.
	DefaultRetryInterval = 250 * time.Millisecond
	// DefaultMaxRetries is the number of retransmissions before giving up.
	DefaultMaxRetries = 8
)

// ErrDeliveryFailure matches every *DeliveryFailure.
var ErrDeliveryFailure = errors.New("delivery failure")

// DeliveryFailure is reported when a registered message exhausted its retries.
type DeliveryFailure struct {
	Record Record
}

func (f *DeliveryFailure) Error() string {
	return fmt.Sprintf("no receipt for %s after %d retries", f.Record.Envelope, f.Record.Retries)
}

func (f *DeliveryFailure) Is(target error) bool {
	return target == ErrDeliveryFailure
}

// Record tracks one registered message awaiting its receipt.
type Record struct {
	Envelope     *messages.Envelope
	FirstSentAt  time.Time
	LastSentAt   time.Time
	Retries      int
	Acknowledged bool
}

// TickResult is what the caller must do after a tick:
// write Resend again and escalate Failed.
type TickResult struct {
	Resend []*messages.Envelope
	Failed []*DeliveryFailure
}

// Tracker owns the outstanding registered messages of one sending peer.
type Tracker struct {
	lock          sync.Mutex
	nextID        uint32
	records       map[uint32]*Record
	retryInterval time.Duration
	maxRetries    int
}

type NewTrackerOptions struct {
	RetryInterval time.Duration
	MaxRetries    int
}

// NewTracker creates a Tracker. A zero RetryInterval or a negative MaxRetries
// falls back to the default.
func NewTracker(opts NewTrackerOptions) *Tracker {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Tracker{
		nextID:        1,
		records:       make(map[uint32]*Record),
		retryInterval: opts.RetryInterval,
		maxRetries:    opts.MaxRetries,
	}
}

// Register assigns a fresh id to env, marks it Registered and starts tracking it.
// The caller transmits env after Register returns.
func (t *Tracker) Register(env *messages.Envelope, now time.Time) uint32 {
	t.lock.Lock()
	defer t.lock.Unlock()

	id := t.nextID
	t.nextID++
	if t.nextID == 0 {
		// 0 is reserved for unregistered messages
		t.nextID = 1
	}

	env.Category = messages.Registered
	env.ID = id
	t.records[id] = &Record{
		Envelope:    env,
		FirstSentAt: now,
		LastSentAt:  now,
	}

	return id
}

// Acknowledge removes the record for id. Unknown ids (late or duplicate
// receipts) are ignored and reported as false.
func (t *Tracker) Acknowledge(id uint32) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	record, ok := t.records[id]
	if !ok {
		return false
	}
	record.Acknowledged = true
	delete(t.records, id)
	return true
}

// Tick collects the records due for retransmission and the records that ran
// out of retries. Failed records are removed. Results are ordered by id.
func (t *Tracker) Tick(now time.Time) TickResult {
	t.lock.Lock()
	defer t.lock.Unlock()

	result := TickResult{}
	for _, id := range t.sortedIDs() {
		record := t.records[id]
		if now.Sub(record.LastSentAt) < t.retryInterval {
			continue
		}
		if record.Retries >= t.maxRetries {
			delete(t.records, id)
			result.Failed = append(result.Failed, &DeliveryFailure{Record: *record})
			continue
		}
		record.Retries++
		record.LastSentAt = now
		result.Resend = append(result.Resend, record.Envelope)
	}

	return result
}

// Pending returns the number of messages still awaiting a receipt.
func (t *Tracker) Pending() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.records)
}

// Get returns a copy of the record for id.
func (t *Tracker) Get(id uint32) (Record, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()
	record, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// Reset drops every outstanding record, e.g. when the session is torn down.
func (t *Tracker) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	clear(t.records)
}

// sortedIDs must be called with the lock held.
func (t *Tracker) sortedIDs() []uint32 {
	ids := make([]uint32, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
