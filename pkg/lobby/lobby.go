package lobby

import (
	"errors"
	"fmt"
	"sync"
)

const (
	DefaultSeats  = 4
	DefaultQuorum = 2
	// MinPlayers is the number of joined seats needed before a countdown.
	MinPlayers = 2
)

var (
	ErrLobbyFull    = errors.New("lobby is full")
	ErrUnknownSeat  = errors.New("unknown seat")
	ErrSeatNotTaken = errors.New("seat is not joined")
	ErrAlreadyVoted = errors.New("already voted to skip this level")
)

type State int

const (
	Waiting State = iota
	CountdownInProgress
	Started
)

func (s State) String() string {
	switch s {
	case CountdownInProgress:
		return "countdown"
	case Started:
		return "started"
	default:
		return "waiting"
	}
}

// Slot is one lobby seat. Seats are numbered from 1.
type Slot struct {
	Seat     int      `json:"seat"`
	Joined   bool     `json:"joined"`
	Ready    bool     `json:"ready"`
	Nick     string   `json:"nick,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	VoteCast bool     `json:"vote_cast"`
	PeerID   uint32   `json:"peer_id"`
}

// Consensus tracks seats, the ready gate before a level starts and votes to
// skip the current level. The server evaluates; clients mirror slots from
// avatar-data and use the local vote guard.
type Consensus struct {
	lock  sync.RWMutex
	slots []Slot
	state State

	quorum int
	votes  int
	// tally holds the seats whose votes count toward the next quorum.
	tally map[int]bool
	// voted guards this peer's own vote-to-skip.
	voted bool
}

func NewConsensus(seats, quorum int) *Consensus {
	if seats <= 0 {
		seats = DefaultSeats
	}
	if quorum <= 0 {
		quorum = DefaultQuorum
	}
	c := &Consensus{
		slots:  make([]Slot, seats),
		quorum: quorum,
		tally:  make(map[int]bool),
	}
	for i := range c.slots {
		c.slots[i].Seat = i + 1
	}
	return c
}

func (c *Consensus) slot(seat int) (*Slot, error) {
	if seat < 1 || seat > len(c.slots) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSeat, seat)
	}
	return &c.slots[seat-1], nil
}

// Join seats a peer in the first free slot. A peer that already holds a seat
// keeps it and only updates its nick and colors.
func (c *Consensus) Join(peerID uint32, nick string, colors []string) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	free := -1
	for i := range c.slots {
		s := &c.slots[i]
		if s.Joined && s.PeerID == peerID {
			s.Nick = nick
			s.Colors = colors
			return s.Seat, nil
		}
		if !s.Joined && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return 0, ErrLobbyFull
	}

	c.slots[free] = Slot{
		Seat:   free + 1,
		Joined: true,
		Nick:   nick,
		Colors: colors,
		PeerID: peerID,
	}
	return free + 1, nil
}

// Put overwrites a slot, e.g. from an avatar-data broadcast.
func (c *Consensus) Put(slot Slot) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	s, err := c.slot(slot.Seat)
	if err != nil {
		return err
	}
	if !slot.Joined {
		*s = Slot{Seat: slot.Seat}
		return nil
	}
	*s = slot
	return nil
}

// Seat returns the seat held by a peer.
func (c *Consensus) Seat(peerID uint32) (int, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for _, s := range c.slots {
		if s.Joined && s.PeerID == peerID {
			return s.Seat, true
		}
	}
	return 0, false
}

func (c *Consensus) Slot(seat int) (Slot, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	s, err := c.slot(seat)
	if err != nil {
		return Slot{}, err
	}
	return *s, nil
}

// Slots returns a copy of every seat in seat order.
func (c *Consensus) Slots() []Slot {
	c.lock.RLock()
	defer c.lock.RUnlock()
	slots := make([]Slot, len(c.slots))
	copy(slots, c.slots)
	return slots
}

// Joined returns the number of occupied seats.
func (c *Consensus) Joined() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.joined()
}

func (c *Consensus) joined() int {
	n := 0
	for _, s := range c.slots {
		if s.Joined {
			n++
		}
	}
	return n
}

func (c *Consensus) SetReady(seat int, ready bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, err := c.slot(seat)
	if err != nil {
		return err
	}
	if !s.Joined {
		return fmt.Errorf("%w: %d", ErrSeatNotTaken, seat)
	}
	s.Ready = ready
	return nil
}

// Leave frees the seat held by a peer and returns it. A vote the seat cast
// toward the pending quorum is withdrawn.
func (c *Consensus) Leave(peerID uint32) (int, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i := range c.slots {
		if c.slots[i].Joined && c.slots[i].PeerID == peerID {
			seat := i + 1
			if c.tally[seat] {
				delete(c.tally, seat)
				c.votes--
			}
			c.slots[i] = Slot{Seat: seat}
			return seat, true
		}
	}
	return 0, false
}

// Evaluate moves the lobby from Waiting to CountdownInProgress when at least
// MinPlayers seats are joined and every joined seat is ready. It reports
// whether the transition fired on this call.
func (c *Consensus) Evaluate() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.state != Waiting || c.joined() < MinPlayers {
		return false
	}
	for _, s := range c.slots {
		if s.Joined && !s.Ready {
			return false
		}
	}
	c.state = CountdownInProgress
	return true
}

// MarkStarted is applied on begin-game.
func (c *Consensus) MarkStarted() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = Started
}

func (c *Consensus) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

// CastVote guards this peer's own vote: one per level.
func (c *Consensus) CastVote() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.voted {
		return ErrAlreadyVoted
	}
	c.voted = true
	return nil
}

// RecordVote counts a vote-to-skip from a seat on the server. It reports true
// when the vote reached the quorum, in which case the counter starts over.
func (c *Consensus) RecordVote(seat int) (bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	s, err := c.slot(seat)
	if err != nil {
		return false, err
	}
	if !s.Joined {
		return false, fmt.Errorf("%w: %d", ErrSeatNotTaken, seat)
	}
	if s.VoteCast {
		return false, ErrAlreadyVoted
	}
	s.VoteCast = true

	c.votes++
	c.tally[seat] = true
	if c.votes >= c.quorum {
		c.votes = 0
		clear(c.tally)
		return true, nil
	}
	return false, nil
}

// Votes returns the number of votes counted toward the next quorum.
func (c *Consensus) Votes() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.votes
}

// Rebuild prepares the lobby for a new level. Seats stay joined.
func (c *Consensus) Rebuild() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i := range c.slots {
		c.slots[i].Ready = false
		c.slots[i].VoteCast = false
	}
	c.votes = 0
	clear(c.tally)
	c.voted = false
	c.state = Waiting
}

// Reset frees every seat, e.g. when the session goes offline.
func (c *Consensus) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for i := range c.slots {
		c.slots[i] = Slot{Seat: i + 1}
	}
	c.votes = 0
	clear(c.tally)
	c.voted = false
	c.state = Waiting
}
