package lock

import (
	"sync"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
)

// Strength qualifies how forcibly a lock withholds input.
type Strength int

const (
	Soft Strength = iota
	Hard
)

func (s Strength) String() string {
	if s == Hard {
		return "hard"
	}
	return "soft"
}

// Level is the simulation scope a lock suppresses.
type Level int

const (
	// None suppresses nothing.
	None Level = iota
	// Local suppresses only the local player's input.
	Local
	// Global halts all gameplay simulation.
	Global
)

func (l Level) String() string {
	switch l {
	case Local:
		return "local"
	case Global:
		return "global"
	default:
		return "none"
	}
}

// State is the effective lock state.
type State int

const (
	Unlocked State = iota
	SoftLocked
	HardLocked
)

func (s State) String() string {
	switch s {
	case SoftLocked:
		return "soft-locked"
	case HardLocked:
		return "hard-locked"
	default:
		return "unlocked"
	}
}

// Level maps a state to the scope it suppresses: Soft is Local, Hard is Global.
func (s State) Level() Level {
	switch s {
	case SoftLocked:
		return Local
	case HardLocked:
		return Global
	default:
		return None
	}
}

// Coordinator keeps the stack of active locks. The effective state is the
// strongest lock on the stack; Unlock pops the most recent one and never
// takes the depth below zero.
type Coordinator struct {
	lock  sync.RWMutex
	stack []Strength
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) LockSoft() {
	c.push(Soft)
}

func (c *Coordinator) LockHard() {
	c.push(Hard)
}

func (c *Coordinator) push(s Strength) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stack = append(c.stack, s)
}

// Unlock releases the most recent lock. It reports false when nothing was locked.
func (c *Coordinator) Unlock() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if len(c.stack) == 0 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// Apply handles an inbound lock-soft, lock-hard or unlock message. Other
// types are ignored and reported as false.
func (c *Coordinator) Apply(t messages.Type) bool {
	switch t {
	case messages.TypeLockSoft:
		c.LockSoft()
	case messages.TypeLockHard:
		c.LockHard()
	case messages.TypeUnlock:
		c.Unlock()
	default:
		return false
	}
	return true
}

// Reset drops every lock, e.g. when a session goes offline.
func (c *Coordinator) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stack = nil
}

func (c *Coordinator) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	state := Unlocked
	for _, s := range c.stack {
		if s == Hard {
			return HardLocked
		}
		state = SoftLocked
	}
	return state
}

func (c *Coordinator) Level() Level {
	return c.State().Level()
}

// IsLocked reports whether any lock is active. Local player input must be
// withheld while it is true.
func (c *Coordinator) IsLocked() bool {
	return c.State() != Unlocked
}

// IsGloballyLocked reports whether all gameplay simulation must halt.
func (c *Coordinator) IsGloballyLocked() bool {
	return c.State() == HardLocked
}

// Depth returns the number of active locks.
func (c *Coordinator) Depth() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.stack)
}
