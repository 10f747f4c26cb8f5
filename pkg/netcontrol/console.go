package netcontrol

import "sync"

// DefaultConsoleLines is the number of lines a RingConsole keeps.
const DefaultConsoleLines = 64

// Console receives chat lines and system notices for display.
type Console interface {
	Push(line string)
	Lines() []string
}

// RingConsole keeps the most recent lines in memory.
type RingConsole struct {
	lock  sync.Mutex
	lines []string
	next  int
	full  bool
}

func NewRingConsole(capacity int) *RingConsole {
	if capacity <= 0 {
		capacity = DefaultConsoleLines
	}
	return &RingConsole{lines: make([]string, capacity)}
}

func (c *RingConsole) Push(line string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.lines[c.next] = line
	c.next = (c.next + 1) % len(c.lines)
	if c.next == 0 {
		c.full = true
	}
}

// Lines returns the kept lines, oldest first.
func (c *RingConsole) Lines() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.full {
		out := make([]string, c.next)
		copy(out, c.lines[:c.next])
		return out
	}
	out := make([]string, 0, len(c.lines))
	out = append(out, c.lines[c.next:]...)
	return append(out, c.lines[:c.next]...)
}
