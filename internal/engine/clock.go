package engine

import "sync/atomic"

// Clock hands out the sequence number stamped on every task the simulation
// loop runs. Sequence numbers appear in logs so the order in which commands
// actually touched the game can be read back after the fact.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
