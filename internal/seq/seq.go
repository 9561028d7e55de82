// Package seq hands out monotonically increasing tickets so that an async
// result can be checked against the newest request before it is applied.
package seq

import "sync/atomic"

// Ticket identifies one issued request.
type Ticket uint64

// Sequencer issues tickets. The zero value is ready to use.
type Sequencer struct {
	last atomic.Uint64
}

// Next issues a new ticket that supersedes every earlier one.
func (s *Sequencer) Next() Ticket {
	return Ticket(s.last.Add(1))
}

// Current reports whether t is still the newest ticket issued.
func (s *Sequencer) Current(t Ticket) bool {
	return s.last.Load() == uint64(t)
}

// Invalidate supersedes every outstanding ticket without issuing a new one.
func (s *Sequencer) Invalidate() {
	s.last.Add(1)
}
