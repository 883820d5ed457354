package core

import "sync"

// Member is a room's handle on one live session: an id plus a bounded
// delivery queue. The room owns the handle, never the transport behind it.
type Member struct {
	ID string

	queue chan Envelope
	stale chan struct{}
	once  sync.Once
}

// NewMember builds a handle with a delivery queue of queueSize envelopes.
func NewMember(id string, queueSize int) *Member {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Member{
		ID:    id,
		queue: make(chan Envelope, queueSize),
		stale: make(chan struct{}),
	}
}

// Deliveries is drained by the member's session to forward envelopes to its
// transport.
func (m *Member) Deliveries() <-chan Envelope {
	return m.queue
}

// Stale is closed once the member's queue overflowed. The session treats it
// as fatal and tears down; the room stops delivering to the member.
func (m *Member) Stale() <-chan struct{} {
	return m.stale
}

// trySend enqueues without blocking. A full queue marks the member stale;
// an already-stale member is skipped. Returns false in both cases.
func (m *Member) trySend(env Envelope) bool {
	select {
	case <-m.stale:
		return false
	default:
	}

	select {
	case m.queue <- env:
		return true
	default:
		m.markStale()
		return false
	}
}

func (m *Member) markStale() {
	m.once.Do(func() { close(m.stale) })
}
