package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomcast/roomcast-server/internal/store"
)

// Room is a named broadcast domain. It owns the member set, the room's
// sequence counter, and the persist-then-deliver pipeline. Rooms are created
// and pruned by the Table; sessions only ever hold a *Room between Join and
// Leave.
type Room struct {
	Name string

	journal store.Log
	log     *zerolog.Logger

	// mu guards members, order, and seq. Held only for map/slice mutation
	// and snapshots, never across I/O.
	mu      sync.Mutex
	members map[string]*Member
	order   []string // member ids, join order
	seq     uint64   // last persisted sequence number

	// submitMu serializes the whole submit pipeline per room: sequence
	// assignment, the durable append, and the non-blocking fan-out. This is
	// what keeps every sibling observing the same envelope order.
	submitMu sync.Mutex
}

func newRoom(name string, seq uint64, journal store.Log, logger *zerolog.Logger) *Room {
	return &Room{
		Name:    name,
		journal: journal,
		log:     logger,
		members: make(map[string]*Member),
		seq:     seq,
	}
}

// Submit persists payload under the room's next sequence number and then
// delivers it to every member except the sender.
//
// The sequence counter only advances after the append succeeds: a failed
// persist rolls back, so sequence numbers track persisted envelopes exactly
// and leave no gaps. On failure nothing is delivered and the error is the
// sender's to surface.
//
// Delivery is non-blocking per member. A member whose queue is full is
// marked stale and scheduled for disconnection instead of slowing the room.
func (r *Room) Submit(ctx context.Context, senderID string, payload []byte) (Envelope, error) {
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	r.mu.Lock()
	if _, ok := r.members[senderID]; !ok {
		r.mu.Unlock()
		return Envelope{}, ErrNotInRoom
	}
	next := r.seq + 1
	targets := r.snapshotLocked()
	r.mu.Unlock()

	env := Envelope{
		Room:    r.Name,
		Sender:  senderID,
		Seq:     next,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	err := r.journal.Append(ctx, store.Record{
		Room:    env.Room,
		Sender:  env.Sender,
		Seq:     env.Seq,
		Payload: env.Payload,
		At:      env.At,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("persist message: %w", err)
	}

	r.mu.Lock()
	r.seq = next
	r.mu.Unlock()

	for _, m := range targets {
		if m.ID == senderID {
			continue
		}
		if !m.trySend(env) {
			r.log.Warn().
				Str("room", r.Name).
				Str("member_id", m.ID).
				Uint64("seq", env.Seq).
				Msg("dropped delivery to stale member")
		}
	}

	return env, nil
}

// MemberCount returns the number of live members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// MemberIDs returns the current member ids in join order.
func (r *Room) MemberIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// add registers a member. The table's lock already rejects duplicate ids
// across rooms; this guards the same id within one room.
func (r *Room) add(m *Member) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[m.ID]; exists {
		return false
	}
	r.members[m.ID] = m
	r.order = append(r.order, m.ID)
	return true
}

// remove deletes a member. Returns true if it was present.
func (r *Room) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[id]; !exists {
		return false
	}
	delete(r.members, id)
	for i, mid := range r.order {
		if mid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// lastSeq reports the last persisted sequence number, read by the table
// when it prunes the room.
func (r *Room) lastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// snapshotLocked copies the member handles in join order. Callers hold mu;
// the copy is iterated outside it so channel sends never happen under the
// membership lock.
func (r *Room) snapshotLocked() []*Member {
	targets := make([]*Member, 0, len(r.order))
	for _, id := range r.order {
		targets = append(targets, r.members[id])
	}
	return targets
}
