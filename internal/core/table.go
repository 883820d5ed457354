package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roomcast/roomcast-server/internal/store"
)

// Table is the process-wide room registry: room name to live room. Rooms
// are created lazily on first join and pruned when their last member leaves.
// One Table is built at startup and handed to the transport; there is no
// package-level instance.
type Table struct {
	journal store.Log
	log     *zerolog.Logger

	mu      sync.Mutex
	rooms   map[string]*Room
	owner   map[string]string // member id -> room name
	lastSeq map[string]uint64 // sequence continuity across prune/recreate
}

// RoomInfo is a point-in-time view of one live room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// NewTable builds an empty registry whose rooms persist into journal.
func NewTable(journal store.Log, logger *zerolog.Logger) *Table {
	return &Table{
		journal: journal,
		log:     logger,
		rooms:   make(map[string]*Room),
		owner:   make(map[string]string),
		lastSeq: make(map[string]uint64),
	}
}

// Join registers m in the named room, creating the room on first use. The
// whole operation happens under the table lock, so two concurrent first
// joins cannot race into two rooms and a member id can never end up in two
// rooms at once.
func (t *Table) Join(room string, m *Member) (*Room, error) {
	if room == "" {
		return nil, ErrRoomRequired
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, taken := t.owner[m.ID]; taken {
		return nil, ErrAlreadyJoined
	}

	r, ok := t.rooms[room]
	if !ok {
		r = newRoom(room, t.lastSeq[room], t.journal, t.log)
		t.rooms[room] = r
		t.log.Debug().Str("room", room).Msg("room created")
	}
	if !r.add(m) {
		return nil, ErrAlreadyJoined
	}
	t.owner[m.ID] = room

	t.log.Info().Str("room", room).Str("member_id", m.ID).Int("members", r.MemberCount()).Msg("member joined")
	return r, nil
}

// Leave removes the member from the named room and prunes the room when it
// empties. Unknown rooms and ids are ignored, which makes session teardown
// idempotent.
func (t *Table) Leave(room string, memberID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[room]
	if !ok {
		return
	}
	if !r.remove(memberID) {
		return
	}
	delete(t.owner, memberID)

	remaining := r.MemberCount()
	t.log.Info().Str("room", room).Str("member_id", memberID).Int("members", remaining).Msg("member left")

	if remaining == 0 {
		// Keep the counter so a recreated room continues the persisted order.
		t.lastSeq[room] = r.lastSeq()
		delete(t.rooms, room)
		t.log.Debug().Str("room", room).Msg("empty room pruned")
	}
}

// SeedSeq raises the stored sequence floor for a room. Startup replay calls
// it per record so freshly created rooms continue where the log left off.
func (t *Table) SeedSeq(room string, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq > t.lastSeq[room] {
		t.lastSeq[room] = seq
	}
}

// SeedFrom walks the journal and primes per-room sequence counters so new
// messages continue numbering where the previous process stopped. It returns
// the number of records scanned.
func (t *Table) SeedFrom(ctx context.Context, journal store.Log) (int, error) {
	n := 0
	err := journal.ForEach(ctx, func(rec store.Record) error {
		t.SeedSeq(rec.Room, rec.Seq)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("replay journal: %w", err)
	}
	return n, nil
}

// Snapshot lists live rooms sorted by name.
func (t *Table) Snapshot() []RoomInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	infos := make([]RoomInfo, 0, len(t.rooms))
	for name, r := range t.rooms {
		infos = append(infos, RoomInfo{Name: name, Members: r.MemberCount()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Len returns the number of live rooms.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}
