package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/roomcast/roomcast-server/internal/store"
)

func TestTableJoinCreatesRoomLazily(t *testing.T) {
	table := NewTable(&memLog{}, testLogger())

	if got := table.Len(); got != 0 {
		t.Fatalf("fresh table has %d rooms, want 0", got)
	}

	room, err := table.Join("general", NewMember("alice", 8))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if room == nil {
		t.Fatal("join returned nil room")
	}
	if got := table.Len(); got != 1 {
		t.Fatalf("table has %d rooms after join, want 1", got)
	}
	if got := room.MemberCount(); got != 1 {
		t.Fatalf("room has %d members, want 1", got)
	}
}

func TestTableJoinRequiresRoomName(t *testing.T) {
	table := NewTable(&memLog{}, testLogger())

	if _, err := table.Join("", NewMember("alice", 8)); !errors.Is(err, ErrRoomRequired) {
		t.Fatalf("expected ErrRoomRequired, got %v", err)
	}
	if got := table.Len(); got != 0 {
		t.Fatalf("table has %d rooms after rejected join, want 0", got)
	}
}

func TestTableRejectsSecondRegistration(t *testing.T) {
	table := NewTable(&memLog{}, testLogger())
	alice := NewMember("alice", 8)

	if _, err := table.Join("general", alice); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := table.Join("general", alice); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined on same room, got %v", err)
	}
	if _, err := table.Join("other", alice); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined on other room, got %v", err)
	}
	if got := table.Len(); got != 1 {
		t.Fatalf("table has %d rooms, want 1", got)
	}
}

func TestTableLeavePrunesEmptyRoom(t *testing.T) {
	table := NewTable(&memLog{}, testLogger())

	if _, err := table.Join("general", NewMember("alice", 8)); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := table.Join("general", NewMember("bob", 8)); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	table.Leave("general", "alice")
	if got := table.Len(); got != 1 {
		t.Fatalf("room pruned while occupied, table has %d rooms", got)
	}

	table.Leave("general", "bob")
	if got := table.Len(); got != 0 {
		t.Fatalf("table has %d rooms after last leave, want 0", got)
	}

	// Leaving again, or leaving rooms that never existed, is a no-op.
	table.Leave("general", "bob")
	table.Leave("ghost", "nobody")
}

func TestTableSeqContinuesAfterPrune(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	journal := &memLog{}
	table := NewTable(journal, testLogger())

	alice := NewMember("alice", 8)
	bob := NewMember("bob", 8)
	room, err := table.Join("general", alice)
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := table.Join("general", bob); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	env, err := room.Submit(ctx, "alice", []byte("first"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.Seq != 1 {
		t.Fatalf("first message seq = %d, want 1", env.Seq)
	}

	table.Leave("general", "alice")
	table.Leave("general", "bob")
	if table.Len() != 0 {
		t.Fatal("room not pruned")
	}

	carol := NewMember("carol", 8)
	room, err = table.Join("general", carol)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if _, err := table.Join("general", NewMember("dave", 8)); err != nil {
		t.Fatalf("join dave: %v", err)
	}

	env, err = room.Submit(ctx, "carol", []byte("second"))
	if err != nil {
		t.Fatalf("submit after recreate: %v", err)
	}
	if env.Seq != 2 {
		t.Fatalf("seq after recreate = %d, want 2", env.Seq)
	}
}

func TestTableSeedSeq(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	table := NewTable(&memLog{}, testLogger())
	table.SeedSeq("general", 41)
	table.SeedSeq("general", 5) // lower seed must not regress

	room, err := table.Join("general", NewMember("alice", 8))
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	env, err := room.Submit(ctx, "alice", []byte("resumed"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if env.Seq != 42 {
		t.Fatalf("seq after seed = %d, want 42", env.Seq)
	}
}

func TestTableSeedFromJournal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	journal := &memLog{}
	for _, rec := range []struct {
		room string
		seq  uint64
	}{
		{"general", 1}, {"general", 2}, {"general", 3},
		{"ops", 1},
	} {
		if err := journal.Append(ctx, store.Record{
			Room:    rec.room,
			Sender:  "past",
			Seq:     rec.seq,
			Payload: []byte("old"),
			At:      time.Now().UTC(),
		}); err != nil {
			t.Fatalf("seed journal: %v", err)
		}
	}

	// A fresh table, as after a restart, resumes numbering per room.
	table := NewTable(journal, testLogger())
	n, err := table.SeedFrom(ctx, journal)
	if err != nil {
		t.Fatalf("seed from journal: %v", err)
	}
	if n != 4 {
		t.Fatalf("scanned %d records, want 4", n)
	}
	if table.Len() != 0 {
		t.Fatal("replay must not create live rooms")
	}

	general, err := table.Join("general", NewMember("alice", 8))
	if err != nil {
		t.Fatalf("join general: %v", err)
	}
	env, err := general.Submit(ctx, "alice", []byte("new"))
	if err != nil {
		t.Fatalf("submit general: %v", err)
	}
	if env.Seq != 4 {
		t.Fatalf("general resumed at seq %d, want 4", env.Seq)
	}

	ops, err := table.Join("ops", NewMember("bob", 8))
	if err != nil {
		t.Fatalf("join ops: %v", err)
	}
	env, err = ops.Submit(ctx, "bob", []byte("new"))
	if err != nil {
		t.Fatalf("submit ops: %v", err)
	}
	if env.Seq != 2 {
		t.Fatalf("ops resumed at seq %d, want 2", env.Seq)
	}
}

func TestTableConcurrentJoinLeave(t *testing.T) {
	table := NewTable(&memLog{}, testLogger())

	// Each worker churns its own id through the same room, racing lazy
	// creation against pruning.
	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("member-%02d", i)
			for j := 0; j < 50; j++ {
				if _, err := table.Join("general", NewMember(id, 4)); err != nil {
					t.Errorf("join %s: %v", id, err)
					return
				}
				table.Leave("general", id)
			}
		}(i)
	}
	wg.Wait()

	if got := table.Len(); got != 0 {
		t.Fatalf("table has %d rooms after churn, want 0", got)
	}
}

func TestTableSnapshot(t *testing.T) {
	table := NewTable(&memLog{}, testLogger())

	for _, join := range []struct{ room, member string }{
		{"ops", "alice"},
		{"general", "bob"},
		{"general", "carol"},
	} {
		if _, err := table.Join(join.room, NewMember(join.member, 8)); err != nil {
			t.Fatalf("join %s/%s: %v", join.room, join.member, err)
		}
	}

	snap := table.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d rooms, want 2: %+v", len(snap), snap)
	}
	if snap[0].Name != "general" || snap[0].Members != 2 {
		t.Fatalf("unexpected first entry: %+v", snap[0])
	}
	if snap[1].Name != "ops" || snap[1].Members != 1 {
		t.Fatalf("unexpected second entry: %+v", snap[1])
	}
}
