package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State tracks where a session is in its lifecycle.
type State int32

const (
	// StateConnecting: transport accepted, room known, not yet registered.
	StateConnecting State = iota
	// StateJoined: registered, both pumps running.
	StateJoined
	// StateClosing: a fatal condition fired, deregistration in progress.
	StateClosing
	// StateClosed: deregistered and transport released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options tunes per-session behavior.
type Options struct {
	// QueueSize bounds the delivery queue between the room and this
	// session's transport writer.
	QueueSize int
	// FatalSubmitErrors closes the session when a submit fails to persist.
	// When false the failure is logged and the connection lives on.
	FatalSubmitErrors bool
}

// Session bridges one client transport to one room. Its two duties run as
// separate goroutines that share nothing mutable: inbound frames flow
// conn -> Submit, outbound envelopes flow member queue -> conn. The first
// fatal condition on either duty tears the whole session down exactly once.
type Session struct {
	table  *Table
	conn   Conn
	room   string
	member *Member
	opts   Options
	log    zerolog.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession prepares a session for one accepted transport connection bound
// to the named room. Nothing is registered until Run.
func NewSession(table *Table, conn Conn, room string, opts Options, logger *zerolog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		table:  table,
		conn:   conn,
		room:   room,
		member: NewMember(id, opts.QueueSize),
		opts:   opts,
		log: logger.With().
			Str("member_id", id).
			Str("room", room).
			Str("remote", conn.RemoteAddr()).
			Logger(),
	}
}

// ID returns the member id this session was assigned.
func (s *Session) ID() string {
	return s.member.ID
}

// State reports the session's lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run joins the room and pumps frames in both directions until a fatal
// condition, then deregisters and releases the transport. A failed join
// closes the transport with no side effects on any room. The returned error
// is the fatal condition, or nil for a clean peer close.
func (s *Session) Run(ctx context.Context) error {
	room, err := s.table.Join(s.room, s.member)
	if err != nil {
		_ = s.conn.Close()
		s.state.Store(int32(StateClosed))
		return fmt.Errorf("join room: %w", err)
	}
	s.state.Store(int32(StateJoined))
	s.log.Debug().Msg("session joined")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- s.readPump(ctx, room) }()
	go func() { errCh <- s.writePump(ctx) }()

	// First pump to fail decides the outcome; cancel reels in the other.
	err = <-errCh
	cancel()
	<-errCh

	s.teardown()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readPump turns every inbound frame into a room submit. Transport errors
// are always fatal; submit errors follow the configured policy.
func (s *Session) readPump(ctx context.Context, room *Room) error {
	for {
		payload, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}

		if _, err := room.Submit(ctx, s.member.ID, payload); err != nil {
			if s.opts.FatalSubmitErrors || errors.Is(err, ErrNotInRoom) {
				return fmt.Errorf("submit: %w", err)
			}
			s.log.Warn().Err(err).Msg("message dropped, not persisted")
		}
	}
}

// writePump forwards queued envelopes to the transport. A write failure or
// an overflowed queue is fatal.
func (s *Session) writePump(ctx context.Context) error {
	for {
		select {
		case env := <-s.member.Deliveries():
			if err := s.conn.Write(ctx, env.Payload); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		case <-s.member.Stale():
			return ErrSlowConsumer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// teardown deregisters the member and releases the transport, exactly once
// no matter which duty failed first.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.table.Leave(s.room, s.member.ID)
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("transport close")
		}
		s.state.Store(int32(StateClosed))
		s.log.Debug().Msg("session closed")
	})
}
