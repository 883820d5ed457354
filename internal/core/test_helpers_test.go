package core

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomcast/roomcast-server/internal/store"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memLog is an in-memory store.Log with optional fault injection.
type memLog struct {
	mu      sync.Mutex
	records []store.Record
	failErr error
	fails   int
}

func (l *memLog) Append(_ context.Context, rec store.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failErr != nil {
		l.fails++
		return l.failErr
	}
	l.records = append(l.records, rec)
	return nil
}

func (l *memLog) ForEach(_ context.Context, fn func(store.Record) error) error {
	l.mu.Lock()
	snapshot := append([]store.Record(nil), l.records...)
	l.mu.Unlock()

	for _, rec := range snapshot {
		if err := fn(rec); err != nil {
			if errors.Is(err, store.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (l *memLog) Close() error { return nil }

func (l *memLog) failWith(err error) {
	l.mu.Lock()
	l.failErr = err
	l.mu.Unlock()
}

func (l *memLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *memLog) failCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fails
}

func (l *memLog) record(i int) store.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[i]
}

// scriptConn is a Conn driven by the test: frames pushed into inbound come
// out of Read, frames passed to Write land on writes. Closing inbound acts
// like the peer hanging up.
type scriptConn struct {
	inbound chan []byte
	writes  chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newScriptConn(writeBuf int) *scriptConn {
	return &scriptConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, writeBuf),
		closed:  make(chan struct{}),
	}
}

func (c *scriptConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case p, ok := <-c.inbound:
		if !ok {
			return nil, io.EOF
		}
		return p, nil
	case <-c.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *scriptConn) Write(ctx context.Context, payload []byte) error {
	select {
	case c.writes <- payload:
		return nil
	case <-c.closed:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *scriptConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptConn) RemoteAddr() string { return "script" }

func (c *scriptConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func mustDelivery(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()

	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("expected delivery not received")
		return Envelope{}
	}
}

func noDelivery(t *testing.T, ch <-chan Envelope, wait time.Duration) {
	t.Helper()

	select {
	case env := <-ch:
		t.Fatalf("unexpected delivery: %+v", env)
	case <-time.After(wait):
	}
}

func mustFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()

	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("expected frame not written")
		return nil
	}
}

func noFrame(t *testing.T, ch <-chan []byte, wait time.Duration) {
	t.Helper()

	select {
	case p := <-ch:
		t.Fatalf("unexpected frame written: %q", p)
	case <-time.After(wait):
	}
}

func mustStop(t *testing.T, ch <-chan error) error {
	t.Helper()

	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
		return nil
	}
}

func mustState(t *testing.T, s *Session, want State) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session state = %v, want %v", s.State(), want)
}

func mustRooms(t *testing.T, table *Table, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if table.Len() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room count = %d, want %d", table.Len(), want)
}

func mustMembers(t *testing.T, table *Table, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, info := range table.Snapshot() {
			if info.Name == room && info.Members == want {
				return
			}
		}
		if want == 0 {
			found := false
			for _, info := range table.Snapshot() {
				if info.Name == room {
					found = true
				}
			}
			if !found {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room %q never reached %d members: %+v", room, want, table.Snapshot())
}
