package core

import "context"

// Conn abstracts the client transport as the session sees it: one opaque
// payload per read or write. The WebSocket adapter lives in the transport
// layer; tests substitute in-memory pipes.
type Conn interface {
	// Read blocks for the next inbound frame. It returns the transport's
	// error once the peer is gone (io.EOF included).
	Read(ctx context.Context) ([]byte, error)

	// Write sends one frame carrying exactly payload.
	Write(ctx context.Context, payload []byte) error

	// Close releases the transport. Safe to call more than once.
	Close() error

	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}
