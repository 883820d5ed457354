// Package store defines the durable message log contract the relay core
// depends on. Backends live in subpackages; the core only ever sees this
// interface.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrStop can be returned by a ForEach callback to end the pass early.
// ForEach swallows it and returns nil.
var ErrStop = errors.New("store: stop iteration")

// Record is one persisted relay message. Records are append-only: the core
// never mutates or deletes them.
type Record struct {
	Room    string
	Sender  string
	Seq     uint64
	Payload []byte
	At      time.Time
}

// Log is an append-only durable message log.
//
// Append must not return until the record is durably stored. It must be safe
// for concurrent callers (one broadcaster per room), and each call is atomic
// with respect to every other call: no interleaved partial records.
//
// ForEach visits every record in the log and stops at the first error
// returned by fn. Records belonging to the same room are visited in
// ascending Seq order, which is their original submission order. Each call
// starts a fresh pass over the log.
type Log interface {
	Append(ctx context.Context, rec Record) error
	ForEach(ctx context.Context, fn func(Record) error) error
	Close() error
}
