// Package badger implements the message log on an embedded BadgerDB
// key-value store. Selected with store.backend=badger.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/roomcast/roomcast-server/internal/store"
)

const keyPrefix = "msg:"

// MessageLog implements store.Log on BadgerDB. Keys are
// "msg:<room>:<seq padded to 20 digits>" so a prefix scan yields each room's
// records in sequence order.
type MessageLog struct {
	db *badgerdb.DB
}

// record is the stored value encoding. Payload travels base64 inside JSON;
// the payload bytes themselves stay opaque.
type record struct {
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Seq     uint64 `json:"seq"`
	Payload []byte `json:"payload"`
	At      int64  `json:"at"`
}

// New opens (creating if absent) a Badger database rooted at dir.
// SyncWrites is on: an Append that returned nil survives a crash.
func New(dir string) (*MessageLog, error) {
	opts := badgerdb.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLoggingLevel(badgerdb.ERROR)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &MessageLog{db: db}, nil
}

func key(room string, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%s:%020d", keyPrefix, room, seq)
}

// Append durably stores one record under its room/seq key.
func (l *MessageLog) Append(ctx context.Context, rec store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(record{
		Room:    rec.Room,
		Sender:  rec.Sender,
		Seq:     rec.Seq,
		Payload: rec.Payload,
		At:      rec.At.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	err = l.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(rec.Room, rec.Seq), value)
	})
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ForEach scans every stored record. Keys sort room-first, so each room's
// records arrive in ascending Seq order.
func (l *MessageLog) ForEach(ctx context.Context, fn func(store.Record) error) error {
	err := l.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(value []byte) error {
				var stored record
				if err := json.Unmarshal(value, &stored); err != nil {
					return fmt.Errorf("decode record: %w", err)
				}
				return fn(store.Record{
					Room:    stored.Room,
					Sender:  stored.Sender,
					Seq:     stored.Seq,
					Payload: stored.Payload,
					At:      time.Unix(0, stored.At).UTC(),
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrStop) {
		return nil
	}
	return err
}

// Close closes the database, flushing any pending compactions.
func (l *MessageLog) Close() error {
	return l.db.Close()
}
