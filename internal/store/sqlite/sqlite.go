// Package sqlite implements the message log on a single SQLite database
// file. It is the default backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roomcast/roomcast-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	room    TEXT    NOT NULL,
	sender  TEXT    NOT NULL,
	seq     INTEGER NOT NULL,
	payload BLOB    NOT NULL,
	at      INTEGER NOT NULL,
	UNIQUE (room, seq)
);
`

// MessageLog implements store.Log on SQLite. A single connection is used so
// concurrent appends from different rooms serialize inside database/sql
// rather than colliding on the file lock.
type MessageLog struct {
	db *sql.DB
}

// New opens (creating if absent) the database at dbPath and ensures the
// messages table exists. The file is opened in WAL mode so appends are
// durable on commit without blocking readers.
func New(dbPath string) (*MessageLog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &MessageLog{db: db}, nil
}

// Append durably stores one record. The INSERT commits before returning, so
// a nil error means the record survives a process crash.
func (l *MessageLog) Append(ctx context.Context, rec store.Record) error {
	const query = `
		INSERT INTO messages (room, sender, seq, payload, at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := l.db.ExecContext(ctx, query, rec.Room, rec.Sender, rec.Seq, rec.Payload, rec.At.UnixNano()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ForEach scans the whole log in insertion order, which preserves the
// per-room sequence order the broadcaster produced.
func (l *MessageLog) ForEach(ctx context.Context, fn func(store.Record) error) error {
	const query = `
		SELECT room, sender, seq, payload, at
		FROM messages
		ORDER BY id ASC
	`
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec   store.Record
			nanos int64
		)
		if err := rows.Scan(&rec.Room, &rec.Sender, &rec.Seq, &rec.Payload, &nanos); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		rec.At = time.Unix(0, nanos).UTC()
		if err := fn(rec); err != nil {
			if errors.Is(err, store.ErrStop) {
				return nil
			}
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate messages: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *MessageLog) Close() error {
	return l.db.Close()
}
