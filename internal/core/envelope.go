package core

import "time"

// Envelope is the unit of transmission: one payload, bound to a room and a
// sender, stamped with the room's sequence number at submission. Immutable
// once returned by Submit.
type Envelope struct {
	Room    string
	Sender  string
	Seq     uint64
	Payload []byte
	At      time.Time
}
