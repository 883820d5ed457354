package core

import "errors"

var (
	// ErrRoomRequired rejects joins with an empty room name.
	ErrRoomRequired = errors.New("room name required")
	// ErrAlreadyJoined rejects a member id that is already registered in a room.
	ErrAlreadyJoined = errors.New("member already joined a room")
	// ErrNotInRoom rejects a submit from a sender that is not a room member.
	ErrNotInRoom = errors.New("sender not in room")
	// ErrSlowConsumer ends a session whose delivery queue overflowed.
	ErrSlowConsumer = errors.New("delivery queue overflow")
)
