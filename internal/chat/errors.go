package chat

import "errors"

var (
	// ErrUnauthenticated means the connection attempt carried no usable
	// identity. Fatal, no retry.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRoomNotFound means the room is gone. Fatal to the attempt.
	ErrRoomNotFound = errors.New("room not found")
	// ErrBanned means an active ban exists for this (room, user). Fatal.
	ErrBanned = errors.New("banned from room")
	// ErrInvalidPassword keeps the session in PendingPassword; retry allowed.
	ErrInvalidPassword = errors.New("invalid room password")
	// ErrStaleMembership is detected mid-session: the room or the caller's
	// membership vanished since connect. Closes with a terminal notice.
	ErrStaleMembership = errors.New("stale membership")
)
