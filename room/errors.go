package room

import "errors"

var (
	// ErrRoomFull is returned when a third participant tries to join.
	ErrRoomFull = errors.New("room is full")

	// ErrRoomNotFound is returned for joins against an unknown or already
	// torn down room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrSessionFailed is returned when the room's transcription pipeline
	// could not be started or died; the room is closed for everyone.
	ErrSessionFailed = errors.New("transcription session failed")
)
