package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live room uses the given join code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomClosed is returned when joining a room that has already ended.
	ErrRoomClosed = errors.New("room has ended")
	// ErrCodeConflict indicates a generated join code is already taken.
	ErrCodeConflict = errors.New("room code conflict")
	// ErrRoomsUnavailable is returned when no free join code could be reserved.
	ErrRoomsUnavailable = errors.New("no available room codes")
	// ErrInvalidQuiz wraps every quiz validation failure.
	ErrInvalidQuiz = errors.New("invalid quiz")
)
