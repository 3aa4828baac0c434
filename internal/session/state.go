package session

import (
	"errors"
	"fmt"
)

// State is the session's single activity.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidTransition is returned for a command the current state
	// does not accept. Nothing changes.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNothingToPlay is returned by StartPlayback before the first save.
	ErrNothingToPlay = errors.New("no saved recording to play")

	// ErrClosed is returned once the controller has shut down.
	ErrClosed = errors.New("session closed")
)
