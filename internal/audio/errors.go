package audio

import "errors"

// Failure kinds shared by capture and playback. Callers wrap them with
// context and test with errors.Is.
var (
	// ErrDeviceUnavailable means no usable input or output device (or tool
	// driving it) could be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrIOFailure covers reading or writing audio data and stopping a
	// capture that is not running.
	ErrIOFailure = errors.New("audio i/o failure")

	// ErrUnsupportedFormat means a file is not a playable WAV.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)
