package session

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/audiolibrelab/soundrecorder/internal/display"
	"github.com/audiolibrelab/soundrecorder/internal/timer"
)

// CaptureService records one take at a time.
type CaptureService interface {
	// Start blocks while capturing and returns once Stop was called or
	// the device failed.
	Start(ctx context.Context) error
	Stop() error
	// Save writes the last take to path. The take is gone afterwards.
	Save(path string) error
	// Discard drops the last take without writing it.
	Discard()
}

// PlaybackService plays a saved file.
type PlaybackService interface {
	// Play blocks until the file finished playing or Stop was called.
	Play(ctx context.Context, path string) error
	// Stop requests an immediate halt and does not wait for it.
	Stop() error
}

// Prompter asks where to save a take. ok is false when the user declined.
type Prompter interface {
	ChooseSavePath(ctx context.Context) (path string, ok bool, err error)
}

// Notifier reports outcomes to the user.
type Notifier interface {
	NotifyError(op string, err error)
	NotifyInfo(msg string)
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Capture  CaptureService
	Playback PlaybackService
	// Sink must tolerate calls from the timer goroutine and the controller;
	// wrap plain sinks in a display.Queue.
	Sink     display.Sink
	Prompter Prompter
	Notifier Notifier

	// Optional; defaults are the real clock, "Record Time", 1s and ".wav".
	Clock        clockwork.Clock
	Label        string
	TickInterval time.Duration
	Extension    string

	// StartCheck is how long StartRecording waits for the capture to
	// fail right away. Zero returns as soon as the capture is launched and
	// reports any failure through the Notifier only.
	StartCheck time.Duration
}

func (d *Deps) validate() error {
	switch {
	case d.Capture == nil:
		return errors.New("session: capture service is required")
	case d.Playback == nil:
		return errors.New("session: playback service is required")
	case d.Sink == nil:
		return errors.New("session: display sink is required")
	case d.Prompter == nil:
		return errors.New("session: prompter is required")
	}

	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Label == "" {
		d.Label = timer.DefaultLabel
	}
	if d.TickInterval <= 0 {
		d.TickInterval = time.Second
	}
	if d.Extension == "" {
		d.Extension = ".wav"
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) NotifyError(string, error) {}
func (nopNotifier) NotifyInfo(string)         {}
