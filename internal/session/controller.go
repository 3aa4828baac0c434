// Package session binds capture, playback and the elapsed-time readout
// into one recorder/player session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/audiolibrelab/soundrecorder/internal/display"
	"github.com/audiolibrelab/soundrecorder/internal/timer"
)

type op int

const (
	opStartRecording op = iota
	opStopRecording
	opStartPlayback
	opStopPlayback
	opToggleRecord
	opTogglePlay
)

type command struct {
	op    op
	ctx   context.Context
	reply chan error
}

type activityKind int

const (
	captureEnded activityKind = iota
	playbackEnded
)

// activityEvent reports that a capture or playback call returned.
type activityEvent struct {
	kind activityKind
	gen  uint64
	err  error
}

// Status is a point-in-time view of the session.
type Status struct {
	State      State                `json:"state"`
	Generation uint64               `json:"generation"`
	TakeID     string               `json:"take_id,omitempty"`
	SavedPath  string               `json:"saved_path,omitempty"`
	Record     display.Presentation `json:"record"`
	Play       display.Presentation `json:"play"`
}

// Controller is the session state machine. All transitions happen on the
// goroutine running Run; the exported methods queue a command and wait for
// its result.
type Controller struct {
	deps Deps

	cmds    chan command
	events  chan activityEvent
	quit    chan struct{}
	done    chan struct{}
	runOnce sync.Once

	// owned by Run
	runCtx     context.Context
	state      State
	gen        uint64
	takeID     uuid.UUID
	savedPath  string
	timer      *timer.Elapsed
	activities conc.WaitGroup
	cancelAct  context.CancelFunc
	record     display.Presentation
	play       display.Presentation
	preRecord  display.Presentation
	prePlay    display.Presentation

	statusMu sync.RWMutex
	status   Status
}

func New(deps Deps) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		deps:   deps,
		cmds:   make(chan command),
		events: make(chan activityEvent, 4),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  StateIdle,
		record: display.Presentation{Enabled: true, Label: display.LabelRecord},
		play:   display.Presentation{Enabled: false, Label: display.LabelPlay},
	}
	c.status = Status{State: StateIdle, Record: c.record, Play: c.play}
	return c, nil
}

// Run publishes the initial presentation and processes commands until ctx
// is done. Active capture or playback is stopped on the way out.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("session: controller already running")
	}
	defer close(c.done)

	c.runCtx = ctx
	c.deps.Sink.SetTimeText(timer.Text(c.deps.Label, 0))
	c.deps.Sink.SetControl(display.ControlRecord, c.record)
	c.deps.Sink.SetControl(display.ControlPlay, c.play)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case cmd := <-c.cmds:
			cmd.reply <- c.handle(cmd)
		case ev := <-c.events:
			c.handleEvent(ev)
		}
	}
}

// Done is closed after Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) StartRecording(ctx context.Context) error {
	return c.do(ctx, opStartRecording)
}

// StopRecording stops capture, asks for a destination and saves the take.
// It returns once the save finished or failed.
func (c *Controller) StopRecording(ctx context.Context) error {
	return c.do(ctx, opStopRecording)
}

func (c *Controller) StartPlayback(ctx context.Context) error {
	return c.do(ctx, opStartPlayback)
}

// StopPlayback halts playback without waiting for the player to exit.
func (c *Controller) StopPlayback(ctx context.Context) error {
	return c.do(ctx, opStopPlayback)
}

// ToggleRecord is the Record/Stop button.
func (c *Controller) ToggleRecord(ctx context.Context) error {
	return c.do(ctx, opToggleRecord)
}

// TogglePlay is the Play/Stop button.
func (c *Controller) TogglePlay(ctx context.Context) error {
	return c.do(ctx, opTogglePlay)
}

// Status can be called from any goroutine.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Controller) do(ctx context.Context, o op) error {
	reply := make(chan error, 1)

	select {
	case c.cmds <- command{op: o, ctx: ctx, reply: reply}:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) handle(cmd command) error {
	o := cmd.op
	switch o {
	case opToggleRecord:
		switch c.state {
		case StateIdle:
			o = opStartRecording
		case StateRecording:
			o = opStopRecording
		}
	case opTogglePlay:
		switch c.state {
		case StateIdle:
			o = opStartPlayback
		case StatePlaying:
			o = opStopPlayback
		}
	}

	switch {
	case o == opStartRecording && c.state == StateIdle:
		return c.startRecording()
	case o == opStopRecording && c.state == StateRecording:
		return c.stopRecording(cmd.ctx)
	case o == opStartPlayback && c.state == StateIdle:
		if c.savedPath == "" {
			return ErrNothingToPlay
		}
		return c.startPlayback()
	case o == opStopPlayback && c.state == StatePlaying:
		return c.stopPlayback()
	}

	slog.Debug("Command rejected", "state", c.state, "op", int(cmd.op))
	return ErrInvalidTransition
}

func (c *Controller) startRecording() error {
	c.join()

	c.preRecord, c.prePlay = c.record, c.play
	c.gen++
	gen := c.gen
	c.takeID = uuid.New()

	c.timer = c.newTimer()
	c.timer.Start(c.deps.Sink)
	c.setControl(display.ControlRecord, display.Presentation{Enabled: true, Label: display.LabelStop})
	c.setControl(display.ControlPlay, display.Presentation{Enabled: false, Label: display.LabelPlay})
	c.state = StateRecording
	c.updateStatus()

	ctx, cancel := context.WithCancel(c.runCtx)
	c.cancelAct = cancel
	capture := c.deps.Capture
	c.activities.Go(func() {
		err := capture.Start(ctx)
		c.post(activityEvent{kind: captureEnded, gen: gen, err: err})
	})

	slog.Info("Recording started", "take_id", c.takeID, "generation", gen)

	if c.deps.StartCheck > 0 {
		return c.awaitStart(gen)
	}
	return nil
}

// awaitStart handles activity events for up to StartCheck and returns the
// capture error if this generation's capture failed in that window.
func (c *Controller) awaitStart(gen uint64) error {
	deadline := time.NewTimer(c.deps.StartCheck)
	defer deadline.Stop()

	for {
		select {
		case ev := <-c.events:
			c.handleEvent(ev)
			if ev.gen == gen && ev.kind == captureEnded && ev.err != nil {
				return ev.err
			}
		case <-deadline.C:
			return nil
		}
	}
}

func (c *Controller) stopRecording(ctx context.Context) error {
	c.timer.Cancel()
	c.setControl(display.ControlRecord, display.Presentation{Enabled: true, Label: display.LabelRecord})

	stopErr := c.deps.Capture.Stop()
	c.cancelActivity()
	c.join()
	c.state = StateIdle
	c.updateStatus()

	log := slog.With("take_id", c.takeID, "generation", c.gen)
	log.Info("Recording stopped", "elapsed", c.timer.Elapsed())

	if stopErr != nil {
		c.deps.Capture.Discard()
		c.restorePlay()
		c.deps.Notifier.NotifyError("stop recording", stopErr)
		return stopErr
	}

	path, ok, err := c.deps.Prompter.ChooseSavePath(ctx)
	if err != nil {
		c.deps.Capture.Discard()
		c.restorePlay()
		c.deps.Notifier.NotifyError("choose save path", err)
		return err
	}
	if !ok {
		log.Info("Save cancelled, take discarded")
		c.deps.Capture.Discard()
		c.restorePlay()
		return nil
	}

	path = EnsureExtension(path, c.deps.Extension)
	if err := c.deps.Capture.Save(path); err != nil {
		c.restorePlay()
		c.deps.Notifier.NotifyError("save recording", err)
		return err
	}

	c.savedPath = path
	c.setControl(display.ControlPlay, display.Presentation{Enabled: true, Label: display.LabelPlay})
	c.updateStatus()
	log.Info("Recording saved", "path", path)
	c.deps.Notifier.NotifyInfo("Saved recorded sound to:\n" + path)
	return nil
}

func (c *Controller) startPlayback() error {
	c.join()

	c.gen++
	gen := c.gen
	path := c.savedPath

	c.timer = c.newTimer()
	c.timer.Start(c.deps.Sink)
	c.setControl(display.ControlRecord, display.Presentation{Enabled: false, Label: display.LabelRecord})
	c.setControl(display.ControlPlay, display.Presentation{Enabled: true, Label: display.LabelStop})
	c.state = StatePlaying
	c.updateStatus()

	ctx, cancel := context.WithCancel(c.runCtx)
	c.cancelAct = cancel
	playback := c.deps.Playback
	c.activities.Go(func() {
		err := playback.Play(ctx, path)
		c.post(activityEvent{kind: playbackEnded, gen: gen, err: err})
	})

	slog.Info("Playback started", "path", path, "generation", gen)
	return nil
}

func (c *Controller) stopPlayback() error {
	c.timer.Reset()
	c.cancelActivity()
	if err := c.deps.Playback.Stop(); err != nil {
		slog.Warn("Failed to stop playback", "error", err)
	}
	c.restoreControls()
	c.state = StateIdle
	c.updateStatus()

	slog.Info("Playback stopped", "generation", c.gen)
	return nil
}

func (c *Controller) handleEvent(ev activityEvent) {
	if ev.gen != c.gen {
		slog.Debug("Stale activity event dropped", "generation", ev.gen, "current", c.gen)
		return
	}

	switch ev.kind {
	case captureEnded:
		if c.state != StateRecording {
			return
		}
		if ev.err == nil {
			// the tool exited on its own; the take waits for stop
			slog.Info("Capture ended before stop", "take_id", c.takeID)
			return
		}
		c.timer.Reset()
		c.cancelActivity()
		c.deps.Capture.Discard()
		c.setControl(display.ControlRecord, c.preRecord)
		c.setControl(display.ControlPlay, c.prePlay)
		c.state = StateIdle
		c.updateStatus()
		slog.Error("Recording failed", "take_id", c.takeID, "error", ev.err)
		c.deps.Notifier.NotifyError("start recording", ev.err)

	case playbackEnded:
		if c.state != StatePlaying {
			return
		}
		c.timer.Reset()
		c.cancelActivity()
		c.restoreControls()
		c.state = StateIdle
		c.updateStatus()
		if ev.err != nil {
			slog.Error("Playback failed", "path", c.savedPath, "error", ev.err)
			c.deps.Notifier.NotifyError("play", ev.err)
			return
		}
		slog.Info("Playback finished", "path", c.savedPath)
	}
}

func (c *Controller) shutdown() {
	close(c.quit)

	switch c.state {
	case StateRecording:
		c.timer.Cancel()
		if err := c.deps.Capture.Stop(); err != nil {
			slog.Warn("Failed to stop capture on shutdown", "error", err)
		}
	case StatePlaying:
		c.timer.Reset()
		if err := c.deps.Playback.Stop(); err != nil {
			slog.Warn("Failed to stop playback on shutdown", "error", err)
		}
	}
	c.cancelActivity()
	c.join()

	c.state = StateIdle
	c.updateStatus()
	slog.Debug("Session shut down")
}

// join waits for the previous capture/playback activity and timer loop.
// Events posted meanwhile belong to the activities being joined, whose
// outcome the caller handles, so they are dropped rather than left to fill
// the queue the activities are blocked on.
func (c *Controller) join() {
	var panicked any
	waited := make(chan struct{})
	go func() {
		defer close(waited)
		if r := c.activities.WaitAndRecover(); r != nil {
			panicked = r.Value
		}
	}()

wait:
	for {
		select {
		case <-waited:
			break wait
		case ev := <-c.events:
			slog.Debug("Activity event dropped while joining", "generation", ev.gen, "current", c.gen)
		}
	}

	if panicked != nil {
		slog.Error("Session activity panicked", "panic", panicked)
	}
	if c.timer != nil {
		c.timer.Cancel()
		c.timer.Wait()
	}
}

func (c *Controller) post(ev activityEvent) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Controller) cancelActivity() {
	if c.cancelAct != nil {
		c.cancelAct()
		c.cancelAct = nil
	}
}

func (c *Controller) newTimer() *timer.Elapsed {
	return timer.New(
		timer.WithClock(c.deps.Clock),
		timer.WithLabel(c.deps.Label),
		timer.WithInterval(c.deps.TickInterval),
	)
}

// restorePlay re-enables Play only when something has been saved.
func (c *Controller) restorePlay() {
	c.setControl(display.ControlPlay, display.Presentation{Enabled: c.savedPath != "", Label: display.LabelPlay})
	c.updateStatus()
}

func (c *Controller) restoreControls() {
	c.setControl(display.ControlPlay, display.Presentation{Enabled: true, Label: display.LabelPlay})
	c.setControl(display.ControlRecord, display.Presentation{Enabled: true, Label: display.LabelRecord})
}

func (c *Controller) setControl(control display.Control, p display.Presentation) {
	switch control {
	case display.ControlRecord:
		c.record = p
	case display.ControlPlay:
		c.play = p
	}
	c.deps.Sink.SetControl(control, p)
}

func (c *Controller) updateStatus() {
	s := Status{
		State:      c.state,
		Generation: c.gen,
		SavedPath:  c.savedPath,
		Record:     c.record,
		Play:       c.play,
	}
	if c.takeID != uuid.Nil {
		s.TakeID = c.takeID.String()
	}

	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// EnsureExtension appends ext unless path already ends with it, ignoring
// case.
func EnsureExtension(path, ext string) string {
	if strings.EqualFold(filepath.Ext(path), ext) {
		return path
	}
	return path + ext
}
