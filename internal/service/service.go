package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/audiolibrelab/soundrecorder/internal/audio"
	"github.com/audiolibrelab/soundrecorder/internal/config"
	"github.com/audiolibrelab/soundrecorder/internal/display"
	"github.com/audiolibrelab/soundrecorder/internal/play"
	"github.com/audiolibrelab/soundrecorder/internal/prompt"
	"github.com/audiolibrelab/soundrecorder/internal/session"
	"github.com/audiolibrelab/soundrecorder/internal/timer"
)

// ErrNotFound is returned for recordings that do not exist.
var ErrNotFound = errors.New("recording not found")

// DefaultStartCheck is how long starting a recording waits for the capture
// tool to fail before reporting success.
const DefaultStartCheck = 250 * time.Millisecond

// Service represents the core sound recorder service interface
type Service interface {
	// Session lifecycle
	Run(ctx context.Context) error

	// Button operations
	ToggleRecord(ctx context.Context) error
	TogglePlay(ctx context.Context) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error

	// Status and information
	GetStatus() Status
	Subscribe() (<-chan display.Snapshot, func())
	GetConfig() *config.Config
	GetLastError() string
	GetLastMessage() string

	// Recording files
	ListRecordings() ([]RecordingInfo, error)
	RecordingPath(name string) (string, error)

	// Devices
	ListDevices() ([]audio.Device, error)
}

// Status is what UIs show: the session plus the display and last outcome.
type Status struct {
	State       session.State        `json:"state"`
	TimeText    string               `json:"time_text"`
	Record      display.Presentation `json:"record"`
	Play        display.Presentation `json:"play"`
	SavedPath   string               `json:"saved_path,omitempty"`
	TakeID      string               `json:"take_id,omitempty"`
	Generation  uint64               `json:"generation"`
	Profile     string               `json:"profile"`
	ConfigFile  string               `json:"config_file,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	LastMessage string               `json:"last_message,omitempty"`
}

// RecordingInfo contains information about a saved recording
type RecordingInfo struct {
	Name          string        `json:"name"`
	Path          string        `json:"path"`
	Size          int64         `json:"size"`
	SizeHuman     string        `json:"size_human"`
	ModTime       time.Time     `json:"mod_time"`
	ModTimeHuman  string        `json:"mod_time_human"`
	Duration      time.Duration `json:"duration"`
	DurationHuman string        `json:"duration_human"`
	Valid         bool          `json:"valid"`
	IsLatest      bool          `json:"is_latest"`
	StreamURL     string        `json:"stream_url"`
}

// Options replace the default collaborators. Zero values pick the
// subprocess capture and player, the Auto prompter and the real clock.
type Options struct {
	Capture  session.CaptureService
	Playback session.PlaybackService
	Prompter session.Prompter
	// Sink receives display updates next to the built-in Mirror.
	Sink display.Sink
	// Notifier is told about outcomes after the service records them.
	Notifier session.Notifier
	Clock    clockwork.Clock
	// StartCheck overrides DefaultStartCheck; negative disables the wait.
	StartCheck time.Duration
}

// RecorderService is the main service implementation
type RecorderService struct {
	cfg        *config.Config
	configFile string

	ctrl   *session.Controller
	queue  *display.Queue
	mirror *display.Mirror
	notify session.Notifier

	// Error tracking
	lastError      string
	lastMessage    string
	lastErrorMutex sync.RWMutex
}

// New wires the collaborators, the display pipeline and the session
// controller. Call Run to start processing.
func New(cfg *config.Config, configFile string, opts Options) (*RecorderService, error) {
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Capture == nil {
		opts.Capture = audio.NewCommandCapture(cfg.Audio)
	}
	if opts.Playback == nil {
		opts.Playback = play.New(cfg.Audio)
	}
	if opts.Prompter == nil {
		opts.Prompter = prompt.NewAuto(cfg.Output.Directory, opts.Clock)
	}
	switch {
	case opts.StartCheck == 0:
		opts.StartCheck = DefaultStartCheck
	case opts.StartCheck < 0:
		opts.StartCheck = 0
	}

	initial := display.Snapshot{
		TimeText: timer.Text(cfg.Display.Label, 0),
		Record:   display.Presentation{Enabled: true, Label: display.LabelRecord},
		Play:     display.Presentation{Enabled: false, Label: display.LabelPlay},
	}
	mirror := display.NewMirror(initial)
	sinks := display.Fanout{mirror}
	if opts.Sink != nil {
		sinks = append(sinks, opts.Sink)
	}

	s := &RecorderService{
		cfg:        cfg,
		configFile: configFile,
		mirror:     mirror,
		queue:      display.NewQueue(sinks, 64),
		notify:     opts.Notifier,
	}

	ctrl, err := session.New(session.Deps{
		Capture:      opts.Capture,
		Playback:     opts.Playback,
		Sink:         s.queue,
		Prompter:     opts.Prompter,
		Notifier:     s,
		Clock:        opts.Clock,
		Label:        cfg.Display.Label,
		TickInterval: cfg.Display.TickInterval,
		Extension:    cfg.Suffix(),
		StartCheck:   opts.StartCheck,
	})
	if err != nil {
		s.queue.Close()
		return nil, err
	}
	s.ctrl = ctrl

	return s, nil
}

// Run drives the session until ctx is done, then drains the display.
func (s *RecorderService) Run(ctx context.Context) error {
	slog.Debug("Service.Run called", "profile", s.cfg.Profile, "output", s.cfg.Output.Directory)
	err := s.ctrl.Run(ctx)
	s.queue.Close()
	return err
}

// ToggleRecord starts recording, or stops and saves the current take.
func (s *RecorderService) ToggleRecord(ctx context.Context) error {
	slog.Debug("Service.ToggleRecord called", "state", s.ctrl.Status().State)
	if s.ctrl.Status().State == session.StateIdle {
		s.clearLastError()
	}
	return s.ctrl.ToggleRecord(ctx)
}

// TogglePlay starts playback of the last save, or stops it.
func (s *RecorderService) TogglePlay(ctx context.Context) error {
	slog.Debug("Service.TogglePlay called", "state", s.ctrl.Status().State)
	if s.ctrl.Status().State == session.StateIdle {
		s.clearLastError()
	}
	return s.ctrl.TogglePlay(ctx)
}

// StartRecording starts a take. A capture that fails within the start
// check is reported here; later failures only reach GetLastError.
func (s *RecorderService) StartRecording(ctx context.Context) error {
	slog.Debug("Service.StartRecording called", "state", s.ctrl.Status().State)
	if s.ctrl.Status().State == session.StateIdle {
		s.clearLastError()
	}
	return s.ctrl.StartRecording(ctx)
}

// StopRecording stops and saves the current take. Unlike ToggleRecord it
// never starts a new one.
func (s *RecorderService) StopRecording(ctx context.Context) error {
	slog.Debug("Service.StopRecording called", "state", s.ctrl.Status().State)
	return s.ctrl.StopRecording(ctx)
}

// GetStatus returns the current session and display state
func (s *RecorderService) GetStatus() Status {
	st := s.ctrl.Status()
	snap := s.mirror.Snapshot()

	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()

	return Status{
		State:       st.State,
		TimeText:    snap.TimeText,
		Record:      snap.Record,
		Play:        snap.Play,
		SavedPath:   st.SavedPath,
		TakeID:      st.TakeID,
		Generation:  st.Generation,
		Profile:     s.cfg.Profile,
		ConfigFile:  s.configFile,
		LastError:   s.lastError,
		LastMessage: s.lastMessage,
	}
}

// Subscribe streams display snapshots; see display.Mirror.Subscribe.
func (s *RecorderService) Subscribe() (<-chan display.Snapshot, func()) {
	return s.mirror.Subscribe()
}

// Flush waits until queued display updates reached every sink.
func (s *RecorderService) Flush() {
	s.queue.Flush()
}

// GetConfig returns the current configuration
func (s *RecorderService) GetConfig() *config.Config {
	return s.cfg
}

// ListDevices lists capture sources for the configured backend.
func (s *RecorderService) ListDevices() ([]audio.Device, error) {
	return audio.ListDevices(audio.Backend(s.cfg.Audio.CaptureBackend))
}

// ListRecordings returns all WAV files in the recordings directory, newest
// first with the session's last save on top.
func (s *RecorderService) ListRecordings() ([]RecordingInfo, error) {
	recordingDir := s.cfg.Output.Directory

	files, err := os.ReadDir(recordingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	latest := s.ctrl.Status().SavedPath
	suffix := s.cfg.Suffix()

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(file.Name()), suffix) {
			continue
		}

		filePath := filepath.Join(recordingDir, file.Name())
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		rec := RecordingInfo{
			Name:         file.Name(),
			Path:         filePath,
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			IsLatest:     filePath == latest,
			StreamURL:    fmt.Sprintf("/api/recordings/stream/%s", file.Name()),
		}

		if wavInfo, err := audio.ProbeWAV(filePath); err == nil {
			rec.Valid = true
			rec.Duration = wavInfo.Duration
			rec.DurationHuman = timer.Format(wavInfo.Duration)
		} else {
			slog.Debug("Unreadable recording", "file", file.Name(), "error", err)
		}

		recordings = append(recordings, rec)
	}

	sort.Slice(recordings, func(i, j int) bool {
		if recordings[i].IsLatest {
			return true
		}
		if recordings[j].IsLatest {
			return false
		}
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})

	return recordings, nil
}

// RecordingPath resolves a bare file name inside the recordings directory.
func (s *RecorderService) RecordingPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	if !strings.EqualFold(filepath.Ext(name), s.cfg.Suffix()) {
		return "", fmt.Errorf("%w: %s is not a %s file", ErrNotFound, name, s.cfg.Suffix())
	}

	path := filepath.Join(s.cfg.Output.Directory, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

// NotifyError records a failure reported by the session.
func (s *RecorderService) NotifyError(op string, err error) {
	s.setLastError(fmt.Sprintf("Failed to %s: %v", op, err))
	if s.notify != nil {
		s.notify.NotifyError(op, err)
	}
}

// NotifyInfo records an informational message from the session.
func (s *RecorderService) NotifyInfo(msg string) {
	s.lastErrorMutex.Lock()
	s.lastMessage = msg
	s.lastError = ""
	s.lastErrorMutex.Unlock()

	slog.Info("Service message", "message", msg)
	if s.notify != nil {
		s.notify.NotifyInfo(msg)
	}
}

// GetLastError returns the last error message (thread-safe)
func (s *RecorderService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// GetLastMessage returns the last informational message (thread-safe)
func (s *RecorderService) GetLastMessage() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastMessage
}

// setLastError sets the last error message (thread-safe)
func (s *RecorderService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	// Log all errors for debugging and monitoring
	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *RecorderService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
