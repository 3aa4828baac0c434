package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/soundrecorder/internal/config"
)

// stopGrace is how long a capture tool gets to exit after SIGINT.
var stopGrace = 5 * time.Second

// CommandCapture records by running a tool that streams raw PCM to stdout.
// The captured frames are held in memory until Save.
type CommandCapture struct {
	cfg    config.AudioConfig
	format Format

	mu       sync.Mutex
	cmd      *exec.Cmd
	running  bool
	stopping bool
	done     chan struct{}

	take    []byte
	hasTake bool
}

func NewCommandCapture(cfg config.AudioConfig) *CommandCapture {
	return &CommandCapture{
		cfg:    cfg,
		format: FormatFromConfig(cfg),
	}
}

// Format returns the PCM format takes are recorded in.
func (c *CommandCapture) Format() Format {
	return c.format
}

// Start runs the capture tool and blocks until it exits. It returns nil
// when capture ended through Stop or ctx.
func (c *CommandCapture) Start(ctx context.Context) error {
	// whatever an earlier start left behind never belongs to this take
	c.mu.Lock()
	if !c.running {
		c.take = nil
		c.hasTake = false
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: capture cancelled before start", ErrDeviceUnavailable)
	}

	argv, err := ResolveCaptureCommand(c.cfg)
	if err != nil {
		return err
	}

	path, err := lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, argv[0], err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(path, argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("%w: capture already running", ErrDeviceUnavailable)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: failed to start %s: %v", ErrDeviceUnavailable, argv[0], err)
	}
	done := make(chan struct{})
	c.cmd = cmd
	c.running = true
	c.stopping = false
	c.done = done
	c.take = nil
	c.hasTake = false
	c.mu.Unlock()

	slog.Info("Capture started", "command", strings.Join(argv, " "), "format", c.format.String())

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-done:
		}
	}()

	waitErr := cmd.Wait()

	c.mu.Lock()
	stopping := c.stopping
	c.running = false
	c.cmd = nil
	c.take = stdout.Bytes()
	c.hasTake = true
	close(done)
	c.mu.Unlock()

	captured := stdout.Len()
	if stopping {
		slog.Debug("Capture stopped", "bytes", captured)
		return nil
	}

	if waitErr != nil {
		slog.Debug("Capture tool stderr", "output", stderr.String())
		if captured == 0 {
			return fmt.Errorf("%w: %s exited: %v: %s", ErrDeviceUnavailable, argv[0], waitErr, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%w: %s exited after %d bytes: %v", ErrIOFailure, argv[0], captured, waitErr)
	}

	slog.Debug("Capture tool exited on its own", "bytes", captured)
	return nil
}

// Stop interrupts the capture tool and waits for Start to collect the
// take. The tool is killed if it ignores SIGINT for stopGrace. Stopping a
// capture that is not running fails unless the last Start left a take.
func (c *CommandCapture) Stop() error {
	c.mu.Lock()
	if !c.running {
		hasTake := c.hasTake
		c.mu.Unlock()
		if hasTake {
			return nil
		}
		return fmt.Errorf("%w: capture is not running", ErrIOFailure)
	}
	c.stopping = true
	cmd := c.cmd
	done := c.done
	c.mu.Unlock()

	slog.Debug("Sending SIGINT to capture tool")
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to interrupt capture tool, killing", "error", err)
		cmd.Process.Kill()
	}

	select {
	case <-done:
	case <-time.After(stopGrace):
		slog.Warn("Capture tool did not exit within timeout, force killing")
		cmd.Process.Kill()
		<-done
	}

	return nil
}

// Save writes the last take to path as a 16-bit PCM WAV file. The take is
// consumed whether or not the write succeeds.
func (c *CommandCapture) Save(path string) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("%w: capture still running", ErrIOFailure)
	}
	take, hasTake := c.take, c.hasTake
	c.take = nil
	c.hasTake = false
	c.mu.Unlock()

	if !hasTake {
		return fmt.Errorf("%w: nothing recorded", ErrIOFailure)
	}

	if err := WriteWAV(path, c.format, take); err != nil {
		return err
	}

	slog.Info("Saved take", "path", path, "bytes", len(take))
	return nil
}

// Discard drops the buffered take without writing it.
func (c *CommandCapture) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	if c.hasTake {
		slog.Debug("Take discarded", "bytes", len(c.take))
	}
	c.take = nil
	c.hasTake = false
}
