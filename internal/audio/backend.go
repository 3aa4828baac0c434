package audio

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/audiolibrelab/soundrecorder/internal/config"
)

// Backend names the tool used to capture or enumerate input devices.
type Backend string

const (
	BackendAuto     Backend = "auto"
	BackendPipeWire Backend = "pipewire"
	BackendPulse    Backend = "pulse"
	BackendALSA     Backend = "alsa"
	BackendCommand  Backend = "command"
)

// autoOrder is the probe order for BackendAuto.
var autoOrder = []Backend{BackendPipeWire, BackendPulse, BackendALSA}

var captureTools = map[Backend]string{
	BackendPipeWire: "pw-record",
	BackendPulse:    "parecord",
	BackendALSA:     "arecord",
}

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// CaptureArgs builds the argv for a tool that writes raw S16LE frames of
// format to stdout until interrupted.
func CaptureArgs(backend Backend, device string, format Format) ([]string, error) {
	rate := strconv.Itoa(format.SampleRate)
	channels := strconv.Itoa(format.Channels)

	switch backend {
	case BackendPipeWire:
		args := []string{"pw-record", "--format", "s16", "--rate", rate, "--channels", channels}
		if device != "" {
			args = append(args, "--target", device)
		}
		return append(args, "-"), nil
	case BackendPulse:
		args := []string{"parecord", "--raw", "--format=s16le", "--rate=" + rate, "--channels=" + channels}
		if device != "" {
			args = append(args, "--device="+device)
		}
		return args, nil
	case BackendALSA:
		args := []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", channels}
		if device != "" {
			args = append(args, "-D", device)
		}
		return args, nil
	default:
		return nil, fmt.Errorf("no capture tool for backend %q", backend)
	}
}

// ResolveCaptureCommand picks the capture argv for cfg. With the auto
// backend the first installed tool wins.
func ResolveCaptureCommand(cfg config.AudioConfig) ([]string, error) {
	format := FormatFromConfig(cfg)
	backend := Backend(strings.ToLower(cfg.CaptureBackend))

	switch backend {
	case BackendCommand:
		if len(cfg.CaptureCommand) == 0 {
			return nil, fmt.Errorf("%w: capture_command is empty", ErrDeviceUnavailable)
		}
		return append([]string(nil), cfg.CaptureCommand...), nil
	case BackendAuto, "":
		b, err := DetectBackend()
		if err != nil {
			return nil, err
		}
		return CaptureArgs(b, cfg.CaptureDevice, format)
	default:
		return CaptureArgs(backend, cfg.CaptureDevice, format)
	}
}

// DetectBackend returns the first backend whose capture tool is installed.
func DetectBackend() (Backend, error) {
	for _, b := range autoOrder {
		if _, err := lookPath(captureTools[b]); err == nil {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: none of pw-record, parecord or arecord found in PATH", ErrDeviceUnavailable)
}

// AvailableBackends lists the backends whose capture tools are installed.
func AvailableBackends() []Backend {
	var backends []Backend
	for _, b := range autoOrder {
		if _, err := lookPath(captureTools[b]); err == nil {
			backends = append(backends, b)
		}
	}
	return backends
}
