package audio

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/soundrecorder/internal/config"
)

func stubLookPath(t *testing.T, installed ...string) {
	t.Helper()

	old := lookPath
	t.Cleanup(func() { lookPath = old })

	lookPath = func(file string) (string, error) {
		for _, name := range installed {
			if name == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestCaptureArgs(t *testing.T) {
	format := Format{SampleRate: 48000, Channels: 2, BitDepth: 16}

	tests := []struct {
		backend  Backend
		device   string
		expected []string
	}{
		{BackendPipeWire, "", []string{"pw-record", "--format", "s16", "--rate", "48000", "--channels", "2", "-"}},
		{BackendPipeWire, "alsa_input.usb", []string{"pw-record", "--format", "s16", "--rate", "48000", "--channels", "2", "--target", "alsa_input.usb", "-"}},
		{BackendPulse, "", []string{"parecord", "--raw", "--format=s16le", "--rate=48000", "--channels=2"}},
		{BackendPulse, "mic", []string{"parecord", "--raw", "--format=s16le", "--rate=48000", "--channels=2", "--device=mic"}},
		{BackendALSA, "", []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "48000", "-c", "2"}},
		{BackendALSA, "hw:1,0", []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "48000", "-c", "2", "-D", "hw:1,0"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend)+"/"+tt.device, func(t *testing.T) {
			args, err := CaptureArgs(tt.backend, tt.device, format)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}

	_, err := CaptureArgs(BackendCommand, "", format)
	assert.Error(t, err)
}

func TestResolveCaptureCommand_AutoPrefersPipeWire(t *testing.T) {
	stubLookPath(t, "arecord", "pw-record")

	args, err := ResolveCaptureCommand(config.AudioConfig{SampleRate: 44100, Channels: 1, CaptureBackend: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "pw-record", args[0])
	assert.Equal(t, []Backend{BackendPipeWire, BackendALSA}, AvailableBackends())
}

func TestResolveCaptureCommand_AutoFallsBackToALSA(t *testing.T) {
	stubLookPath(t, "arecord")

	args, err := ResolveCaptureCommand(config.AudioConfig{SampleRate: 44100, Channels: 1, CaptureBackend: "auto", CaptureDevice: "hw:0,0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"arecord", "-q", "-t", "raw", "-f", "S16_LE", "-r", "44100", "-c", "1", "-D", "hw:0,0"}, args)
}

func TestResolveCaptureCommand_NothingInstalled(t *testing.T) {
	stubLookPath(t)

	_, err := ResolveCaptureCommand(config.AudioConfig{SampleRate: 44100, Channels: 1, CaptureBackend: "auto"})
	assert.True(t, errors.Is(err, ErrDeviceUnavailable), "got %v", err)
}

func TestResolveCaptureCommand_CommandIsCopied(t *testing.T) {
	cfg := config.AudioConfig{CaptureBackend: "command", CaptureCommand: []string{"rec", "-"}}

	args, err := ResolveCaptureCommand(cfg)
	require.NoError(t, err)
	args[0] = "changed"
	assert.Equal(t, "rec", cfg.CaptureCommand[0])
}
