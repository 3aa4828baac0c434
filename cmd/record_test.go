package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/soundrecorder/internal/config"
)

func recordConfig(t *testing.T, capture ...string) string {
	t.Helper()
	dir := t.TempDir()
	cfg = config.Default()
	cfg.Output.Directory = filepath.Join(dir, "takes")
	cfg.Audio.CaptureBackend = "command"
	cfg.Audio.CaptureCommand = capture
	cfgFile = ""
	t.Cleanup(func() { cfg = nil })
	return dir
}

func TestRecordOnce_FailingCaptureFails(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"fails at once", "echo boom >&2; exit 3"},
		{"fails after data", "printf '\\001\\000'; sleep 1; exit 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recordConfig(t, "sh", "-c", tt.command)

			stop := make(chan os.Signal)
			errCh := make(chan error, 1)
			go func() { errCh <- recordOnce(context.Background(), "take", stop, &syncBuffer{}) }()

			select {
			case err := <-errCh:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "exit status 3")
			case <-time.After(10 * time.Second):
				t.Fatal("record kept waiting after the capture tool failed")
			}
			assert.NoFileExists(t, filepath.Join(cfg.Output.Directory, "take.wav"))
		})
	}
}

func TestRecordOnce_SavesOnStop(t *testing.T) {
	dir := recordConfig(t)
	mark := filepath.Join(dir, "started")
	cfg.Audio.CaptureCommand = []string{"sh", "-c", "printf '\\001\\000\\002\\000'; touch " + mark + "; exec sleep 30"}

	stop := make(chan os.Signal, 1)
	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() { errCh <- recordOnce(context.Background(), "take", stop, out) }()

	require.Eventually(t, fileExists(mark), 5*time.Second, 10*time.Millisecond, "capture never started")
	stop <- os.Interrupt

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("record did not return after stop")
	}

	saved := filepath.Join(cfg.Output.Directory, "take.wav")
	assert.FileExists(t, saved)
	assert.True(t, strings.Contains(out.String(), saved))
}
