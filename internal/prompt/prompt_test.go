package prompt

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestAuto_DefaultName(t *testing.T) {
	a := NewAuto("/rec", clockwork.NewFakeClockAt(fixed))

	path, ok, err := a.ChooseSavePath(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/rec/recording-20260314-092653", path)
}

func TestAuto_NameFromContext(t *testing.T) {
	a := NewAuto("/rec", clockwork.NewFakeClockAt(fixed))

	path, ok, err := a.ChooseSavePath(WithName(context.Background(), "../My Song!"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/rec/My_Song", path)
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"My Song":        "My_Song",
		"../../etc/pass": "etcpass",
		"take.wav":       "take.wav",
		"  spaced  ":     "spaced",
		"???":            "",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, CleanName(in), in)
	}
}

func TestTerminal_Answers(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		answer   string
		path     string
		expectOK bool
	}{
		{"default", "", "/rec/recording-20260314-092653", true},
		{"relative", "song", "/rec/song", true},
		{"absolute", "/tmp/take.wav", "/tmp/take.wav", true},
		{"home", "~/take", filepath.Join(home, "take"), true},
		{"discard", "-", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := make(chan string, 1)
			lines <- tt.answer
			var out bytes.Buffer

			p := NewTerminal(lines, &out, "/rec", clockwork.NewFakeClockAt(fixed))
			path, ok, err := p.ChooseSavePath(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.expectOK, ok)
			assert.Equal(t, tt.path, path)
			assert.Contains(t, out.String(), "[recording-20260314-092653]")
		})
	}
}

func TestTerminal_ClosedInput(t *testing.T) {
	lines := make(chan string)
	close(lines)

	_, ok, err := NewTerminal(lines, io.Discard, "/rec", nil).ChooseSavePath(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTerminal_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := NewTerminal(make(chan string), io.Discard, "/rec", nil).ChooseSavePath(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
