// Package prompt decides where a finished take is saved.
package prompt

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
)

type nameKey struct{}

// WithName attaches a requested recording name to ctx for Auto.
func WithName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, nameKey{}, name)
}

// NameFrom returns the name set by WithName, if any.
func NameFrom(ctx context.Context) string {
	name, _ := ctx.Value(nameKey{}).(string)
	return name
}

// DefaultName is a timestamped file name without extension.
func DefaultName(clock clockwork.Clock) string {
	return "recording-" + clock.Now().Format("20060102-150405")
}

// CleanName keeps letters, digits, spaces, hyphens, underscores and dots,
// then turns spaces into underscores.
func CleanName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
	return strings.Trim(cleaned, ".")
}

// Auto saves into dir without asking. The name comes from the context or
// the current time.
type Auto struct {
	dir   string
	clock clockwork.Clock
}

func NewAuto(dir string, clock clockwork.Clock) *Auto {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Auto{dir: dir, clock: clock}
}

func (a *Auto) ChooseSavePath(ctx context.Context) (string, bool, error) {
	name := CleanName(NameFrom(ctx))
	if name == "" {
		name = DefaultName(a.clock)
	}
	return filepath.Join(a.dir, name), true, nil
}

// Terminal asks on out and reads the answer from lines. An empty answer
// takes the suggested name and "-" discards the take. Relative answers
// are placed in dir.
type Terminal struct {
	lines <-chan string
	out   io.Writer
	dir   string
	clock clockwork.Clock
}

func NewTerminal(lines <-chan string, out io.Writer, dir string, clock clockwork.Clock) *Terminal {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Terminal{lines: lines, out: out, dir: dir, clock: clock}
}

func (t *Terminal) ChooseSavePath(ctx context.Context) (string, bool, error) {
	suggested := DefaultName(t.clock)
	fmt.Fprintf(t.out, "\nSave recording as [%s] (\"-\" to discard): ", suggested)

	var answer string
	select {
	case line, ok := <-t.lines:
		if !ok {
			return "", false, io.EOF
		}
		answer = strings.TrimSpace(line)
	case <-ctx.Done():
		return "", false, ctx.Err()
	}

	switch answer {
	case "-":
		return "", false, nil
	case "":
		answer = suggested
	}

	answer = expandHome(answer)
	if !filepath.IsAbs(answer) {
		answer = filepath.Join(t.dir, answer)
	}
	return answer, true, nil
}
