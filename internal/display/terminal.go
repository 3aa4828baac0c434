package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal redraws a single status line, e.g.
//
//	Record Time: 00:00:07   [Stop] (Play)
//
// Enabled controls are bracketed, disabled ones parenthesized.
type Terminal struct {
	w io.Writer

	mu    sync.Mutex
	state Snapshot
	width int
}

func NewTerminal(w io.Writer, initial Snapshot) *Terminal {
	return &Terminal{w: w, state: initial}
}

func (t *Terminal) SetTimeText(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.TimeText = text
	t.redraw()
}

func (t *Terminal) SetControl(control Control, p Presentation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Apply(control, p)
	t.redraw()
}

// Break ends the status line so other output starts on a fresh one.
func (t *Terminal) Break() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.width > 0 {
		fmt.Fprintln(t.w)
		t.width = 0
	}
}

func (t *Terminal) redraw() {
	line := Line(t.state)
	pad := ""
	if n := t.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(t.w, "\r%s%s", line, pad)
	t.width = len(line)
}

// Line renders a snapshot as one line of text.
func Line(s Snapshot) string {
	return fmt.Sprintf("%s   %s %s", s.TimeText, button(s.Record), button(s.Play))
}

func button(p Presentation) string {
	if p.Enabled {
		return "[" + p.Label + "]"
	}
	return "(" + p.Label + ")"
}
