// Package display carries the session's presentation (time readout and
// the two toggle controls) to whatever renders it.
package display

import "fmt"

// Control identifies one of the two toggle buttons.
type Control int

const (
	ControlRecord Control = iota
	ControlPlay
)

func (c Control) String() string {
	switch c {
	case ControlRecord:
		return "record"
	case ControlPlay:
		return "play"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}

func (c Control) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Button captions.
const (
	LabelRecord = "Record"
	LabelStop   = "Stop"
	LabelPlay   = "Play"
)

// Presentation is how a control currently looks.
type Presentation struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// Sink renders presentation updates. Implementations may assume calls are
// never concurrent when they sit behind a Queue.
type Sink interface {
	SetTimeText(text string)
	SetControl(control Control, p Presentation)
}

// Snapshot is the complete presentation at one instant.
type Snapshot struct {
	TimeText string       `json:"time_text"`
	Record   Presentation `json:"record"`
	Play     Presentation `json:"play"`
}

// Apply folds a control update into the snapshot.
func (s *Snapshot) Apply(control Control, p Presentation) {
	switch control {
	case ControlRecord:
		s.Record = p
	case ControlPlay:
		s.Play = p
	}
}

// Fanout forwards every update to each sink in order.
type Fanout []Sink

func (f Fanout) SetTimeText(text string) {
	for _, s := range f {
		s.SetTimeText(text)
	}
}

func (f Fanout) SetControl(control Control, p Presentation) {
	for _, s := range f {
		s.SetControl(control, p)
	}
}

// Discard drops every update.
type Discard struct{}

func (Discard) SetTimeText(string)                {}
func (Discard) SetControl(Control, Presentation) {}
