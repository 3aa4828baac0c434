package timer

import "time"

// DefaultLabel prefixes every readout unless configured otherwise.
const DefaultLabel = "Record Time"

// zero is the epoch durations are laid onto, so no zone offset leaks in.
var zero = time.Unix(0, 0).UTC()

// Format renders d as HH:MM:SS. Hours wrap at 24 and negative durations
// read as zero.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return zero.Add(d).Format("15:04:05")
}

// Text is the full readout, e.g. "Record Time: 00:01:05".
func Text(label string, d time.Duration) string {
	return label + ": " + Format(d)
}
