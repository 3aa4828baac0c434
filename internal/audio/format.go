package audio

import (
	"fmt"

	"github.com/audiolibrelab/soundrecorder/internal/config"
)

// Format describes linear signed little-endian PCM.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	BitDepth   int `json:"bit_depth"`
}

// FormatFromConfig returns the 16-bit capture format for cfg.
func FormatFromConfig(cfg config.AudioConfig) Format {
	return Format{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BitDepth:   16,
	}
}

// FrameSize is the number of bytes in one sample across all channels.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

func (f Format) String() string {
	return fmt.Sprintf("s%dle %dHz %dch", f.BitDepth, f.SampleRate, f.Channels)
}
