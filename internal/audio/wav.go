package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVInfo is what ProbeWAV learns from a file header.
type WAVInfo struct {
	Format   Format        `json:"format"`
	Duration time.Duration `json:"duration"`
}

// WriteWAV encodes raw S16LE frames as a PCM WAV file at path. A trailing
// partial frame is dropped. A failed write removes the partial file.
func WriteWAV(path string, format Format, pcm []byte) (err error) {
	if format.BitDepth != 16 {
		return fmt.Errorf("%w: cannot encode %d-bit samples", ErrUnsupportedFormat, format.BitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIOFailure, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %v", ErrIOFailure, path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	frames := len(pcm) / format.FrameSize()
	data := make([]int, frames*format.Channels)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	enc := wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: format.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrIOFailure, path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: finalize %s: %v", ErrIOFailure, path, err)
	}

	return nil
}

// ProbeWAV checks that path is a readable WAV file and returns its format
// and length.
func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("%w: open %s: %v", ErrIOFailure, path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("%w: %s is not a WAV file", ErrUnsupportedFormat, path)
	}

	if err := dec.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}

	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	bytesPerSec := format.SampleRate * format.FrameSize()
	if bytesPerSec == 0 {
		return WAVInfo{}, fmt.Errorf("%w: %s has an empty fmt chunk", ErrUnsupportedFormat, path)
	}

	return WAVInfo{
		Format:   format,
		Duration: time.Duration(float64(dec.PCMSize) / float64(bytesPerSec) * float64(time.Second)),
	}, nil
}
