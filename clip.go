package speechgate

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

// Clip is a decoded audio clip owned by a single request.
type Clip struct {
	Path       string
	Data       []byte // the complete WAV container
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int64
}

// Duration returns the playable length of the clip in seconds.
func (c Clip) Duration() float64 {
	return Duration(c.Frames, c.SampleRate)
}

// ReadClip reads and decodes the WAV file at path.
func ReadClip(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("speechgate: read clip: %w", err)
	}

	h, err := decodeHeader(bytes.NewReader(data))
	if err != nil {
		return Clip{}, err
	}

	return Clip{
		Path:       path,
		Data:       data,
		SampleRate: h.sampleRate,
		Channels:   h.channels,
		BitDepth:   h.bitDepth,
		Frames:     h.frames,
	}, nil
}

// ProbeWAV reports whether the file at path is a readable WAV container.
func ProbeWAV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("speechgate: open clip: %w", err)
	}
	defer f.Close()

	_, err = decodeHeader(f)
	return err
}

type wavHeader struct {
	sampleRate int
	channels   int
	bitDepth   int
	frames     int64
}

// decodeHeader reads the fmt and data chunk headers without loading samples.
func decodeHeader(r io.ReadSeeker) (h wavHeader, err error) {
	defer func() {
		// The decoder panics on some truncated chunk layouts.
		if p := recover(); p != nil {
			h, err = wavHeader{}, fmt.Errorf("%w: decoder panic: %v", ErrInvalidClip, p)
		}
	}()

	d := wav.NewDecoder(r)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return wavHeader{}, fmt.Errorf("%w: %v", ErrInvalidClip, err)
	}
	if d.SampleRate == 0 || d.NumChans == 0 || d.BitDepth < 8 {
		return wavHeader{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidClip)
	}

	if err := d.FwdToPCM(); err != nil {
		return wavHeader{}, fmt.Errorf("%w: %v", ErrInvalidClip, err)
	}

	blockAlign := int64(d.NumChans) * int64(d.BitDepth/8)
	return wavHeader{
		sampleRate: int(d.SampleRate),
		channels:   int(d.NumChans),
		bitDepth:   int(d.BitDepth),
		frames:     d.PCMLen() / blockAlign,
	}, nil
}
