// Package audio decodes supported audio files into mono float32 clips at the
// embedding model's sample rate.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupportedFormat is returned for files whose extension has no decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is a decoded mono clip. Duration is the length of the whole source file in
// seconds, even when Samples was truncated.
type Clip struct {
	Samples    []float32
	SampleRate int
	Duration   float64
}

// Decoder loads an audio file as a Clip.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Clip, error)
}

// pcm is interleaved float32 samples in [-1, 1] as read from a file.
type pcm struct {
	data       []float32
	channels   int
	sampleRate int
	frames     int64 // total frames in the source, may exceed len(data)/channels
}

type formatDecoder func(f *os.File, maxFrames func(rate int) int) (*pcm, error)

var formats = map[string]formatDecoder{
	".wav":  decodeWAV,
	".aif":  decodeAIFF,
	".aiff": decodeAIFF,
	".flac": decodeFLAC,
	".mp3":  decodeMP3,
}

// Supported reports whether path has an extension with a decoder.
func Supported(path string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the supported extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FileDecoder decodes files by extension, downmixes to mono, resamples to the target
// rate and keeps at most maxSeconds of audio.
type FileDecoder struct {
	sampleRate int
	maxSeconds float64
}

// NewFileDecoder returns a decoder producing clips at sampleRate, at most maxSeconds long.
// A non-positive maxSeconds keeps the whole file.
func NewFileDecoder(sampleRate int, maxSeconds float64) *FileDecoder {
	return &FileDecoder{sampleRate: sampleRate, maxSeconds: maxSeconds}
}

// Decode reads the file at path.
func (d *FileDecoder) Decode(ctx context.Context, path string) (*Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := formats[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := decode(f, d.maxFrames)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if p.channels <= 0 || p.sampleRate <= 0 {
		return nil, fmt.Errorf("decode %s: invalid format (channels=%d rate=%d)", filepath.Base(path), p.channels, p.sampleRate)
	}
	if len(p.data) == 0 {
		return nil, fmt.Errorf("decode %s: no audio samples", filepath.Base(path))
	}

	mono := Downmix(p.data, p.channels)
	if max := d.maxFrames(p.sampleRate); max > 0 && len(mono) > max {
		mono = mono[:max]
	}
	samples := Resample(mono, p.sampleRate, d.sampleRate)
	if max := d.maxFrames(d.sampleRate); max > 0 && len(samples) > max {
		samples = samples[:max]
	}

	frames := p.frames
	if frames <= 0 {
		frames = int64(len(p.data) / p.channels)
	}
	return &Clip{
		Samples:    samples,
		SampleRate: d.sampleRate,
		Duration:   float64(frames) / float64(p.sampleRate),
	}, nil
}

// maxFrames returns how many frames at rate fit in maxSeconds; 0 means unlimited.
func (d *FileDecoder) maxFrames(rate int) int {
	if d.maxSeconds <= 0 {
		return 0
	}
	return int(d.maxSeconds * float64(rate))
}
