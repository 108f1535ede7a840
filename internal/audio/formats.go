package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

func fromIntBuffer(buf *audio.IntBuffer, frames int64) *pcm {
	fb := buf.AsFloat32Buffer()
	return &pcm{
		data:       fb.Data,
		channels:   buf.Format.NumChannels,
		sampleRate: buf.Format.SampleRate,
		frames:     frames,
	}
}

func decodeWAV(f *os.File, _ func(int) int) (*pcm, error) {
	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return fromIntBuffer(buf, 0), nil
}

func decodeAIFF(f *os.File, _ func(int) int) (*pcm, error) {
	d := aiff.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, errors.New("invalid AIFF file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return fromIntBuffer(buf, 0), nil
}

// decodeFLAC stops parsing frames once maxFrames are read; the total length comes
// from the stream info block.
func decodeFLAC(f *os.File, maxFrames func(int) int) (*pcm, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	rate := int(stream.Info.SampleRate)
	scale, err := flacScale(stream.Info.BitsPerSample)
	if err != nil {
		return nil, err
	}
	limit := maxFrames(rate)

	var data []float32
	read := 0
	for limit == 0 || read < limit {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for _, sub := range frame.Subframes {
				data = append(data, float32(sub.Samples[i])/scale)
			}
		}
		read += n
	}
	return &pcm{
		data:       data,
		channels:   channels,
		sampleRate: rate,
		frames:     int64(stream.Info.NSamples),
	}, nil
}

// flacScale returns the full-scale value for signed samples of the given bit depth.
// FLAC allows 4 to 32 bits per sample.
func flacScale(bits uint8) (float32, error) {
	if bits < 4 || bits > 32 {
		return 0, fmt.Errorf("invalid FLAC bit depth %d", bits)
	}
	return float32(int64(1) << (bits - 1)), nil
}

// decodeMP3 reads 16-bit little-endian stereo PCM, which go-mp3 always produces.
func decodeMP3(f *os.File, maxFrames func(int) int) (*pcm, error) {
	d, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}
	const bytesPerFrame = 4
	rate := d.SampleRate()
	var r io.Reader = d
	if limit := maxFrames(rate); limit > 0 {
		r = io.LimitReader(d, int64(limit)*bytesPerFrame)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data := make([]float32, len(raw)/2)
	for i := range data {
		s := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		data[i] = float32(s) / 32768
	}
	var frames int64
	if n := d.Length(); n > 0 {
		frames = n / bytesPerFrame
	}
	return &pcm{data: data, channels: 2, sampleRate: rate, frames: frames}, nil
}
