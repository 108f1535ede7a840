package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, path string, rate, channels int, seconds float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	frames := int(float64(rate) * seconds)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(math.Sin(2*math.Pi*440*float64(i)/float64(rate)) * 16000)
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFileDecoder_WAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Tone.WAV")
	writeWAV(t, path, 24000, 2, 2)

	clip, err := NewFileDecoder(48000, 1).Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if clip.SampleRate != 48000 {
		t.Errorf("SampleRate=%d", clip.SampleRate)
	}
	if len(clip.Samples) != 48000 {
		t.Errorf("len(Samples)=%d, want 48000 (truncated to 1s)", len(clip.Samples))
	}
	if math.Abs(clip.Duration-2) > 0.01 {
		t.Errorf("Duration=%f, want 2 (full source length)", clip.Duration)
	}
	var peak float32
	for _, s := range clip.Samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 0.4 || peak > 0.5 {
		t.Errorf("peak=%f, expected about 16000/32768", peak)
	}
}

func TestFileDecoder_KeepsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	writeWAV(t, path, 48000, 1, 0.5)

	clip, err := NewFileDecoder(48000, 0).Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(clip.Samples) != 24000 {
		t.Errorf("len(Samples)=%d, want 24000", len(clip.Samples))
	}
}

func TestFileDecoder_Errors(t *testing.T) {
	dir := t.TempDir()
	dec := NewFileDecoder(48000, 10)
	ctx := context.Background()

	if _, err := dec.Decode(ctx, filepath.Join(dir, "notes.txt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("want ErrUnsupportedFormat, got %v", err)
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a riff file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Decode(ctx, bad); err == nil {
		t.Error("expected error for invalid WAV")
	}

	if _, err := dec.Decode(ctx, filepath.Join(dir, "missing.flac")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFlacScale(t *testing.T) {
	tests := []struct {
		bits    uint8
		want    float32
		wantErr bool
	}{
		{16, 32768, false},
		{24, 8388608, false},
		{32, 2147483648, false},
		{4, 8, false},
		{0, 0, true},
		{3, 0, true},
		{33, 0, true},
	}
	for _, tt := range tests {
		got, err := flacScale(tt.bits)
		if (err != nil) != tt.wantErr {
			t.Errorf("flacScale(%d) error = %v, wantErr %v", tt.bits, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("flacScale(%d) = %v, want %v", tt.bits, got, tt.want)
		}
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.wav": true, "b.AIF": true, "c.aiff": true, "d.flac": true, "e.Mp3": true,
		"f.ogg": false, "g": false, "h.wav.bak": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q)=%v, want %v", path, got, want)
		}
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	mono := []float32{1, 2}
	if out := Downmix(mono, 1); &out[0] != &mono[0] {
		t.Error("mono input should be returned as is")
	}
}

func TestResample(t *testing.T) {
	up := Resample([]float32{0, 1, 2, 3}, 1, 2)
	if len(up) != 8 {
		t.Fatalf("len=%d, want 8", len(up))
	}
	if up[1] != 0.5 || up[2] != 1 || up[7] != 3 {
		t.Errorf("upsampled = %v", up)
	}
	down := Resample([]float32{0, 1, 2, 3, 4, 5}, 3, 1)
	if len(down) != 2 || down[0] != 0 || down[1] != 3 {
		t.Errorf("downsampled = %v", down)
	}
	same := []float32{1, 2, 3}
	if out := Resample(same, 48000, 48000); len(out) != 3 {
		t.Errorf("same-rate resample changed length: %v", out)
	}
}
