package audioconv

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sine(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	in := sine(1600)
	path := filepath.Join(t.TempDir(), "tone.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := EncodeWAV(f, in, SampleRate); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out, err := DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if d := math.Abs(float64(out[i] - in[i])); d > 1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestDecodeSniffsHeader(t *testing.T) {
	f, err := TempWAV(sine(800), 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	out, err := Decode(f, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1600 {
		t.Errorf("8 kHz input resampled to %d samples, want 1600", len(out))
	}
}

func TestDecodeUnknown(t *testing.T) {
	_, err := Decode(strings.NewReader("definitely not audio"), ".txt")
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("error = %v, want ErrFormat", err)
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Downmix = %v, want %v", got, want)
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		from, to int
		n, want  int
	}{
		{16000, 16000, 100, 100},
		{48000, 16000, 480, 160},
		{8000, 16000, 100, 200},
	}
	for _, tt := range tests {
		if got := len(Resample(make([]float32, tt.n), tt.from, tt.to)); got != tt.want {
			t.Errorf("Resample(%d, %d->%d) = %d samples, want %d", tt.n, tt.from, tt.to, got, tt.want)
		}
	}
}
