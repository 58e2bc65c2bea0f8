package audio

import (
	"testing"
	"time"
)

// scripted reports speech for the frames whose first sample is non-zero.
type scripted struct{}

func (scripted) IsSpeech(frame []int16) (bool, error) { return frame[0] != 0, nil }

func frame(speech bool) []float32 {
	f := make([]float32, 160)
	if speech {
		for i := range f {
			f[i] = 0.5
		}
	}
	return f
}

func testConfig() SegmentConfig {
	return SegmentConfig{
		SampleRate: 16000,
		FrameSize:  160, // 10ms
		Silence:    30 * time.Millisecond,
		NoSpeech:   50 * time.Millisecond,
		MaxLength:  200 * time.Millisecond,
	}
}

func feed(t *testing.T, s *Segmenter, pattern string) (int, bool) {
	t.Helper()
	for i, c := range pattern {
		done, err := s.Push(frame(c == 'S'))
		if err != nil {
			t.Fatal(err)
		}
		if done {
			return i + 1, true
		}
	}
	return len(pattern), false
}

func TestSegmenter(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		wantAfter int
		wantLen   int
	}{
		{"utterance ends on silence", "..SSSS...SS", 9, 4 * 160},
		{"short pause does not end", "SS..SS...", 9, 6 * 160},
		{"nobody speaks", "..........", 5, 0},
		{"capped at max length", "SSSSSSSSSSSSSSSSSSSSSSSS", 20, 20 * 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSegmenter(scripted{}, testConfig())
			n, done := feed(t, s, tt.pattern)
			if !done || n != tt.wantAfter {
				t.Fatalf("done=%v after %d frames, want %d", done, n, tt.wantAfter)
			}
			if got := len(s.Utterance()); got != tt.wantLen {
				t.Errorf("utterance has %d samples, want %d", got, tt.wantLen)
			}
		})
	}
}

func TestSegmenterReset(t *testing.T) {
	s := NewSegmenter(scripted{}, testConfig())
	feed(t, s, "SS...")
	s.Reset()

	if s.Utterance() != nil {
		t.Fatal("utterance survived reset")
	}
	if _, done := feed(t, s, "...."); done {
		t.Error("reset did not clear the frame count")
	}
}

func TestEnergy(t *testing.T) {
	e := Energy{Threshold: 0.015}

	quiet, _ := e.IsSpeech(toInt16(frame(false)))
	loud, _ := e.IsSpeech(toInt16(frame(true)))
	if quiet || !loud {
		t.Errorf("quiet=%v loud=%v", quiet, loud)
	}
}

func TestPCMBytesLittleEndian(t *testing.T) {
	b := pcmBytes([]int16{0x0102, -2})
	want := []byte{0x02, 0x01, 0xfe, 0xff}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("bytes = % x, want % x", b, want)
		}
	}
}
