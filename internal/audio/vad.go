package audio

import (
	"fmt"
	"math"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// Detector decides whether one frame of 16-bit mono PCM contains speech.
type Detector interface {
	IsSpeech(frame []int16) (bool, error)
}

// WebRTC is the libwebrtc voice activity detector. Frames must be 10, 20 or
// 30 ms long at 8, 16, 32 or 48 kHz.
type WebRTC struct {
	vad  *webrtcvad.VAD
	rate int
}

// NewWebRTC returns a detector with aggressiveness mode 0..3.
func NewWebRTC(mode, rate int) (*WebRTC, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create vad: %w", err)
	}

	mode = min(max(mode, 0), 3)
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("set vad mode %d: %w", mode, err)
	}

	return &WebRTC{vad: v, rate: rate}, nil
}

func (w *WebRTC) IsSpeech(frame []int16) (bool, error) {
	speech, err := w.vad.Process(w.rate, pcmBytes(frame))
	if err != nil {
		return false, fmt.Errorf("vad: %d samples at %d Hz: %w", len(frame), w.rate, err)
	}
	return speech, nil
}

// Energy is a plain RMS gate, used when the WebRTC detector is unavailable.
type Energy struct {
	Threshold float64
}

func (e Energy) IsSpeech(frame []int16) (bool, error) {
	return frameRMS(frame) > e.Threshold, nil
}

// SegmentConfig controls how a stream of frames is cut into utterances.
type SegmentConfig struct {
	SampleRate int
	FrameSize  int // samples per frame

	// Silence ends an utterance once speech has started.
	Silence time.Duration
	// NoSpeech ends the wait when nothing has been said.
	NoSpeech time.Duration
	// MaxLength caps a single utterance.
	MaxLength time.Duration
}

func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		SampleRate: 16000,
		FrameSize:  320, // 20ms
		Silence:    600 * time.Millisecond,
		NoSpeech:   8 * time.Second,
		MaxLength:  15 * time.Second,
	}
}

func (c SegmentConfig) frames(d time.Duration) int {
	frameDur := time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
	n := int(d / frameDur)
	return max(n, 1)
}

// Segmenter collects one utterance from successive frames.
type Segmenter struct {
	det Detector
	cfg SegmentConfig

	silenceFrames  int
	noSpeechFrames int
	maxFrames      int

	out      []float32
	frames   int
	speaking bool
	silent   int
}

func NewSegmenter(det Detector, cfg SegmentConfig) *Segmenter {
	return &Segmenter{
		det:            det,
		cfg:            cfg,
		silenceFrames:  cfg.frames(cfg.Silence),
		noSpeechFrames: cfg.frames(cfg.NoSpeech),
		maxFrames:      cfg.frames(cfg.MaxLength),
	}
}

// Push feeds one frame of float samples in [-1, 1]. done reports that the
// utterance is complete; it may be empty when nobody spoke.
func (s *Segmenter) Push(frame []float32) (done bool, err error) {
	s.frames++

	speech, err := s.det.IsSpeech(toInt16(frame))
	if err != nil {
		return false, err
	}

	switch {
	case speech:
		s.speaking = true
		s.silent = 0
		s.out = append(s.out, frame...)
	case s.speaking:
		s.silent++
		s.out = append(s.out, frame...)
		if s.silent >= s.silenceFrames {
			return true, nil
		}
	default:
		if s.frames >= s.noSpeechFrames {
			return true, nil
		}
	}

	return s.frames >= s.maxFrames, nil
}

// Utterance returns the collected samples with trailing silence removed.
func (s *Segmenter) Utterance() []float32 {
	if !s.speaking {
		return nil
	}
	n := len(s.out) - s.silent*s.cfg.FrameSize
	return s.out[:max(n, 0)]
}

func (s *Segmenter) Reset() {
	s.out = s.out[:0]
	s.frames, s.silent = 0, 0
	s.speaking = false
}

func toInt16(f []float32) []int16 {
	out := make([]int16, len(f))
	for i, x := range f {
		x = min(max(x, -1), 1)
		out[i] = int16(x * 32767)
	}
	return out
}

// pcmBytes encodes samples as little-endian bytes, the layout webrtcvad reads.
func pcmBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[2*i] = byte(s)
		b[2*i+1] = byte(s >> 8)
	}
	return b
}

func frameRMS(f []int16) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		v := float64(x) / 32768
		s += v * v
	}
	return math.Sqrt(s / float64(len(f)))
}
