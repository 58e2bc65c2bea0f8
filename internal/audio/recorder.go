package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Recorder reads utterances from the default input device.
type Recorder struct {
	// mu serialises access to the device across overlapping capture runs.
	mu  sync.Mutex
	det Detector
	cfg SegmentConfig
}

func NewRecorder(det Detector, cfg SegmentConfig) *Recorder {
	return &Recorder{det: det, cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// NextUtterance blocks until one utterance has been spoken, nothing was said
// for the configured wait, or ctx ends. A nil slice with a nil error means no
// speech.
func (r *Recorder) NextUtterance(ctx context.Context) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]float32, r.cfg.FrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	seg := NewSegmenter(r.det, r.cfg)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input stream: %w", err)
		}

		done, err := seg.Push(buf)
		if err != nil {
			return nil, err
		}
		if done {
			return seg.Utterance(), nil
		}
	}
}
