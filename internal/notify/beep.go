// Package notify gives audible and visual cues outside of speech.
package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Earcon plays a short sound, the cue that the microphone just opened.
type Earcon struct {
	path string

	mu     sync.Mutex
	buf    *beep.Buffer
	inited bool
}

func NewEarcon(path string) *Earcon {
	return &Earcon{path: path}
}

// load decodes the file once into memory.
func (e *Earcon) load() error {
	if e.buf != nil {
		return nil
	}

	f, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("open earcon: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode earcon: %w", err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	e.buf = buf

	if !e.inited {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("init speaker: %w", err)
		}
		e.inited = true
	}
	return nil
}

// Play blocks until the sound has finished.
func (e *Earcon) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.load(); err != nil {
		return err
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(e.buf.Streamer(0, e.buf.Len()), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// Desktop shows a desktop notification through notify-send.
func Desktop(ctx context.Context, summary, body string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "notify-send", "-a", "Lily", summary, body).Run(); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}
