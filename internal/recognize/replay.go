package recognize

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"lily/pkg/audioconv"
)

// Replay plays recorded audio files as if they had been spoken, one file per
// utterance. Once exhausted it stays silent until cancelled.
type Replay struct {
	mu    sync.Mutex
	paths []string
	next  int

	// Gap is waited before each file.
	Gap time.Duration
}

func NewReplay(paths ...string) *Replay {
	return &Replay{paths: paths, Gap: time.Second}
}

func (r *Replay) NextUtterance(ctx context.Context) ([]float32, error) {
	r.mu.Lock()
	if r.next >= len(r.paths) {
		r.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	path := r.paths[r.next]
	r.next++
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.Gap):
	}

	pcm, err := audioconv.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	log.Debug("Replaying", "file", path, "samples", len(pcm))
	return pcm, nil
}
