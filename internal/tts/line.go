package tts

import (
	"errors"
	log "log/slog"
	"sync"

	"lily/internal/platform"
)

var ErrClosed = errors.New("synthesizer closed")

// line is the playback queue of a synthesizer. At most one speech waits
// behind the one playing and a newer speech replaces it. Every speech that
// was accepted gets exactly one SpeechEnd, whether it played, was cut or was
// dropped while waiting.
type line struct {
	emit platform.Emitter
	// play blocks until s has finished or cut reports true.
	play func(s platform.Speech, cut func() bool) error

	mu      sync.Mutex
	pending *platform.Speech
	dropped []uint64
	playing uint64
	cutID   uint64
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newLine(emit platform.Emitter, play func(platform.Speech, func() bool) error) *line {
	l := &line{
		emit: emit,
		play: play,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

// push makes s the next speech to play.
func (l *line) push(s platform.Speech) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.dropPending()
	l.pending = &s
	l.signal()
	return nil
}

// cancel cuts the speech being played and drops the waiting one.
func (l *line) cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dropPending()
	l.cutID = l.playing
	l.signal()
}

// close cuts playback, drops the waiting speech and stops the worker.
func (l *line) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.dropPending()
	l.cutID = l.playing
	l.mu.Unlock()

	close(l.stop)
	<-l.done
}

// cut reports whether the speech being played has been cancelled.
func (l *line) cut() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playing != 0 && l.cutID == l.playing
}

func (l *line) run() {
	defer close(l.done)

	for {
		select {
		case <-l.stop:
			l.flushDropped()
			return
		case <-l.wake:
		}

		for {
			s, ok := l.next()
			l.flushDropped()
			if !ok {
				break
			}

			if err := l.play(s, l.cut); err != nil {
				log.Error("Failed to voice out", "id", s.ID, "err", err)
			}

			l.mu.Lock()
			l.playing = 0
			l.mu.Unlock()
			l.emit(platform.Event{Kind: platform.SpeechEnd, Session: s.ID})
		}
	}
}

// next takes the waiting speech and marks it as playing.
func (l *line) next() (platform.Speech, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil || l.closed {
		return platform.Speech{}, false
	}
	s := *l.pending
	l.pending = nil
	l.playing = s.ID
	return s, true
}

func (l *line) flushDropped() {
	l.mu.Lock()
	ids := l.dropped
	l.dropped = nil
	l.mu.Unlock()

	for _, id := range ids {
		l.emit(platform.Event{Kind: platform.SpeechEnd, Session: id})
	}
}

func (l *line) dropPending() {
	if l.pending != nil {
		l.dropped = append(l.dropped, l.pending.ID)
		l.pending = nil
	}
}

func (l *line) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
