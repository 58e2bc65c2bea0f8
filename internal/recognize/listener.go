// Package recognize implements platform.Recognizer on top of an audio source
// and a batch transcriber.
package recognize

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"sync"

	"lily/internal/platform"
)

var (
	// ErrDenied marks credential or permission failures of a transcriber.
	ErrDenied = errors.New("access denied")
	// ErrLanguage marks a locale the transcriber cannot handle.
	ErrLanguage = errors.New("language not supported")
)

// Source yields one utterance per call. (nil, nil) means nobody spoke.
type Source interface {
	NextUtterance(ctx context.Context) ([]float32, error)
}

// Transcriber turns 16 kHz mono PCM into text in the given locale.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32, locale string) (string, error)
}

// Listener runs one capture goroutine per session. Results are emitted
// with the session they belong to; the controller drops stale ones.
type Listener struct {
	src  Source
	tr   Transcriber
	emit platform.Emitter

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewListener(src Source, tr Transcriber, emit platform.Emitter) *Listener {
	return &Listener{src: src, tr: tr, emit: emit}
}

// Start does not block. Any previous session is cancelled first.
func (l *Listener) Start(opts platform.CaptureOptions) error {
	if l.src == nil || l.tr == nil {
		return platform.ErrUnsupported
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel

	go l.run(ctx, opts)
	return nil
}

// Stop cancels the running session. It does not wait for the goroutine:
// the loop calling Stop is the one draining its events.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	return nil
}

func (l *Listener) run(ctx context.Context, opts platform.CaptureOptions) {
	log.Debug("Capture session started", "session", opts.Session, "locale", opts.Locale)
	defer log.Debug("Capture session ended", "session", opts.Session)

	for {
		pcm, err := l.src.NextUtterance(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.fail(ctx, opts.Session, platform.AudioCapture, err)
			return
		}
		if len(pcm) == 0 {
			l.fail(ctx, opts.Session, platform.NoSpeech, nil)
			return
		}

		text, err := l.tr.Transcribe(ctx, pcm, opts.Locale)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.fail(ctx, opts.Session, Classify(err), err)
			return
		}

		text = strings.TrimSpace(text)
		if text == "" {
			l.fail(ctx, opts.Session, platform.NoSpeech, nil)
			return
		}

		l.emit(platform.Event{
			Kind:       platform.CaptureResult,
			Session:    opts.Session,
			Transcript: text,
		})

		if !opts.Continuous {
			return
		}
	}
}

func (l *Listener) fail(ctx context.Context, session uint64, kind platform.ErrorKind, err error) {
	if ctx.Err() != nil {
		return
	}
	l.emit(platform.Event{
		Kind:    platform.CaptureError,
		Session: session,
		ErrKind: kind,
		Err:     err,
	})
}

// Classify maps a transcriber error to the recognition error taxonomy.
func Classify(err error) platform.ErrorKind {
	var netErr net.Error

	switch {
	case errors.Is(err, ErrDenied):
		return platform.NotAllowed
	case errors.Is(err, ErrLanguage):
		return platform.LanguageNotSupported
	case errors.As(err, &netErr):
		return platform.Network
	default:
		return platform.Aborted
	}
}

func wrapLanguage(locale string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLanguage, locale, err)
}
