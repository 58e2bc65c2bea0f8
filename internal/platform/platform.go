// Package platform describes the speech services the assistant drives and
// the single event queue through which they report back.
package platform

import (
	"errors"
	"sync"
)

// ErrUnsupported is returned when the host offers no recognition or
// synthesis capability. Callers treat it as "feature unavailable".
var ErrUnsupported = errors.New("capability not supported on this platform")

// ErrorKind classifies a recognition failure.
type ErrorKind string

const (
	NoSpeech             ErrorKind = "no-speech"
	Aborted              ErrorKind = "aborted"
	AudioCapture         ErrorKind = "audio-capture"
	Network              ErrorKind = "network"
	NotAllowed           ErrorKind = "not-allowed"
	LanguageNotSupported ErrorKind = "language-not-supported"
)

// Transient reports whether the kind is retried without surfacing it.
func (k ErrorKind) Transient() bool { return k == NoSpeech }

// CaptureOptions configures one recognition session.
type CaptureOptions struct {
	Locale     string
	Continuous bool
	// Session tags every event the recognizer emits for this run.
	Session uint64
}

// Recognizer is a speech-to-text service. Start must not block; results are
// emitted as CaptureResult / CaptureError events carrying opts.Session.
type Recognizer interface {
	Start(opts CaptureOptions) error
	Stop() error
}

// Voice is one synthesis voice offered by the platform.
type Voice struct {
	Name   string
	Lang   string
	Female bool
}

// Speech is one synthesis request.
type Speech struct {
	ID     uint64
	Text   string
	Locale string
	// Voice is nil when the platform default should be used.
	Voice *Voice
	Pitch float64
	Rate  float64
}

// Synthesizer is a text-to-speech service. Speak must not block; completion
// (natural or cancelled) is emitted as a SpeechEnd event carrying Speech.ID.
type Synthesizer interface {
	Voices() []Voice
	Speak(s Speech) error
	Cancel() error
}

type EventKind int

const (
	CaptureResult EventKind = iota
	CaptureError
	SpeechEnd
	ResumeDue
	Call
)

func (k EventKind) String() string {
	switch k {
	case CaptureResult:
		return "capture-result"
	case CaptureError:
		return "capture-error"
	case SpeechEnd:
		return "speech-end"
	case ResumeDue:
		return "resume-due"
	case Call:
		return "call"
	default:
		return "unknown"
	}
}

// Event is everything that can wake the assistant loop.
type Event struct {
	Kind EventKind

	// Session is the capture session or speech ID the event belongs to.
	Session uint64

	Transcript string
	ErrKind    ErrorKind
	Err        error

	// Seq identifies the resume timer generation for ResumeDue.
	Seq uint64

	// Call runs on the loop for Call events.
	Call func()
}

// Emitter delivers an event to the loop.
type Emitter func(Event)

// Queue is the single inbound event channel of the assistant.
type Queue struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Emit enqueues ev. It blocks while the queue is full and drops the event
// once the queue has been closed.
func (q *Queue) Emit(ev Event) {
	select {
	case <-q.done:
		return
	default:
	}

	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

// C is the receive side, consumed by exactly one loop.
func (q *Queue) C() <-chan Event { return q.ch }

// Done is closed once the queue stops accepting events.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Close unblocks pending emitters. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
