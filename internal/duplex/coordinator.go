// Package duplex arbitrates between speech capture and speech synthesis.
package duplex

import (
	"errors"
	log "log/slog"
	"time"

	"lily/internal/platform"
)

// ResumeAfter is how long the microphone stays closed after speech ends.
const ResumeAfter = 500 * time.Millisecond

// Capture is the part of the capture controller the coordinator drives.
type Capture interface {
	Start() error
	Stop()
}

// Speaker is the part of the synthesis controller the coordinator drives.
type Speaker interface {
	Speak(text, locale string) error
	Cancel()
}

// Timer is a pending resume.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. f runs on an arbitrary goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// WallClock schedules on real time.
var WallClock Scheduler = wallClock{}

// Coordinator is the single owner of both speech resources. It is driven
// from the assistant loop only; the resume timer reports back through emit.
type Coordinator struct {
	capture Capture
	speaker Speaker
	sched   Scheduler
	emit    platform.Emitter

	state      State
	wantListen bool

	timer Timer
	gen   uint64

	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

func New(c Capture, s Speaker, sched Scheduler, emit platform.Emitter) *Coordinator {
	if sched == nil {
		sched = WallClock
	}
	return &Coordinator{
		capture: c,
		speaker: s,
		sched:   sched,
		emit:    emit,
		state:   Idle,
	}
}

func (d *Coordinator) State() State { return d.state }

// WantsListening reports whether the user asked for the microphone.
func (d *Coordinator) WantsListening() bool { return d.wantListen }

// EnableListening opens the microphone when idle. While speech is playing the
// wish is only recorded and honoured by the resume.
func (d *Coordinator) EnableListening() {
	d.wantListen = true

	if d.state != Idle {
		return
	}
	d.listen()
}

// DisableListening closes the microphone and drops a pending resume.
func (d *Coordinator) DisableListening() {
	d.wantListen = false

	switch d.state {
	case Listening:
		d.capture.Stop()
		d.transition(Idle)
	case ResumeDelay:
		d.cancelResume()
		d.transition(Idle)
	}
}

// BeginSpeaking closes the microphone ahead of playback.
func (d *Coordinator) BeginSpeaking() {
	switch d.state {
	case Listening:
		d.capture.Stop()
	case ResumeDelay:
		d.cancelResume()
	case Speaking:
		return
	}
	d.transition(Speaking)
}

// Speak plays text. A synthesis failure counts as an immediate end of speech.
func (d *Coordinator) Speak(text, locale string) error {
	d.BeginSpeaking()

	if err := d.speaker.Speak(text, locale); err != nil {
		if errors.Is(err, platform.ErrUnsupported) {
			log.Debug("Speech synthesis unavailable", "text", text)
		} else {
			log.Warn("Failed to speak", "err", err)
		}
		d.settle()
		return err
	}

	return nil
}

// EndSpeaking starts the resume delay.
func (d *Coordinator) EndSpeaking() {
	if d.state != Speaking {
		return
	}
	d.transition(ResumeDelay)

	d.gen++
	gen := d.gen
	d.timer = d.sched.AfterFunc(ResumeAfter, func() {
		d.emit(platform.Event{Kind: platform.ResumeDue, Seq: gen})
	})
}

// Handle processes a ResumeDue event. Events of a cancelled timer are ignored.
func (d *Coordinator) Handle(ev platform.Event) {
	if ev.Kind != platform.ResumeDue {
		return
	}
	if d.state != ResumeDelay || ev.Seq != d.gen || d.timer == nil {
		log.Debug("Ignoring stale resume", "seq", ev.Seq, "gen", d.gen, "state", d.state)
		return
	}
	d.timer = nil
	d.settle()
}

// CaptureFailed records that the recognizer stopped on a fatal error.
func (d *Coordinator) CaptureFailed() {
	d.wantListen = false
	if d.state == Listening {
		d.transition(Idle)
	}
}

// Close releases both resources.
func (d *Coordinator) Close() {
	d.wantListen = false
	d.cancelResume()
	d.capture.Stop()
	d.speaker.Cancel()
	if d.state != Idle {
		d.transition(Idle)
	}
}

// settle leaves Speaking/ResumeDelay for Listening or Idle.
func (d *Coordinator) settle() {
	d.cancelResume()
	if d.wantListen {
		d.listen()
		return
	}
	d.transition(Idle)
}

func (d *Coordinator) listen() {
	if err := d.capture.Start(); err != nil {
		if errors.Is(err, platform.ErrUnsupported) {
			log.Debug("Speech recognition unavailable")
		} else {
			log.Warn("Failed to start capture", "err", err)
		}
		d.wantListen = false
		d.transition(Idle)
		return
	}
	d.transition(Listening)
}

func (d *Coordinator) cancelResume() {
	if d.timer == nil {
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
}

func (d *Coordinator) transition(to State) {
	from := d.state
	if from == to {
		return
	}
	d.state = to

	log.Debug("Voice state", "from", from, "to", to)
	if d.OnTransition != nil {
		d.OnTransition(from, to)
	}
}
