// Package assistant runs Lily: one goroutine owns every controller and
// consumes the platform event queue.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	"lily/internal/bridge"
	"lily/internal/capture"
	"lily/internal/chat"
	"lily/internal/duplex"
	"lily/internal/intent"
	"lily/internal/lang"
	"lily/internal/platform"
	"lily/internal/synth"
)

var ErrStopped = errors.New("assistant stopped")

type Config struct {
	// Language is the initial language code. Unknown codes fall back to the
	// table default.
	Language string

	// Acknowledge speaks a short confirmation for command actions.
	Acknowledge bool

	// Pitch and Rate are relative to the synthesizer default. Zero keeps the
	// controller defaults.
	Pitch float64
	Rate  float64

	Texts  *lang.Table
	Router *intent.Router

	// Scheduler drives the resume delay. Nil means wall clock.
	Scheduler duplex.Scheduler
}

// Backends are the platform services. Nil speech backends disable the
// corresponding feature; a nil App only logs commands.
type Backends struct {
	Recognizer  platform.Recognizer
	Synthesizer platform.Synthesizer
	App         bridge.App
}

type Assistant struct {
	queue *platform.Queue
	texts *lang.Table
	ack   bool

	capture *capture.Controller
	synth   *synth.Controller
	duplex  *duplex.Coordinator
	session *chat.Session
	bridge  *bridge.Bridge

	// ctx is the context of Run, used for command dispatch.
	ctx context.Context

	// OnNotice receives user-facing warnings, such as a lost microphone.
	OnNotice func(msg string)
	// OnTransition observes the voice state machine.
	OnTransition func(from, to duplex.State)
}

// New wires the controllers. Backends must emit into q.
func New(q *platform.Queue, cfg Config, be Backends) (*Assistant, error) {
	texts := cfg.Texts
	if texts == nil {
		texts = lang.Default()
	}
	router := cfg.Router
	if router == nil {
		r, err := intent.NewRouter(texts)
		if err != nil {
			return nil, fmt.Errorf("load intent rules: %w", err)
		}
		router = r
	}
	app := be.App
	if app == nil {
		app = bridge.LogApp{}
	}

	code := cfg.Language
	if _, ok := texts.Lookup(code); !ok {
		if code != "" {
			log.Warn("Unknown language, using default", "lang", code, "default", texts.DefaultCode())
		}
		code = texts.DefaultCode()
	}

	a := &Assistant{
		queue:   q,
		texts:   texts,
		ack:     cfg.Acknowledge,
		capture: capture.New(be.Recognizer, texts.Locale(code)),
		synth:   synth.New(be.Synthesizer),
		bridge:  bridge.New(app),
		ctx:     context.Background(),
	}

	if cfg.Pitch > 0 {
		a.synth.Pitch = cfg.Pitch
	}
	if cfg.Rate > 0 {
		a.synth.Rate = cfg.Rate
	}

	a.duplex = duplex.New(a.capture, a.synth, cfg.Scheduler, q.Emit)
	a.duplex.OnTransition = func(from, to duplex.State) {
		if a.OnTransition != nil {
			a.OnTransition(from, to)
		}
	}

	a.session = chat.New(texts, router, a.dispatch)
	a.session.SetLanguage(code)

	a.capture.OnTranscript = a.onTranscript
	a.capture.OnError = a.onCaptureError
	a.synth.OnSpeechEnd = a.duplex.EndSpeaking

	return a, nil
}

// Run consumes events until ctx ends. Both speech resources are released on
// return.
func (a *Assistant) Run(ctx context.Context) error {
	a.ctx = ctx
	defer func() {
		a.queue.Close()
		a.bridge.Close()
		a.duplex.Close()
		log.Debug("Assistant stopped")
	}()

	log.Info("Assistant running",
		"lang", a.session.Language(),
		"capture", a.capture.Available(),
		"synthesis", a.synth.Available(),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.queue.C():
			a.handle(ev)
		}
	}
}

func (a *Assistant) handle(ev platform.Event) {
	switch ev.Kind {
	case platform.CaptureResult, platform.CaptureError:
		a.capture.Handle(ev)
	case platform.SpeechEnd:
		a.synth.Handle(ev)
	case platform.ResumeDue:
		a.duplex.Handle(ev)
	case platform.Call:
		if ev.Call != nil {
			ev.Call()
		}
	default:
		log.Warn("Unknown event", "kind", ev.Kind)
	}
}

func (a *Assistant) onTranscript(text string) {
	log.Info("Heard", "text", text)

	act, ok := a.session.Submit(text)
	if !ok {
		return
	}
	if act.Kind == intent.Reply {
		a.speak(act.Text)
	}
}

func (a *Assistant) onCaptureError(kind platform.ErrorKind, err error) {
	log.Warn("Speech capture stopped", "kind", kind, "err", err)
	a.duplex.CaptureFailed()

	if a.OnNotice != nil {
		a.OnNotice("Voice input stopped: " + string(kind))
	}
}

// dispatch is the session's command sink. The portal call runs on the bridge
// worker; its outcome comes back to the loop as a Call event.
func (a *Assistant) dispatch(act intent.Action) {
	log.Info("Command", "action", act)

	err := a.bridge.Submit(a.ctx, act, func(err error) {
		a.queue.Emit(platform.Event{Kind: platform.Call, Call: func() {
			a.dispatched(act, err)
		}})
	})
	if err != nil {
		log.Error("Failed to dispatch", "action", act, "err", err)
	}
}

func (a *Assistant) dispatched(act intent.Action, err error) {
	if err != nil {
		log.Error("Failed to dispatch", "action", act, "err", err)
		return
	}
	if a.ack {
		a.acknowledge(act)
	}
}

func (a *Assistant) acknowledge(act intent.Action) {
	var key lang.Key
	switch act.Kind {
	case intent.SetFilter:
		key = lang.AckFilter
	case intent.OpenSettings:
		key = lang.AckSettings
	case intent.Logout:
		key = lang.AckLogout
	default:
		return
	}

	text, err := a.texts.Render(a.session.Language(), key, struct{ Filter intent.Filter }{act.Filter})
	if err != nil {
		log.Debug("No acknowledgement", "key", key, "err", err)
		return
	}
	a.speak(text)
}

func (a *Assistant) speak(text string) {
	if strings.TrimSpace(text) == "" || !a.synth.Available() {
		return
	}
	// Failures are logged by the coordinator and settle the state machine.
	_ = a.duplex.Speak(text, a.capture.Locale())
}

// do runs f on the loop and waits for it.
func (a *Assistant) do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	a.queue.Emit(platform.Event{Kind: platform.Call, Call: func() {
		defer close(done)
		f()
	}})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.queue.Done():
		return ErrStopped
	}
}
