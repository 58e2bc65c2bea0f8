package assistant

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	"lily/internal/chat"
	"lily/internal/duplex"
	"lily/internal/intent"
	"lily/internal/lang"
	"lily/internal/platform"
)

// Status is a snapshot of the assistant, taken on the loop.
type Status struct {
	State     duplex.State
	Voice     bool
	Language  string
	Locale    string
	Open      bool
	Turns     int
	Capture   bool
	Synthesis bool
}

// The methods below are safe to call from any goroutine. Each one runs on
// the loop and returns once it has been applied.

// EnableVoice turns the microphone on. Switching voice on is announced
// first; the microphone opens once playback has finished.
func (a *Assistant) EnableVoice(ctx context.Context) error {
	var err error
	callErr := a.do(ctx, func() {
		if !a.capture.Available() {
			err = platform.ErrUnsupported
			return
		}
		if !a.duplex.WantsListening() {
			a.speak(a.texts.Text(a.session.Language(), lang.VoiceOn))
		}
		a.duplex.EnableListening()
		if !a.duplex.WantsListening() {
			err = fmt.Errorf("enable voice: capture did not start")
		}
	})
	if callErr != nil {
		return callErr
	}
	return err
}

func (a *Assistant) DisableVoice(ctx context.Context) error {
	return a.do(ctx, a.duplex.DisableListening)
}

// Submit handles typed input the same way as a voice transcript. The reply is
// spoken only while voice is enabled.
func (a *Assistant) Submit(ctx context.Context, text string) (intent.Action, bool, error) {
	var (
		act intent.Action
		ok  bool
	)
	err := a.do(ctx, func() {
		act, ok = a.session.Submit(text)
		if ok && act.Kind == intent.Reply && a.duplex.WantsListening() {
			a.speak(act.Text)
		}
	})
	return act, ok, err
}

// SetLanguage switches conversation and recognition language. History is
// kept.
func (a *Assistant) SetLanguage(ctx context.Context, code string) error {
	if _, ok := a.texts.Lookup(code); !ok {
		return fmt.Errorf("%w: %q", lang.ErrUnknownLanguage, code)
	}

	return a.do(ctx, func() {
		a.session.SetLanguage(code)

		locale := a.texts.Locale(code)
		if err := a.capture.SetLocale(locale); err != nil {
			a.onCaptureError(platform.Aborted, err)
			return
		}
		log.Info("Language changed", "lang", code, "locale", locale)
	})
}

// Announce speaks the welcome with the number of available opportunities.
func (a *Assistant) Announce(ctx context.Context, count int) error {
	var err error
	callErr := a.do(ctx, func() {
		var text string
		text, err = a.texts.Render(a.session.Language(), lang.Welcome, struct{ Count int }{count})
		if err != nil {
			return
		}
		a.session.Say(text)
		a.speak(text)
	})
	if callErr != nil {
		return callErr
	}
	return err
}

// Say appends text as an assistant turn and speaks it.
func (a *Assistant) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return a.do(ctx, func() {
		a.session.Say(text)
		a.speak(text)
	})
}

func (a *Assistant) Open(ctx context.Context) error   { return a.do(ctx, a.session.Open) }
func (a *Assistant) Close(ctx context.Context) error  { return a.do(ctx, a.session.Close) }
func (a *Assistant) Toggle(ctx context.Context) error { return a.do(ctx, a.session.Toggle) }

func (a *Assistant) History(ctx context.Context) ([]chat.Utterance, error) {
	var h []chat.Utterance
	err := a.do(ctx, func() { h = a.session.History() })
	return h, err
}

func (a *Assistant) Status(ctx context.Context) (Status, error) {
	var st Status
	err := a.do(ctx, func() {
		st = Status{
			State:     a.duplex.State(),
			Voice:     a.duplex.WantsListening(),
			Language:  a.session.Language(),
			Locale:    a.capture.Locale(),
			Open:      a.session.IsOpen(),
			Turns:     a.session.Len(),
			Capture:   a.capture.Available(),
			Synthesis: a.synth.Available(),
		}
	})
	return st, err
}
