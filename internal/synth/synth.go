// Package synth owns the text-to-speech session.
package synth

import (
	"fmt"
	log "log/slog"
	"strings"

	"lily/internal/lang"
	"lily/internal/platform"
)

const (
	DefaultPitch = 1.2
	DefaultRate  = 1.0
)

// Controller wraps a platform synthesizer. Only one utterance is in flight at
// a time; every method runs on the assistant loop.
type Controller struct {
	syn platform.Synthesizer

	Pitch float64
	Rate  float64

	seq     uint64
	current uint64

	// OnSpeechEnd fires once per Speak that was not superseded or cancelled.
	OnSpeechEnd func()
}

func New(syn platform.Synthesizer) *Controller {
	return &Controller{
		syn:   syn,
		Pitch: DefaultPitch,
		Rate:  DefaultRate,
	}
}

func (c *Controller) Available() bool { return c.syn != nil }

// Speaking reports whether an utterance is in flight.
func (c *Controller) Speaking() bool { return c.current != 0 }

// Speak cancels whatever is playing and starts text in the given locale.
func (c *Controller) Speak(text, locale string) error {
	if c.syn == nil {
		return platform.ErrUnsupported
	}

	c.Cancel()

	voice, ok := SelectVoice(c.syn.Voices(), locale)
	if !ok {
		log.Debug("No voice for locale, using platform default", "locale", locale)
	}

	c.seq++
	s := platform.Speech{
		ID:     c.seq,
		Text:   text,
		Locale: locale,
		Pitch:  c.Pitch,
		Rate:   c.Rate,
	}
	if ok {
		s.Voice = &voice
	}

	if err := c.syn.Speak(s); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	c.current = s.ID

	return nil
}

// Cancel stops the utterance in flight, if any. Its end event is suppressed.
func (c *Controller) Cancel() {
	if c.current == 0 {
		return
	}
	c.current = 0

	if err := c.syn.Cancel(); err != nil {
		log.Warn("Failed to cancel speech", "err", err)
	}
}

// Handle processes a SpeechEnd event.
func (c *Controller) Handle(ev platform.Event) {
	if ev.Kind != platform.SpeechEnd || ev.Session == 0 || ev.Session != c.current {
		return
	}
	c.current = 0

	if c.OnSpeechEnd != nil {
		c.OnSpeechEnd()
	}
}

// SelectVoice picks a voice for locale: a female voice of the language first,
// then any voice of the language. ok is false when the platform default has
// to be used.
func SelectVoice(voices []platform.Voice, locale string) (platform.Voice, bool) {
	primary := lang.Base(locale)
	if primary == "" {
		return platform.Voice{}, false
	}

	var (
		fallback platform.Voice
		found    bool
	)
	for _, v := range voices {
		if lang.Base(v.Lang) != primary {
			continue
		}
		if isFemale(v) {
			return v, true
		}
		if !found {
			fallback, found = v, true
		}
	}

	return fallback, found
}

func isFemale(v platform.Voice) bool {
	if v.Female {
		return true
	}
	name := strings.ToLower(v.Name)
	return strings.Contains(name, "female") || strings.Contains(name, "woman")
}
