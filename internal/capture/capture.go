// Package capture owns the speech-to-text session.
package capture

import (
	"fmt"
	log "log/slog"

	"lily/internal/platform"
)

// Controller wraps a platform recognizer. It is not safe for concurrent use;
// every method runs on the assistant loop.
type Controller struct {
	rec    platform.Recognizer
	locale string

	active  bool
	session uint64

	// OnTranscript receives each finalized utterance.
	OnTranscript func(text string)
	// OnError receives fatal failures. Capture is already stopped when it runs.
	OnError func(kind platform.ErrorKind, err error)
}

// New returns a controller for rec. A nil rec yields an unavailable
// controller whose Start reports platform.ErrUnsupported.
func New(rec platform.Recognizer, locale string) *Controller {
	return &Controller{rec: rec, locale: locale}
}

func (c *Controller) Available() bool { return c.rec != nil }

func (c *Controller) Active() bool { return c.active }

func (c *Controller) Locale() string { return c.locale }

// Start begins continuous recognition. Starting twice is a no-op.
func (c *Controller) Start() error {
	if c.rec == nil {
		return platform.ErrUnsupported
	}
	if c.active {
		return nil
	}

	if err := c.begin(); err != nil {
		return err
	}
	c.active = true
	return nil
}

// Stop ends recognition. Stopping twice is a no-op.
func (c *Controller) Stop() {
	if !c.active {
		return
	}
	c.active = false
	c.halt()
}

// SetLocale switches the recognition locale, restarting an active session.
func (c *Controller) SetLocale(locale string) error {
	if locale == c.locale {
		return nil
	}
	c.locale = locale

	if !c.active {
		return nil
	}

	c.halt()
	if err := c.begin(); err != nil {
		c.active = false
		return err
	}
	return nil
}

// Handle processes a CaptureResult or CaptureError event. Events of an older
// session or received while stopped are dropped.
func (c *Controller) Handle(ev platform.Event) {
	if !c.active || ev.Session != c.session {
		log.Debug("Dropping stale capture event", "kind", ev.Kind, "session", ev.Session, "current", c.session)
		return
	}

	switch ev.Kind {
	case platform.CaptureResult:
		if c.OnTranscript != nil {
			c.OnTranscript(ev.Transcript)
		}

	case platform.CaptureError:
		if ev.ErrKind.Transient() {
			log.Debug("No speech detected, restarting capture")
			err := c.begin()
			if err == nil {
				return
			}
			ev.ErrKind, ev.Err = platform.Aborted, err
		}

		c.active = false
		c.halt()
		if c.OnError != nil {
			c.OnError(ev.ErrKind, ev.Err)
		}
	}
}

func (c *Controller) begin() error {
	c.session++
	err := c.rec.Start(platform.CaptureOptions{
		Locale:     c.locale,
		Continuous: true,
		Session:    c.session,
	})
	if err != nil {
		return fmt.Errorf("start recognizer: %w", err)
	}
	return nil
}

func (c *Controller) halt() {
	// Bumping the session invalidates results still in flight.
	c.session++
	if err := c.rec.Stop(); err != nil {
		log.Warn("Failed to stop recognizer", "err", err)
	}
}
