// Package bridge turns routed commands into calls on the portal.
package bridge

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"lily/internal/intent"
)

// LogoutDelay leaves room for the spoken acknowledgement before the session
// is torn down.
const LogoutDelay = time.Second

// ErrDispatch wraps every failure of the application command surface.
var ErrDispatch = errors.New("action dispatch failed")

// App is the command surface of the surrounding application.
type App interface {
	SetFilter(ctx context.Context, f intent.Filter) error
	OpenSettings(ctx context.Context) error
	Logout(ctx context.Context) error
}

// Bridge forwards actions to an App. It keeps no conversation state.
type Bridge struct {
	app   App
	delay time.Duration
	after func(time.Duration, func())

	jobs  chan job
	stop  chan struct{}
	start sync.Once
	halt  sync.Once
}

type job struct {
	ctx    context.Context
	action intent.Action
	done   func(error)
}

func New(app App) *Bridge {
	return &Bridge{
		app:   app,
		delay: LogoutDelay,
		after: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		jobs:  make(chan job, 8),
		stop:  make(chan struct{}),
	}
}

// WithScheduler replaces the timer used for the delayed logout.
func (b *Bridge) WithScheduler(delay time.Duration, after func(time.Duration, func())) *Bridge {
	b.delay = delay
	b.after = after
	return b
}

// Dispatch performs the side effect of a. Replies are a no-op.
func (b *Bridge) Dispatch(ctx context.Context, a intent.Action) error {
	var err error

	switch a.Kind {
	case intent.SetFilter:
		if !a.Filter.Valid() {
			return fmt.Errorf("%w: unknown filter %q", ErrDispatch, a.Filter)
		}
		err = b.app.SetFilter(ctx, a.Filter)

	case intent.OpenSettings:
		err = b.app.OpenSettings(ctx)

	case intent.Logout:
		b.after(b.delay, func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := b.app.Logout(ctx); err != nil {
				log.Error("Logout failed", "err", err)
			}
		})
		return nil

	default:
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDispatch, a, err)
	}
	return nil
}

// Submit queues a for the bridge worker and returns at once. Commands run in
// submission order; done receives each result on the worker goroutine.
func (b *Bridge) Submit(ctx context.Context, a intent.Action, done func(error)) error {
	b.start.Do(func() { go b.work() })

	select {
	case <-b.stop:
		return fmt.Errorf("%w: %s: bridge closed", ErrDispatch, a)
	default:
	}

	select {
	case b.jobs <- job{ctx: ctx, action: a, done: done}:
		return nil
	default:
		return fmt.Errorf("%w: %s: command queue full", ErrDispatch, a)
	}
}

// Close stops the worker. Queued commands are dropped; the one in flight
// finishes on its own context.
func (b *Bridge) Close() {
	b.halt.Do(func() { close(b.stop) })
}

func (b *Bridge) work() {
	for {
		select {
		case <-b.stop:
			return
		case j := <-b.jobs:
			err := b.Dispatch(j.ctx, j.action)
			if j.done != nil {
				j.done(err)
			}
		}
	}
}

// LogApp only logs commands. Used when no portal is attached.
type LogApp struct{}

func (LogApp) SetFilter(_ context.Context, f intent.Filter) error {
	log.Info("Filter", "type", f)
	return nil
}

func (LogApp) OpenSettings(context.Context) error {
	log.Info("Open settings")
	return nil
}

func (LogApp) Logout(context.Context) error {
	log.Info("Logout")
	return nil
}
