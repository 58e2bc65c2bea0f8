package duplex

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"lily/internal/platform"
)

type fakeCapture struct {
	active   bool
	starts   int
	stops    int
	startErr error
}

func (f *fakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	if !f.active {
		f.starts++
	}
	f.active = true
	return nil
}

func (f *fakeCapture) Stop() {
	if f.active {
		f.stops++
	}
	f.active = false
}

type fakeSpeaker struct {
	speaking bool
	texts    []string
	err      error
}

func (f *fakeSpeaker) Speak(text, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	f.speaking = true
	return nil
}

func (f *fakeSpeaker) Cancel() { f.speaking = false }

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fireAll runs every timer callback, including stopped ones, the way a
// timer that already fired before Stop would.
func (c *fakeClock) fireAll() {
	timers := c.timers
	c.timers = nil
	for _, t := range timers {
		t.f()
	}
}

type harness struct {
	cap   *fakeCapture
	spk   *fakeSpeaker
	clock *fakeClock
	d     *Coordinator
}

func newHarness() *harness {
	h := &harness{
		cap:   &fakeCapture{},
		spk:   &fakeSpeaker{},
		clock: &fakeClock{},
	}
	h.d = New(h.cap, h.spk, h.clock, func(ev platform.Event) { h.d.Handle(ev) })
	return h
}

// speechEnded simulates the synthesizer finishing.
func (h *harness) speechEnded() {
	h.spk.speaking = false
	h.d.EndSpeaking()
}

func (h *harness) check(t *testing.T) {
	t.Helper()
	if h.cap.active && h.spk.speaking {
		t.Fatalf("listening and speaking at once (state %s)", h.d.State())
	}
	if h.cap.active != (h.d.State() == Listening) {
		t.Fatalf("capture active=%v in state %s", h.cap.active, h.d.State())
	}
}

func TestEnableDisable(t *testing.T) {
	h := newHarness()

	h.d.EnableListening()
	h.d.EnableListening()
	if h.d.State() != Listening || h.cap.starts != 1 {
		t.Fatalf("state=%s starts=%d", h.d.State(), h.cap.starts)
	}

	h.d.DisableListening()
	h.d.DisableListening()
	if h.d.State() != Idle || h.cap.stops != 1 {
		t.Fatalf("state=%s stops=%d", h.d.State(), h.cap.stops)
	}
}

func TestBeginSpeakingFromListening(t *testing.T) {
	h := newHarness()
	h.d.EnableListening()

	if err := h.d.Speak("hello", "en-US"); err != nil {
		t.Fatal(err)
	}

	if h.cap.stops != 1 {
		t.Fatalf("capture stopped %d times, want 1", h.cap.stops)
	}
	if h.d.State() != Speaking {
		t.Fatalf("state = %s, want speaking", h.d.State())
	}
	h.check(t)
}

func TestResumeAfterSpeech(t *testing.T) {
	h := newHarness()
	h.d.EnableListening()
	_ = h.d.Speak("hello", "en-US")
	h.speechEnded()

	if h.d.State() != ResumeDelay {
		t.Fatalf("state = %s, want resume-delay", h.d.State())
	}
	if len(h.clock.timers) != 1 || h.clock.timers[0].d != 500*time.Millisecond {
		t.Fatalf("timers = %+v", h.clock.timers)
	}

	h.clock.fireAll()

	if h.d.State() != Listening {
		t.Fatalf("state = %s, want listening", h.d.State())
	}
	if h.cap.starts != 2 {
		t.Fatalf("capture starts = %d, want 2 (initial + resume)", h.cap.starts)
	}
	h.check(t)
}

func TestDisableDuringResumeDelay(t *testing.T) {
	h := newHarness()
	h.d.EnableListening()
	_ = h.d.Speak("hello", "en-US")
	h.speechEnded()

	h.d.DisableListening()
	if h.d.State() != Idle {
		t.Fatalf("state = %s, want idle", h.d.State())
	}
	if !h.clock.timers[0].stopped {
		t.Error("resume timer not stopped")
	}

	// A timer that raced past Stop must not reopen the microphone.
	h.clock.fireAll()

	if h.d.State() != Idle || h.cap.starts != 1 {
		t.Fatalf("state=%s starts=%d after stale resume", h.d.State(), h.cap.starts)
	}
}

func TestSpeechEndWithoutListeningSettlesIdle(t *testing.T) {
	h := newHarness()
	_ = h.d.Speak("welcome", "en-US")
	h.speechEnded()
	h.clock.fireAll()

	if h.d.State() != Idle || h.cap.starts != 0 {
		t.Fatalf("state=%s starts=%d", h.d.State(), h.cap.starts)
	}
}

func TestBeginSpeakingCancelsResume(t *testing.T) {
	h := newHarness()
	h.d.EnableListening()
	_ = h.d.Speak("one", "en-US")
	h.speechEnded()

	_ = h.d.Speak("two", "en-US")
	if h.d.State() != Speaking {
		t.Fatalf("state = %s", h.d.State())
	}

	h.clock.fireAll()
	if h.d.State() != Speaking || h.cap.active {
		t.Fatalf("stale resume fired into %s", h.d.State())
	}
	h.check(t)
}

func TestEnableWhileSpeakingResumesLater(t *testing.T) {
	h := newHarness()
	_ = h.d.Speak("hello", "en-US")

	h.d.EnableListening()
	if h.d.State() != Speaking || h.cap.starts != 0 {
		t.Fatalf("enable during speech opened the microphone")
	}

	h.speechEnded()
	h.clock.fireAll()
	if h.d.State() != Listening {
		t.Fatalf("state = %s, want listening", h.d.State())
	}
}

func TestSpeakFailureReturnsToListening(t *testing.T) {
	h := newHarness()
	h.spk.err = errors.New("no audio device")
	h.d.EnableListening()

	if err := h.d.Speak("hello", "en-US"); err == nil {
		t.Fatal("expected error")
	}
	if h.d.State() != Listening {
		t.Fatalf("state = %s, want listening", h.d.State())
	}
	h.check(t)
}

func TestCaptureUnavailableStaysIdle(t *testing.T) {
	h := newHarness()
	h.cap.startErr = platform.ErrUnsupported

	h.d.EnableListening()
	if h.d.State() != Idle || h.d.WantsListening() {
		t.Fatalf("state=%s want=%v", h.d.State(), h.d.WantsListening())
	}
}

func TestCaptureFailed(t *testing.T) {
	h := newHarness()
	h.d.EnableListening()

	h.cap.active = false
	h.d.CaptureFailed()

	if h.d.State() != Idle {
		t.Fatalf("state = %s", h.d.State())
	}
	h.check(t)
}

func TestClose(t *testing.T) {
	h := newHarness()
	h.d.EnableListening()
	_ = h.d.Speak("bye", "en-US")
	h.speechEnded()

	h.d.Close()
	h.clock.fireAll()

	if h.d.State() != Idle || h.cap.active || h.spk.speaking {
		t.Fatalf("state=%s capture=%v speaking=%v", h.d.State(), h.cap.active, h.spk.speaking)
	}
}

func TestNeverListeningWhileSpeaking(t *testing.T) {
	h := newHarness()
	rng := rand.New(rand.NewSource(42))

	ops := []func(){
		h.d.EnableListening,
		h.d.DisableListening,
		func() { _ = h.d.Speak("x", "en-US") },
		func() {
			if h.spk.speaking {
				h.speechEnded()
			}
		},
		h.clock.fireAll,
		func() {
			if h.cap.active {
				h.cap.active = false
				h.d.CaptureFailed()
			}
		},
	}

	for i := 0; i < 5000; i++ {
		ops[rng.Intn(len(ops))]()
		h.check(t)
		if h.d.State() == Speaking && !h.spk.speaking {
			t.Fatalf("step %d: speaking state without playback", i)
		}
	}
}
