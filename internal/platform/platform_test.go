package platform

import (
	"testing"
	"time"
)

func TestQueueDeliversInOrder(t *testing.T) {
	q := NewQueue(4)

	for i := uint64(1); i <= 3; i++ {
		q.Emit(Event{Kind: CaptureResult, Session: i})
	}

	for i := uint64(1); i <= 3; i++ {
		ev := <-q.C()
		if ev.Session != i {
			t.Fatalf("event %d: session = %d", i, ev.Session)
		}
	}
}

func TestQueueCloseUnblocksEmitters(t *testing.T) {
	q := NewQueue(1)
	q.Emit(Event{Kind: SpeechEnd})

	done := make(chan struct{})
	go func() {
		q.Emit(Event{Kind: SpeechEnd})
		close(done)
	}()

	q.Close()
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitter still blocked after Close")
	}
}

func TestTransientKinds(t *testing.T) {
	if !NoSpeech.Transient() {
		t.Error("no-speech must be transient")
	}
	for _, k := range []ErrorKind{Aborted, AudioCapture, Network, NotAllowed, LanguageNotSupported} {
		if k.Transient() {
			t.Errorf("%s must be fatal", k)
		}
	}
}
