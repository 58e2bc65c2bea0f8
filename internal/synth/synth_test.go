package synth

import (
	"errors"
	"testing"

	"lily/internal/platform"
)

type fakeSynth struct {
	voices  []platform.Voice
	spoken  []platform.Speech
	cancels int
	err     error
}

func (f *fakeSynth) Voices() []platform.Voice { return f.voices }

func (f *fakeSynth) Speak(s platform.Speech) error {
	if f.err != nil {
		return f.err
	}
	f.spoken = append(f.spoken, s)
	return nil
}

func (f *fakeSynth) Cancel() error {
	f.cancels++
	return nil
}

func (f *fakeSynth) last() platform.Speech { return f.spoken[len(f.spoken)-1] }

func TestSelectVoice(t *testing.T) {
	voices := []platform.Voice{
		{Name: "hindi-male", Lang: "hi"},
		{Name: "Google US English", Lang: "en-US"},
		{Name: "Microsoft Zira Female", Lang: "en_US"},
		{Name: "mr", Lang: "mr"},
		{Name: "Lekha", Lang: "hi-IN", Female: true},
	}

	tests := []struct {
		locale string
		want   string
		ok     bool
	}{
		{"en-US", "Microsoft Zira Female", true},
		{"hi-IN", "Lekha", true},
		{"mr-IN", "mr", true},
		{"bn-IN", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			v, ok := SelectVoice(voices, tt.locale)
			if ok != tt.ok || v.Name != tt.want {
				t.Errorf("SelectVoice(%q) = %q, %v; want %q, %v", tt.locale, v.Name, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSpeakEndsOnce(t *testing.T) {
	fs := &fakeSynth{}
	c := New(fs)

	ends := 0
	c.OnSpeechEnd = func() { ends++ }

	if err := c.Speak("hello", "en-US"); err != nil {
		t.Fatal(err)
	}
	if fs.last().Voice != nil {
		t.Error("expected default voice with an empty catalogue")
	}
	if fs.last().Pitch != DefaultPitch {
		t.Errorf("pitch = %v", fs.last().Pitch)
	}

	id := fs.last().ID
	c.Handle(platform.Event{Kind: platform.SpeechEnd, Session: id})
	c.Handle(platform.Event{Kind: platform.SpeechEnd, Session: id})

	if ends != 1 {
		t.Fatalf("OnSpeechEnd fired %d times, want 1", ends)
	}
	if c.Speaking() {
		t.Error("still speaking")
	}
}

func TestSpeakSupersedesPrevious(t *testing.T) {
	fs := &fakeSynth{}
	c := New(fs)

	ends := 0
	c.OnSpeechEnd = func() { ends++ }

	if err := c.Speak("first", "en-US"); err != nil {
		t.Fatal(err)
	}
	first := fs.last().ID
	if err := c.Speak("second", "en-US"); err != nil {
		t.Fatal(err)
	}
	second := fs.last().ID

	if fs.cancels != 1 {
		t.Fatalf("cancels = %d, want 1", fs.cancels)
	}

	c.Handle(platform.Event{Kind: platform.SpeechEnd, Session: first})
	if ends != 0 {
		t.Fatal("interrupted utterance reported end")
	}

	c.Handle(platform.Event{Kind: platform.SpeechEnd, Session: second})
	if ends != 1 {
		t.Fatalf("ends = %d, want 1", ends)
	}
}

func TestCancelIdempotent(t *testing.T) {
	fs := &fakeSynth{}
	c := New(fs)

	ends := 0
	c.OnSpeechEnd = func() { ends++ }

	c.Cancel()
	if fs.cancels != 0 {
		t.Fatal("cancel with nothing in flight reached the platform")
	}

	if err := c.Speak("hello", "en-US"); err != nil {
		t.Fatal(err)
	}
	id := fs.last().ID
	c.Cancel()
	c.Cancel()

	if fs.cancels != 1 {
		t.Fatalf("cancels = %d, want 1", fs.cancels)
	}

	c.Handle(platform.Event{Kind: platform.SpeechEnd, Session: id})
	if ends != 0 {
		t.Fatal("cancelled utterance reported end")
	}
}

func TestSpeakErrors(t *testing.T) {
	if err := New(nil).Speak("x", "en-US"); !errors.Is(err, platform.ErrUnsupported) {
		t.Fatalf("Speak without synthesizer = %v", err)
	}

	boom := errors.New("device busy")
	c := New(&fakeSynth{err: boom})
	if err := c.Speak("x", "en-US"); !errors.Is(err, boom) {
		t.Fatalf("Speak = %v, want wrapped %v", err, boom)
	}
	if c.Speaking() {
		t.Error("failed speak left an utterance in flight")
	}
}
