package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <string.h>
#include <espeak-ng/speak_lib.h>

extern int lilySynthCallback(short *wav, int n, espeak_EVENT *events);

// Synthesis runs on the calling thread and hands PCM to the callback, which
// aborts the utterance by returning 1.
static int
lily_init(void)
{
	int rate = espeak_Initialize(AUDIO_OUTPUT_SYNCHRONOUS, 100, NULL, 0);
	if (rate > 0)
	{ espeak_SetSynthCallback(lilySynthCallback); }
	return rate;
}

static const espeak_VOICE *
lily_voice(int i)
{
	const espeak_VOICE **v = espeak_ListVoices(NULL);
	if (!v)
	{ return NULL; }
	return v[i];
}

// languages is a list of <priority byte><name>\0 entries; take the first.
static const char *
lily_voice_lang(const espeak_VOICE *v)
{
	if (!v->languages || !v->languages[0])
	{ return ""; }
	return v->languages + 1;
}

static int
lily_say(const char *text, const char *voice, const char *lang, int rate, int pitch)
{
	espeak_ERROR err;

	if (voice && *voice)
	{
		err = espeak_SetVoiceByName(voice);
	}
	else
	{
		espeak_VOICE spec;
		memset(&spec, 0, sizeof spec);
		spec.languages = lang;
		err = espeak_SetVoiceByProperties(&spec);
	}
	if (err != EE_OK)
	{ return err; }

	espeak_SetParameter(espeakRATE, rate, 0);
	espeak_SetParameter(espeakPITCH, pitch, 0);

	return espeak_Synth(text, strlen(text) + 1, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
}
*/
import "C"

import (
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/gordonklaus/portaudio"

	"lily/internal/lang"
	"lily/internal/platform"
)

// active receives the PCM of the synthesis in progress. espeak-ng holds one
// global synthesizer, so there is at most one Espeak.
var active atomic.Pointer[Espeak]

// Espeak is a platform.Synthesizer backed by espeak-ng and played through
// portaudio. Utterances play one at a time on a worker goroutine.
type Espeak struct {
	line   *line
	voices []platform.Voice

	stream *portaudio.Stream
	out    []int16

	// Owned by the worker while an utterance is synthesized.
	fill    int
	cut     func() bool
	playErr error
}

func NewEspeak(emit platform.Emitter) (*Espeak, error) {
	rate := int(C.lily_init())
	if rate <= 0 {
		return nil, fmt.Errorf("espeak_Initialize failed: %d", rate)
	}

	if err := portaudio.Initialize(); err != nil {
		C.espeak_Terminate()
		return nil, fmt.Errorf("init portaudio: %w", err)
	}

	e := &Espeak{out: make([]int16, rate/20)}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(e.out), e.out)
	if err != nil {
		portaudio.Terminate()
		C.espeak_Terminate()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	e.stream = stream

	if !active.CompareAndSwap(nil, e) {
		stream.Close()
		portaudio.Terminate()
		return nil, errors.New("espeak already in use")
	}

	// espeak is not reentrant; list voices before the worker starts.
	e.loadVoices()
	e.line = newLine(emit, e.say)

	log.Debug("Loaded espeak", "rate", rate, "voices", len(e.voices))
	return e, nil
}

func (e *Espeak) Voices() []platform.Voice { return e.voices }

// Speak makes s the next utterance. A speech still waiting is replaced and
// ends without playing. A SpeechEnd event follows every accepted speech.
func (e *Espeak) Speak(s platform.Speech) error {
	return e.line.push(s)
}

// Cancel cuts the utterance being played and drops the waiting one.
func (e *Espeak) Cancel() error {
	e.line.cancel()
	return nil
}

// Close cuts playback, stops the worker and releases espeak and the device.
func (e *Espeak) Close() {
	e.line.close()
	e.stream.Close()
	portaudio.Terminate()
	active.CompareAndSwap(e, nil)
	C.espeak_Terminate()
}

func (e *Espeak) loadVoices() {
	for i := 0; ; i++ {
		v := C.lily_voice(C.int(i))
		if v == nil {
			break
		}
		e.voices = append(e.voices, platform.Voice{
			Name:   C.GoString(v.name),
			Lang:   C.GoString(C.lily_voice_lang(v)),
			Female: v.gender == 2,
		})
	}
}

func (e *Espeak) say(s platform.Speech, cut func() bool) error {
	if strings.TrimSpace(s.Text) == "" {
		return nil
	}

	ctext := C.CString(s.Text)
	defer C.free(unsafe.Pointer(ctext))

	var voice string
	if s.Voice != nil {
		voice = s.Voice.Name
	}
	cvoice := C.CString(voice)
	defer C.free(unsafe.Pointer(cvoice))

	clang := C.CString(lang.Base(s.Locale))
	defer C.free(unsafe.Pointer(clang))

	e.fill, e.cut, e.playErr = 0, cut, nil
	if err := e.stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}

	rc := C.lily_say(ctext, cvoice, clang, C.int(wordsPerMinute(s.Rate)), C.int(pitch(s.Pitch)))

	switch {
	case cut():
		return e.stream.Abort()
	case e.playErr != nil:
		e.stream.Abort()
		return e.playErr
	case rc != C.EE_OK:
		e.stream.Abort()
		return fmt.Errorf("espeak_Synth failed: %d", int(rc))
	}

	if err := e.flush(); err != nil {
		e.stream.Abort()
		return err
	}
	// Stop returns once the buffered audio has played.
	return e.stream.Stop()
}

// write plays samples in whole device buffers.
func (e *Espeak) write(samples []int16) error {
	for len(samples) > 0 {
		n := copy(e.out[e.fill:], samples)
		e.fill += n
		samples = samples[n:]

		if e.fill == len(e.out) {
			e.fill = 0
			if err := writeStream(e.stream); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Espeak) flush() error {
	if e.fill == 0 {
		return nil
	}
	clear(e.out[e.fill:])
	e.fill = 0
	return writeStream(e.stream)
}

func writeStream(s *portaudio.Stream) error {
	if err := s.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		return fmt.Errorf("write output stream: %w", err)
	}
	return nil
}
