package tts

/*
#include <espeak-ng/speak_lib.h>
*/
import "C"

import "unsafe"

// lilySynthCallback runs on the worker thread inside espeak_Synth for every
// chunk of synthesized audio. Returning 1 aborts the utterance.
//
//export lilySynthCallback
func lilySynthCallback(wav *C.short, n C.int, _ *C.espeak_EVENT) C.int {
	e := active.Load()
	if e == nil || e.cut == nil || e.cut() {
		return 1
	}
	if wav == nil || n <= 0 {
		return 0
	}

	samples := unsafe.Slice((*int16)(unsafe.Pointer(wav)), int(n))
	if err := e.write(samples); err != nil {
		e.playErr = err
		return 1
	}
	return 0
}
