// Package tts speaks through espeak-ng.
package tts

import "math"

const (
	baseRate  = 175 // espeak default, words per minute
	basePitch = 50  // espeak default, 0..100
)

// wordsPerMinute scales the espeak default by a relative rate (1 = normal).
func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return min(max(int(math.Round(baseRate*rate)), 80), 450)
}

// pitch scales the espeak default by a relative pitch (1 = normal).
func pitch(p float64) int {
	if p <= 0 {
		p = 1
	}
	return min(max(int(math.Round(basePitch*p)), 0), 100)
}
