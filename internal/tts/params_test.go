package tts

import "testing"

func TestParams(t *testing.T) {
	tests := []struct {
		rate, pitch float64
		wpm, p      int
	}{
		{1, 1, 175, 50},
		{1, 1.2, 175, 60},
		{0, 0, 175, 50},
		{4, 3, 450, 100},
		{0.2, 0.5, 80, 25},
	}
	for _, tt := range tests {
		if got := wordsPerMinute(tt.rate); got != tt.wpm {
			t.Errorf("wordsPerMinute(%v) = %d, want %d", tt.rate, got, tt.wpm)
		}
		if got := pitch(tt.pitch); got != tt.p {
			t.Errorf("pitch(%v) = %d, want %d", tt.pitch, got, tt.p)
		}
	}
}
