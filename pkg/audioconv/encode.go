package audioconv

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes pcm as 16-bit mono PCM WAV at the given rate.
func EncodeWAV(w io.WriteSeeker, pcm []float32, rate int) error {
	enc := wav.NewEncoder(w, rate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           floatToInts(pcm),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}

// TempWAV encodes pcm into a temporary file, rewound for reading. The caller
// closes and removes it.
func TempWAV(pcm []float32, rate int) (*os.File, error) {
	f, err := os.CreateTemp("", "lily-*.wav")
	if err != nil {
		return nil, err
	}

	if err := EncodeWAV(f, pcm, rate); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return f, nil
}
