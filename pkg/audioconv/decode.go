// Package audioconv turns audio files into 16 kHz mono float PCM, the input
// format of the transcribers, and back into WAV for upload.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// SampleRate is the output rate of every decoder.
const SampleRate = 16000

var ErrFormat = errors.New("unsupported audio format")

type decoder func(r io.ReadSeeker) ([]float32, error)

var byExt = map[string][]decoder{
	".wav":  {decodeWAV},
	".mp3":  {decodeMP3},
	".ogg":  {decodeVorbis, decodeOpus},
	".oga":  {decodeVorbis, decodeOpus},
	".opus": {decodeOpus},
}

var byMagic = map[string][]decoder{
	"RIFF":     {decodeWAV},
	"OggS":     {decodeVorbis, decodeOpus},
	"ID3\x03": {decodeMP3},
	"ID3\x04": {decodeMP3},
}

// DecodeFile reads the file at path. The format is chosen by extension and
// falls back to sniffing the header.
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f, filepath.Ext(path))
}

// Decode reads r, trying the decoders registered for ext first.
func Decode(r io.ReadSeeker, ext string) ([]float32, error) {
	decs, ok := byExt[strings.ToLower(ext)]
	if !ok {
		magic, err := bufio.NewReader(r).Peek(4)
		if err != nil {
			return nil, fmt.Errorf("sniff header: %w", err)
		}
		if decs, ok = byMagic[string(magic)]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrFormat, ext)
		}
	}

	var errs []error
	for _, dec := range decs {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		pcm, err := dec(r)
		if err == nil {
			return pcm, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrFormat, errors.Join(errs...))
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("wav: invalid file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("wav: no samples")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	ch, rate := int(dec.NumChans), int(dec.SampleRate)
	if buf.Format != nil {
		ch, rate = buf.Format.NumChannels, buf.Format.SampleRate
	}

	return toMono16k(intsToFloat(buf.Data, depth), ch, rate), nil
}

func decodeMP3(r io.ReadSeeker) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	// go-mp3 always produces interleaved stereo.
	return toMono16k(int16sToFloat(samples), 2, dec.SampleRate()), nil
}

func decodeVorbis(r io.ReadSeeker) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("vorbis: invalid stream")
	}
	return toMono16k(pcm, format.Channels, format.SampleRate), nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("opus: %w", err)
	}
	defer dec.Destroy()

	ch := max(dec.ChannelCount(), 1)

	// Opus always decodes at 48 kHz.
	var pcm []float32
	buf := make([]int16, 24000*ch)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16sToFloat(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus: %w", err)
		}
	}
	return toMono16k(pcm, ch, 48000), nil
}
