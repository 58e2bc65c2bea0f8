package recognize

import (
	"context"
	"errors"

	"lily/internal/lang"
	"lily/pkg/stt"
)

// Whisper transcribes locally with whisper.cpp.
type Whisper struct {
	tr      *stt.Transcriber
	threads int
}

func NewWhisper(tr *stt.Transcriber, threads int) *Whisper {
	return &Whisper{tr: tr, threads: threads}
}

func (w *Whisper) Transcribe(ctx context.Context, pcm []float32, locale string) (string, error) {
	res, err := w.tr.TranscribePCM(ctx, pcm, stt.Options{
		Language: lang.Base(locale),
		Threads:  w.threads,
	})
	if errors.Is(err, stt.ErrLanguage) {
		return "", wrapLanguage(locale, err)
	}
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
