package recognize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/openai/openai-go/v3"

	"lily/internal/lang"
	"lily/pkg/audioconv"
)

// Cloud transcribes with the OpenAI audio API.
type Cloud struct {
	client openai.Client
	model  openai.AudioModel
}

func NewCloud(client openai.Client, model string) *Cloud {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &Cloud{client: client, model: openai.AudioModel(model)}
}

func (c *Cloud) Transcribe(ctx context.Context, pcm []float32, locale string) (string, error) {
	f, err := audioconv.TempWAV(pcm, audioconv.SampleRate)
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(f, "utterance.wav", "audio/wav"),
		Model:    c.model,
		Language: openai.String(lang.Base(locale)),
	})
	if err != nil {
		return "", apiError(locale, err)
	}
	return resp.Text, nil
}

func apiError(locale string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("transcribe: %w", err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrDenied, err)
	case http.StatusBadRequest:
		return wrapLanguage(locale, err)
	default:
		return fmt.Errorf("transcribe: %w", err)
	}
}
