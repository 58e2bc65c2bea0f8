package main

import (
	"context"
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"lily/internal/assistant"
	"lily/internal/audio"
	"lily/internal/bridge"
	"lily/internal/config"
	"lily/internal/platform"
	"lily/internal/proxy"
	"lily/internal/recognize"
	"lily/internal/tts"
	"lily/pkg/protocol"
	"lily/pkg/stt"
)

// openBackends builds the platform services selected by cfg. The returned
// function releases them.
func openBackends(ctx context.Context, cfg config.Config, emit platform.Emitter) (assistant.Backends, func(), error) {
	var (
		be      assistant.Backends
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (assistant.Backends, func(), error) {
		closeAll()
		return assistant.Backends{}, func() {}, err
	}

	if cfg.Capture.Backend != "none" {
		src, closeSrc, err := openSource(cfg.Capture)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeSrc)

		tr, closeTr, err := openTranscriber(cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, closeTr)

		be.Recognizer = recognize.NewListener(src, tr, emit)
		log.Debug("Loaded recognizer", "backend", cfg.Capture.Backend)
	}

	if cfg.Synthesis.Backend == "espeak" {
		syn, err := tts.NewEspeak(emit)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, syn.Close)
		be.Synthesizer = syn
		log.Debug("Loaded espeak")
	}

	if cfg.Portal.Hub != "" {
		ptcl, err := protocol.NewProtocol(ctx, protocol.PtclConfig{
			Shard:   cfg.Portal.Shard,
			Url:     cfg.Portal.Hub,
			Timeout: cfg.Portal.Timeout,
			EmitOut: func(m *protocol.Message) {
				log.Debug("Unsolicited hub message", "msg", m.String())
			},
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { ptcl.Close() })
		go ptcl.Run(ctx)

		be.App = bridge.NewBusApp(ptcl, cfg.Portal.Target)
		log.Debug("Connected to hub", "url", cfg.Portal.Hub, "shard", ptcl.Shard())
	}

	return be, closeAll, nil
}

func openSource(cfg config.Capture) (recognize.Source, func(), error) {
	if cfg.Backend == "replay" {
		return recognize.NewReplay(cfg.Replay...), func() {}, nil
	}

	seg := audio.DefaultSegmentConfig()
	seg.Silence, seg.NoSpeech, seg.MaxLength = cfg.Silence, cfg.NoSpeech, cfg.MaxLength

	var det audio.Detector
	vad, err := audio.NewWebRTC(cfg.VADMode, seg.SampleRate)
	if err != nil {
		log.Warn("WebRTC VAD unavailable, using energy gate", "err", err)
		det = audio.Energy{Threshold: 0.015}
	} else {
		det = vad
	}

	rec := audio.NewRecorder(det, seg)
	if err := rec.Init(); err != nil {
		return nil, nil, fmt.Errorf("init audio: %w", err)
	}
	return rec, rec.Close, nil
}

// openTranscriber prefers the OpenAI API for the openai backend and whisper
// otherwise. Replay uses the API when a key is configured.
func openTranscriber(cfg config.Config) (recognize.Transcriber, func(), error) {
	useCloud := cfg.Capture.Backend == "openai" ||
		(cfg.Capture.Backend == "replay" && cfg.OpenAI.APIKey != "")

	if useCloud {
		httpClient, err := proxy.NewClient(cfg.OpenAI.Proxy)
		if err != nil {
			return nil, nil, fmt.Errorf("dial socks proxy: %w", err)
		}
		client := openai.NewClient(
			option.WithAPIKey(cfg.OpenAI.APIKey),
			option.WithHTTPClient(httpClient),
		)
		return recognize.NewCloud(client, cfg.OpenAI.Model), func() {}, nil
	}

	whisper, err := stt.NewTranscriber(cfg.Capture.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("init whisper: %w", err)
	}
	return recognize.NewWhisper(whisper, cfg.Capture.Threads), func() { whisper.Close() }, nil
}

func duckWorker(ctx context.Context, cfg config.Ducking, reqs <-chan bool) {
	d := audio.NewDucker([]string{"lily", "espeak", "espeak-ng"}, cfg.Factor, cfg.Floor, cfg.Fade)

	for {
		select {
		case <-ctx.Done():
			if err := d.Restore(context.Background()); err != nil {
				log.Warn("Failed to restore volumes", "err", err)
			}
			return
		case duck := <-reqs:
			var err error
			if duck {
				err = d.Duck(ctx)
			} else {
				err = d.Restore(ctx)
			}
			if err != nil {
				log.Warn("Failed to adjust volumes", "duck", duck, "err", err)
			}
		}
	}
}
