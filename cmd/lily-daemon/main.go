package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"lily/internal/assistant"
	"lily/internal/config"
	"lily/internal/duplex"
	"lily/internal/ipc"
	"lily/internal/notify"
	"lily/internal/platform"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "lily.yaml", "Config file path")
	logLevel := cli.StringP("log", "l", "", "Log level (debug|info|warn|error)")
	lang := cli.String("lang", "", "Conversation language (en|hi|od|bn|mr)")
	captureBackend := cli.String("capture", "", "Capture backend (whisper|openai|replay|none)")
	synthBackend := cli.String("synthesis", "", "Synthesis backend (espeak|none)")
	model := cli.StringP("model", "m", "", "Whisper model path")
	hub := cli.StringP("url", "u", "", "Url of hub, empty to only log commands")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address for the OpenAI API")
	replay := cli.StringSlice("replay", nil, "Audio files to replay instead of the microphone")
	duck := cli.Bool("duck", false, "Lower other applications while speaking")
	voice := cli.Bool("voice", false, "Start with the microphone open")
	cli.Parse()

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgFile, !cli.CommandLine.Changed("config"))
	if err != nil {
		bootFail("Failed to load config", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		bootFail("Bad environment", err)
	}

	override(&cfg.LogLevel, *logLevel)
	override(&cfg.Language, *lang)
	override(&cfg.Capture.Backend, *captureBackend)
	override(&cfg.Synthesis.Backend, *synthBackend)
	override(&cfg.Capture.Model, *model)
	override(&cfg.Portal.Hub, *hub)
	override(&cfg.OpenAI.Proxy, *proxyAddr)
	if len(*replay) > 0 {
		cfg.Capture.Replay = *replay
		if !cli.CommandLine.Changed("capture") {
			cfg.Capture.Backend = "replay"
		}
	}
	if cli.CommandLine.Changed("duck") {
		cfg.Ducking.Enabled = *duck
	}

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[cfg.LogLevel],
	})))

	log.Info("Booting up")

	if err := cfg.Validate(); err != nil {
		bootFail("Invalid config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := platform.NewQueue(64)

	be, closeBackends, err := openBackends(ctx, cfg, queue.Emit)
	if err != nil {
		bootFail("Failed to open backends", err)
	}
	defer closeBackends()

	lily, err := assistant.New(queue, assistant.Config{
		Language:    cfg.Language,
		Acknowledge: cfg.Acknowledge,
		Pitch:       cfg.Synthesis.Pitch,
		Rate:        cfg.Synthesis.Rate,
	}, be)
	if err != nil {
		bootFail("Failed to build assistant", err)
	}

	lily.OnNotice = func(msg string) {
		go func() {
			if err := notify.Desktop(ctx, "Lily", msg); err != nil {
				log.Debug("No desktop notification", "err", err)
			}
		}()
	}
	lily.OnTransition = cues(ctx, cfg)

	srv, err := ipc.Listen(cfg.Socket)
	if err != nil {
		bootFail("Failed ipc server", err)
	}
	defer srv.Close()
	go srv.Serve(ctx, lily.Control)

	log.Info("Boot up - successful", "socket", cfg.Socket, "capture", cfg.Capture.Backend, "synthesis", cfg.Synthesis.Backend)

	if *voice {
		go func() {
			if err := lily.EnableVoice(ctx); err != nil {
				log.Warn("Failed to enable voice", "err", err)
			}
		}()
	}

	if err := lily.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Assistant stopped", "err", err)
	}
	log.Info("Shutting down")
}

// cues plays the earcon when the microphone opens and ducks other audio while
// Lily speaks.
func cues(ctx context.Context, cfg config.Config) func(from, to duplex.State) {
	var earcon *notify.Earcon
	if cfg.Earcon != "" {
		earcon = notify.NewEarcon(cfg.Earcon)
	}

	duckCh := make(chan bool, 8)
	if cfg.Ducking.Enabled {
		go duckWorker(ctx, cfg.Ducking, duckCh)
	}

	return func(from, to duplex.State) {
		if to == duplex.Listening && earcon != nil {
			go func() {
				if err := earcon.Play(); err != nil {
					log.Warn("Failed to play earcon", "err", err)
				}
			}()
		}

		if !cfg.Ducking.Enabled {
			return
		}
		var duck bool
		switch {
		case to == duplex.Speaking:
			duck = true
		case from == duplex.Speaking:
			duck = false
		default:
			return
		}
		select {
		case duckCh <- duck:
		default:
			log.Warn("Ducking falls behind, dropping request")
		}
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func bootFail(msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}
