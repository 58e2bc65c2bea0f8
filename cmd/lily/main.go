package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"lily/internal/assistant"
	"lily/internal/bridge"
	"lily/internal/chat"
	"lily/internal/config"
	"lily/internal/platform"
	"lily/internal/tts"
	"lily/pkg/protocol"
)

const help = `/lang <code>   switch language
/history       show the conversation
/welcome <n>   announce n opportunities
/quit          leave`

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "lily.yaml", "Config file path")
	lang := cli.String("lang", "", "Conversation language (en|hi|od|bn|mr)")
	speak := cli.Bool("speak", false, "Speak announcements with espeak")
	hub := cli.StringP("url", "u", "", "Url of hub, empty to only log commands")
	cli.Parse()

	godotenv.Load(*envFile)

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{Level: log.LevelWarn})))

	cfg, err := config.Load(*cfgFile, !cli.CommandLine.Changed("config"))
	if err != nil {
		fail(err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		fail(err)
	}
	if *lang != "" {
		cfg.Language = *lang
	}
	if *hub != "" {
		cfg.Portal.Hub = *hub
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := platform.NewQueue(16)
	var be assistant.Backends

	if *speak {
		syn, err := tts.NewEspeak(queue.Emit)
		if err != nil {
			fail(err)
		}
		defer syn.Close()
		be.Synthesizer = syn
	}

	if cfg.Portal.Hub != "" {
		ptcl, err := protocol.NewProtocol(ctx, protocol.PtclConfig{
			Shard:   cfg.Portal.Shard,
			Url:     cfg.Portal.Hub,
			Timeout: cfg.Portal.Timeout,
		})
		if err != nil {
			fail(err)
		}
		defer ptcl.Close()
		go ptcl.Run(ctx)
		be.App = bridge.NewBusApp(ptcl, cfg.Portal.Target)
	}

	lily, err := assistant.New(queue, assistant.Config{
		Language:    cfg.Language,
		Acknowledge: cfg.Acknowledge,
		Pitch:       cfg.Synthesis.Pitch,
		Rate:        cfg.Synthesis.Rate,
	}, be)
	if err != nil {
		fail(err)
	}

	done := make(chan error, 1)
	go func() { done <- lily.Run(ctx) }()

	if h, err := lily.History(ctx); err == nil {
		printUtterances(os.Stdout, h)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			<-done
			return
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				fail(err)
			}
			return
		case line, ok := <-lines:
			if !ok {
				stop()
				<-done
				return
			}
			if quit := command(ctx, os.Stdout, lily, strings.TrimSpace(line)); quit {
				stop()
				<-done
				return
			}
		}
	}
}

// command handles one line of input. It reports whether the console should
// exit.
func command(ctx context.Context, w io.Writer, lily *assistant.Assistant, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Fprintln(w, help)

	case "/lang":
		before, err := lily.History(ctx)
		if err != nil {
			fmt.Fprintln(w, "!", err)
			return false
		}
		if err := lily.SetLanguage(ctx, arg); err != nil {
			fmt.Fprintln(w, "!", err)
			return false
		}
		fmt.Fprintln(w, "* language", arg)
		// A greeting is only added to an empty conversation.
		if h, err := lily.History(ctx); err == nil && len(h) > len(before) {
			printUtterances(w, h[len(before):])
		}

	case "/history":
		h, err := lily.History(ctx)
		if err != nil {
			fmt.Fprintln(w, "!", err)
			return false
		}
		printUtterances(w, h)

	case "/welcome":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			fmt.Fprintln(w, "! bad count", arg)
			return false
		}
		before, err := lily.History(ctx)
		if err != nil {
			fmt.Fprintln(w, "!", err)
			return false
		}
		if err := lily.Announce(ctx, n); err != nil {
			fmt.Fprintln(w, "!", err)
			return false
		}
		if h, err := lily.History(ctx); err == nil && len(h) > len(before) {
			printUtterances(w, h[len(before):])
		}

	default:
		act, ok, err := lily.Submit(ctx, line)
		if err != nil {
			fmt.Fprintln(w, "!", err)
			return false
		}
		if !ok {
			return false
		}
		if act.Command() {
			fmt.Fprintln(w, "*", act)
			return false
		}
		fmt.Fprintln(w, "lily:", act.Text)
	}
	return false
}

func printUtterances(w io.Writer, h []chat.Utterance) {
	for _, u := range h {
		fmt.Fprintf(w, "[%s] %s: %s\n", u.Timestamp.Format("15:04:05"), u.Source, u.Text)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "lily:", err)
	os.Exit(1)
}
