// Package config holds the daemon settings: defaults, an optional YAML
// file, then environment overrides. Flags are applied last by the command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Capture struct {
	// Backend is whisper, openai, replay or none.
	Backend string   `yaml:"backend"`
	Model   string   `yaml:"model"`
	Threads int      `yaml:"threads"`
	Replay  []string `yaml:"replay"`

	VADMode   int           `yaml:"vad_mode"`
	Silence   time.Duration `yaml:"silence"`
	NoSpeech  time.Duration `yaml:"no_speech"`
	MaxLength time.Duration `yaml:"max_length"`
}

type Synthesis struct {
	// Backend is espeak or none.
	Backend string  `yaml:"backend"`
	Pitch   float64 `yaml:"pitch"`
	Rate    float64 `yaml:"rate"`
}

type OpenAI struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
	Proxy  string `yaml:"proxy"`
}

type Portal struct {
	// Hub is the websocket URL of the message hub. Empty logs commands only.
	Hub     string        `yaml:"hub"`
	Shard   string        `yaml:"shard"`
	Target  string        `yaml:"target"`
	Timeout time.Duration `yaml:"timeout"`
}

type Ducking struct {
	Enabled bool          `yaml:"enabled"`
	Factor  float64       `yaml:"factor"`
	Floor   int           `yaml:"floor"`
	Fade    time.Duration `yaml:"fade"`
}

type Config struct {
	Language    string `yaml:"language"`
	LogLevel    string `yaml:"log_level"`
	Socket      string `yaml:"socket"`
	Acknowledge bool   `yaml:"acknowledge"`
	Earcon      string `yaml:"earcon"`

	Capture   Capture   `yaml:"capture"`
	Synthesis Synthesis `yaml:"synthesis"`
	OpenAI    OpenAI    `yaml:"openai"`
	Portal    Portal    `yaml:"portal"`
	Ducking   Ducking   `yaml:"ducking"`
}

func Default() Config {
	return Config{
		Language:    "en",
		LogLevel:    "info",
		Socket:      "/tmp/lily.sock",
		Acknowledge: true,
		Capture: Capture{
			Backend:   "whisper",
			Model:     "models/ggml-medium.bin",
			VADMode:   2,
			Silence:   600 * time.Millisecond,
			NoSpeech:  8 * time.Second,
			MaxLength: 15 * time.Second,
		},
		Synthesis: Synthesis{
			Backend: "espeak",
			Pitch:   1.2,
			Rate:    1.0,
		},
		OpenAI: OpenAI{
			Model: "whisper-1",
		},
		Portal: Portal{
			Shard:   "LILY",
			Target:  "PORTAL",
			Timeout: 5 * time.Second,
		},
		Ducking: Ducking{
			Factor: 0.3,
			Floor:  10,
			Fade:   200 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults. An empty path, or a missing file when
// optional is set, yields the defaults.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && optional {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"OPENAI_API_KEY": &c.OpenAI.APIKey,
		"LILY_LANG":      &c.Language,
		"LILY_LOG":       &c.LogLevel,
		"LILY_SOCKET":    &c.Socket,
		"LILY_CAPTURE":   &c.Capture.Backend,
		"LILY_MODEL":     &c.Capture.Model,
		"LILY_SYNTHESIS": &c.Synthesis.Backend,
		"LILY_HUB":       &c.Portal.Hub,
		"LILY_PROXY":     &c.OpenAI.Proxy,
		"LILY_EARCON":    &c.Earcon,
	}
	for key, dst := range str {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("LILY_ACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LILY_ACK: %w", err)
		}
		c.Acknowledge = b
	}
	if v := getenv("LILY_DUCK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LILY_DUCK: %w", err)
		}
		c.Ducking.Enabled = b
	}
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Capture.Backend {
	case "whisper", "openai", "replay", "none":
	default:
		return fmt.Errorf("unknown capture backend %q", c.Capture.Backend)
	}
	switch c.Synthesis.Backend {
	case "espeak", "none":
	default:
		return fmt.Errorf("unknown synthesis backend %q", c.Synthesis.Backend)
	}

	if c.Capture.Backend == "openai" && c.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY not set")
	}
	if c.Capture.Backend == "replay" && len(c.Capture.Replay) == 0 {
		return errors.New("replay backend needs at least one file")
	}
	if c.Capture.VADMode < 0 || c.Capture.VADMode > 3 {
		return fmt.Errorf("vad_mode %d out of range 0..3", c.Capture.VADMode)
	}
	if c.Ducking.Factor < 0 || c.Ducking.Factor > 1 {
		return fmt.Errorf("ducking factor %v out of range 0..1", c.Ducking.Factor)
	}
	return nil
}
