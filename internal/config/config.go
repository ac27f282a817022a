package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"voxdispatch/internal/domain"
)

// Config stores runtime configuration of the dispatcher.
type Config struct {
	Commands Commands
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Rules    RulesConfig
	Timing   TimingConfig
	Dispatch DispatchConfig
	Actions  ActionsConfig
	Log      LogConfig
	Notify   bool
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	ChunkSize       int
	DumpDir         string
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type TimingConfig struct {
	Silence       time.Duration
	Prefix        time.Duration
	DictationIdle time.Duration
	CaptureWindow time.Duration
	Cooldown      time.Duration
	Poll          time.Duration
}

type DispatchConfig struct {
	FuzzyThreshold float64
	ToggleKey      string
	Progressive    bool
	TrailingSpace  bool
}

type ActionsConfig struct {
	Shell       string
	TypeCommand string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and the command file.
func Load(fs afero.Fs) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("%w: could not determine home directory", domain.ErrConfig)
	}
	configDir := filepath.Join(home, ".config", "voxdispatch")

	commandsPath := strings.TrimSpace(os.Getenv("VOXDISPATCH_COMMANDS_FILE"))
	if commandsPath == "" {
		commandsPath = firstExisting(fs,
			filepath.Join(configDir, "commands.toml"),
			filepath.Join("config", "commands.toml"),
		)
	}
	commands, err := LoadCommands(fs, commandsPath)
	if err != nil {
		return Config{}, err
	}
	if phrase := strings.TrimSpace(os.Getenv("VOXDISPATCH_TOGGLE_PHRASE")); phrase != "" {
		commands.TogglePhrase = phrase
	}

	rulesPath := strings.TrimSpace(os.Getenv("VOXDISPATCH_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = firstExisting(fs, filepath.Join(configDir, "substitutions.rules"))
	}

	cfg := Config{
		Commands: commands,
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", false),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("VOXDISPATCH_RECORDER_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("VOXDISPATCH_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("VOXDISPATCH_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("VOXDISPATCH_SAMPLE_RATE", 16000),
			ChunkSize:       envOrDefaultInt("VOXDISPATCH_AUDIO_CHUNK_SIZE", 4096),
			DumpDir:         strings.TrimSpace(os.Getenv("VOXDISPATCH_AUDIO_DUMP_DIR")),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("VOXDISPATCH_RULE_ITERATION_LIMIT", 30),
		},
		Timing: TimingConfig{
			Silence:       envOrDefaultMillis("VOXDISPATCH_SILENCE_MS", 800),
			Prefix:        envOrDefaultMillis("VOXDISPATCH_PREFIX_MS", 500),
			DictationIdle: envOrDefaultMillis("VOXDISPATCH_DICTATION_IDLE_MS", 8000),
			CaptureWindow: envOrDefaultMillis("VOXDISPATCH_CAPTURE_WINDOW_MS", 5000),
			Cooldown:      envOrDefaultMillis("VOXDISPATCH_COOLDOWN_MS", 1500),
			Poll:          envOrDefaultMillis("VOXDISPATCH_POLL_MS", 20),
		},
		Dispatch: DispatchConfig{
			FuzzyThreshold: envOrDefaultFloat("VOXDISPATCH_FUZZY_THRESHOLD", 0.91),
			ToggleKey:      envOrDefault("VOXDISPATCH_TOGGLE_KEY", "ctrl+t"),
			Progressive:    envOrDefaultBool("VOXDISPATCH_PROGRESSIVE_TYPING", false),
			TrailingSpace:  envOrDefaultBool("VOXDISPATCH_TRAILING_SPACE", true),
		},
		Actions: ActionsConfig{
			Shell:       envOrDefault("VOXDISPATCH_SHELL", "/bin/sh"),
			TypeCommand: envOrDefault("VOXDISPATCH_TYPE_COMMAND", "xdotool type --delay 0 --"),
		},
		Log: LogConfig{
			Level:  envOrDefault("VOXDISPATCH_LOG_LEVEL", "info"),
			Format: envOrDefault("VOXDISPATCH_LOG_FORMAT", "text"),
		},
		Notify: envOrDefaultBool("VOXDISPATCH_NOTIFY", false),
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Timing.Poll <= 0 {
		cfg.Timing.Poll = 20 * time.Millisecond
	}
	if cfg.Dispatch.FuzzyThreshold <= 0 || cfg.Dispatch.FuzzyThreshold >= 1 {
		cfg.Dispatch.FuzzyThreshold = 0.91
	}

	return cfg, nil
}

func firstExisting(fs afero.Fs, paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := fs.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envOrDefaultMillis reads a positive millisecond count.
func envOrDefaultMillis(key string, fallback int) time.Duration {
	ms := envOrDefaultInt(key, fallback)
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
