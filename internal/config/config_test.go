package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"voxdispatch/internal/domain"
)

const sampleCommands = `
toggle_phrase = "dictate now"

[commands]
"open browser" = "xdg-open https://example.com"
"search web" = "xdg-open https://duckduckgo.com/?q={capture}"
`

func TestLoadUsesCommandFileFallbackOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	home := "/home/tester"
	t.Setenv("HOME", home)
	t.Setenv("VOXDISPATCH_COMMANDS_FILE", "")
	t.Setenv("VOXDISPATCH_TOGGLE_PHRASE", "")

	local := filepath.Join("config", "commands.toml")
	writeFile(t, fs, local, "[commands]\n\"lock screen\" = \"loginctl lock-session\"\n")

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Commands.Path != local {
		t.Fatalf("expected local fallback, got %q", cfg.Commands.Path)
	}

	user := filepath.Join(home, ".config", "voxdispatch", "commands.toml")
	writeFile(t, fs, user, sampleCommands)

	cfg, err = Load(fs)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Commands.Path != user {
		t.Fatalf("expected user command file priority, got %q", cfg.Commands.Path)
	}
	if cfg.Commands.TogglePhrase != "dictate now" || len(cfg.Commands.Table) != 2 {
		t.Fatalf("unexpected commands: %+v", cfg.Commands)
	}
}

func TestLoadDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("HOME", "/home/tester")
	t.Setenv("VOXDISPATCH_COMMANDS_FILE", "/etc/vox/commands.toml")
	t.Setenv("VOXDISPATCH_RULES_FILE", "")
	writeFile(t, fs, "/etc/vox/commands.toml", sampleCommands)

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Timing.Silence != 800*time.Millisecond || cfg.Timing.Prefix != 500*time.Millisecond {
		t.Fatalf("unexpected matching windows: %+v", cfg.Timing)
	}
	if cfg.Timing.DictationIdle != 8*time.Second || cfg.Timing.Cooldown != 1500*time.Millisecond {
		t.Fatalf("unexpected mode windows: %+v", cfg.Timing)
	}
	if cfg.Timing.Poll != 20*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.Timing.Poll)
	}
	if cfg.Dispatch.FuzzyThreshold != 0.91 || cfg.Dispatch.ToggleKey != "ctrl+t" {
		t.Fatalf("unexpected dispatch config: %+v", cfg.Dispatch)
	}
	if cfg.Audio.RecorderCommand != "ffmpeg" || cfg.Audio.SampleRate != 16000 {
		t.Fatalf("unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Rules.Path != "/home/tester/.config/voxdispatch/substitutions.rules" {
		t.Fatalf("unexpected rules path: %q", cfg.Rules.Path)
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("HOME", "/home/tester")
	t.Setenv("VOXDISPATCH_COMMANDS_FILE", "/c.toml")
	t.Setenv("VOXDISPATCH_TOGGLE_PHRASE", "free speech")
	t.Setenv("DEEPGRAM_API_KEY", " test-key ")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("VOXDISPATCH_RECORDER_COMMAND", "rec")
	t.Setenv("VOXDISPATCH_SILENCE_MS", "1200")
	t.Setenv("VOXDISPATCH_FUZZY_THRESHOLD", "0.85")
	t.Setenv("VOXDISPATCH_PROGRESSIVE_TYPING", "yes")
	t.Setenv("VOXDISPATCH_TRAILING_SPACE", "off")
	t.Setenv("VOXDISPATCH_NOTIFY", "1")
	t.Setenv("VOXDISPATCH_LOG_FORMAT", "json")
	writeFile(t, fs, "/c.toml", sampleCommands)

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Commands.TogglePhrase != "free speech" {
		t.Fatalf("environment must override the file toggle phrase, got %q", cfg.Commands.TogglePhrase)
	}
	if cfg.Deepgram.APIKey != "test-key" || cfg.Deepgram.Model != "nova-3" {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Audio.RecorderCommand != "rec" || cfg.Timing.Silence != 1200*time.Millisecond {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Audio, cfg.Timing)
	}
	if cfg.Dispatch.FuzzyThreshold != 0.85 || !cfg.Dispatch.Progressive || cfg.Dispatch.TrailingSpace {
		t.Fatalf("unexpected dispatch config: %+v", cfg.Dispatch)
	}
	if !cfg.Notify || cfg.Log.Format != "json" {
		t.Fatalf("unexpected ambient config: notify=%t log=%+v", cfg.Notify, cfg.Log)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv("HOME", "/home/tester")
	t.Setenv("VOXDISPATCH_COMMANDS_FILE", "/c.toml")
	t.Setenv("VOXDISPATCH_SAMPLE_RATE", "abc")
	t.Setenv("VOXDISPATCH_AUDIO_CHUNK_SIZE", "12")
	t.Setenv("VOXDISPATCH_PREFIX_MS", "-5")
	t.Setenv("VOXDISPATCH_POLL_MS", "nope")
	t.Setenv("VOXDISPATCH_FUZZY_THRESHOLD", "1.5")
	t.Setenv("VOXDISPATCH_RULE_ITERATION_LIMIT", "0")
	writeFile(t, fs, "/c.toml", sampleCommands)

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("unexpected audio fallbacks: %+v", cfg.Audio)
	}
	if cfg.Timing.Prefix != 500*time.Millisecond || cfg.Timing.Poll != 20*time.Millisecond {
		t.Fatalf("unexpected timing fallbacks: %+v", cfg.Timing)
	}
	if cfg.Dispatch.FuzzyThreshold != 0.91 || cfg.Rules.IterationLimit != 30 {
		t.Fatalf("unexpected fallbacks: %+v %+v", cfg.Dispatch, cfg.Rules)
	}
}

func TestLoadMissingCommandFileIsConfigError(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("VOXDISPATCH_COMMANDS_FILE", "")

	_, err := Load(afero.NewMemMapFs())
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoadCommandsRejectsMalformedFiles(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cases := map[string]string{
		"/syntax.toml":  "[commands\n",
		"/unknown.toml": "[comands]\n\"a\" = \"b\"\n",
		"/types.toml":   "[commands]\n\"a\" = 3\n",
	}
	for path, contents := range cases {
		writeFile(t, fs, path, contents)
		if _, err := LoadCommands(fs, path); !errors.Is(err, domain.ErrConfig) {
			t.Fatalf("%s: expected config error, got %v", path, err)
		}
	}
}

func TestLoadCommandsEmptyTable(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/only-toggle.toml", "toggle_phrase = \"  type mode \"\n")

	commands, err := LoadCommands(fs, "/only-toggle.toml")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if commands.Table == nil || len(commands.Table) != 0 {
		t.Fatalf("expected empty table, got %v", commands.Table)
	}
	if commands.TogglePhrase != "type mode" || !strings.HasSuffix(commands.Path, "only-toggle.toml") {
		t.Fatalf("unexpected commands: %+v", commands)
	}
}

func writeFile(t *testing.T, fs afero.Fs, path string, contents string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
