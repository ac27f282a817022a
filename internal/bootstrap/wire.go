package bootstrap

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"voxdispatch/internal/audio"
	"voxdispatch/internal/commands"
	"voxdispatch/internal/config"
	"voxdispatch/internal/dispatch"
	"voxdispatch/internal/domain"
	"voxdispatch/internal/executor"
	"voxdispatch/internal/keys"
	"voxdispatch/internal/matcher"
	"voxdispatch/internal/ports"
	"voxdispatch/internal/providers/deepgram"
	"voxdispatch/internal/rules"
	"voxdispatch/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Runner   *usecase.Runner
	Executor *executor.Shell
	Terminal *keys.Terminal
	Table    *commands.Table
	Config   config.Config
}

// Build wires all dependencies for the current runtime.
func Build(eventSink ports.EventSink, fs afero.Fs) (Services, error) {
	cfg, err := config.Load(fs)
	if err != nil {
		return Services{}, err
	}

	table, err := commands.NewTable(cfg.Commands.Table, cfg.Commands.TogglePhrase)
	if err != nil {
		return Services{}, err
	}

	rulesEngine, err := rules.Load(fs, cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	toggleKey, err := keys.ParseBinding(cfg.Dispatch.ToggleKey)
	if err != nil {
		return Services{}, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	quitKey, err := keys.ParseBinding("ctrl+c")
	if err != nil {
		return Services{}, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	shell := executor.NewShell(cfg.Actions.Shell, cfg.Actions.TypeCommand, eventSink)
	modes := dispatch.NewModeController(eventSink)
	machine := dispatch.NewMachine(
		table,
		matcher.New(cfg.Dispatch.FuzzyThreshold),
		modes,
		shell,
		rulesEngine,
		eventSink,
		dispatch.Config{
			Timing: dispatch.Timing{
				Silence:       cfg.Timing.Silence,
				Prefix:        cfg.Timing.Prefix,
				DictationIdle: cfg.Timing.DictationIdle,
				CaptureWindow: cfg.Timing.CaptureWindow,
				Cooldown:      cfg.Timing.Cooldown,
			},
			Progressive:   cfg.Dispatch.Progressive,
			TrailingSpace: cfg.Dispatch.TrailingSpace,
		},
	)

	var recorder ports.PassRecorder
	if cfg.Audio.DumpDir != "" {
		recorder = audio.NewWAVRecorder(fs, cfg.Audio.DumpDir)
	}

	terminal := keys.NewTerminal(os.Stdin)
	runner := usecase.NewRunner(
		audio.NewCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		terminal,
		recorder,
		machine,
		modes,
		eventSink,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    1,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize: cfg.Audio.ChunkSize,
			Poll:      cfg.Timing.Poll,
			Grammar:   table.Phrases(),
			ToggleKey: toggleKey,
			QuitKey:   quitKey,
		},
	)

	return Services{Runner: runner, Executor: shell, Terminal: terminal, Table: table, Config: cfg}, nil
}
