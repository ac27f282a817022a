package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"voxdispatch/internal/bootstrap"
	"voxdispatch/internal/keys"
	"voxdispatch/internal/notify"
	"voxdispatch/internal/ports"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voxdispatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The event sink is needed to build the services, and the logger needs
	// the loaded config; start with defaults and swap the logger in after.
	logOut := keys.CRLFWriter{W: os.Stderr}
	app := NewApp(newLogger(logOut, "info", "text"), notify.Discard{})

	services, err := bootstrap.Build(app, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer services.Executor.Close()
	cfg := services.Config

	app.log = newLogger(logOut, cfg.Log.Level, cfg.Log.Format)
	var notifier ports.Notifier = notify.Discard{}
	if cfg.Notify {
		notifier = notify.NewDesktop("voxdispatch")
	}
	app.notifier = notifier

	app.log.Info("voxdispatch ready",
		"commands", services.Table.Len(),
		"toggle_phrase", services.Table.TogglePhrase(),
		"toggle_key", cfg.Dispatch.ToggleKey,
		"model", cfg.Deepgram.Model,
		"commands_file", cfg.Commands.Path,
	)

	return services.Runner.Run(ctx)
}
