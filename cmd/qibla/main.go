package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calmh.dev/qibla/cmd/qibla/bearing"
	"calmh.dev/qibla/cmd/qibla/serve"
	testchime "calmh.dev/qibla/cmd/qibla/test-chime"
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/exp/slog"
)

type CLI struct {
	LogLevel string `default:"info" enum:"debug,info,warn,error" help:"Log level (${enum})" env:"QIBLA_LOG_LEVEL"`

	Serve     serve.CLI     `cmd:"" default:"1" help:"Point a compass at the qibla from live NMEA data"`
	Bearing   bearing.CLI   `cmd:"" help:"Print the qibla bearing and distance for a position"`
	TestChime testchime.CLI `cmd:"" help:"Play the alignment chime once"`
}

func main() {
	// Environment from .env, if there is one, without overriding the real
	// environment.
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("qibla"),
		kong.Description("Qibla direction from position and compass heading."),
		kong.UsageOnError(),
	)

	logger := newLogger(os.Stderr, cli.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(logger); err != nil && ctx.Err() == nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func newLogger(w *os.File, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
		NoColor:    !isatty.IsTerminal(w.Fd()),
	}))
}
