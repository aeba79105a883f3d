package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrebq/secrets/cmd/secrets/keygen"
	"github.com/andrebq/secrets/cmd/secrets/serve"
	"github.com/andrebq/secrets/cmd/secrets/users"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var level string
	var pretty bool
	app := &cli.App{
		Name:  "secrets",
		Usage: "Share your secrets anonymously, once you prove who you are",
		Flags: []cli.Flag{
			cmdflags.LogLevel(&level),
			cmdflags.LogPretty(&pretty),
		},
		Before: func(ctx *cli.Context) error {
			logger, err := logutil.Setup(level, pretty, os.Stderr)
			if err != nil {
				return err
			}
			ctx.Context = logutil.WithLogger(ctx.Context, logger)
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(),
			users.Cmd(),
			keygen.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
