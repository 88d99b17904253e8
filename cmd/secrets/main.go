package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/andrebq/secrets/cmd/secrets/accounts"
	"github.com/andrebq/secrets/cmd/secrets/serve"
	"github.com/andrebq/secrets/internal/cmdflags"
	"github.com/andrebq/secrets/internal/logutil"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	var logLevel, logFormat string
	app := &cli.App{
		Name:  "secrets",
		Usage: "Share your secrets anonymously, with three generations of authentication",
		Flags: []cli.Flag{
			cmdflags.LogLevel(&logLevel),
			cmdflags.LogFormat(&logFormat),
		},
		Before: func(ctx *cli.Context) error {
			logger, err := logutil.New(os.Stderr, logFormat, logLevel)
			if err != nil {
				return err
			}
			log.Logger = logger
			ctx.Context = logutil.WithLogger(ctx.Context, logger)
			return nil
		},
		Commands: []*cli.Command{
			serve.Cmd(),
			accounts.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}
