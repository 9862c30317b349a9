// Command gatewaycache mirrors chat gateway events into an entity cache and
// announces every change to its subscribers before the cache is mutated.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start gateway cache.")
		os.Exit(1)
	}
	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("Gateway cache stopped with errors.")
		os.Exit(1)
	}
	logger.Info().Msg("Gateway cache stopped.")
}
