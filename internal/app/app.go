// Package app holds the bootstrap the three cmd/ binaries share: signal
// handling, config loading and panic containment, so each main.go is
// just wiring.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmitss/intersection/internal/config"
	"github.com/mmitss/intersection/internal/logging"
)

// SignalContext returns a context cancelled on SIGINT/SIGTERM, for
// cooperative shutdown of a binary's main loop.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Bootstrap loads and validates the YAML config at path and returns it
// alongside a logger named for the calling binary.
func Bootstrap(name, path string) (*config.Config, *logging.Logger, error) {
	log := logging.New(name)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, log, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, log, nil
}

// RunMain wraps a binary's run function in a top-level recover, logging
// a caught panic as a fatal-category error and returning a non-zero
// status instead of crashing with a bare stack trace.
func RunMain(log *logging.Logger, run func() error) int {
	defer log.Sync()
	var exitCode int
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Critical("unrecovered panic", "panic", r)
				exitCode = 2
			}
		}()
		if err := run(); err != nil {
			log.Error("exiting with error", "err", err)
			exitCode = 1
		}
	}()
	return exitCode
}
