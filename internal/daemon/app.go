// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vflorio/hbbtv-emu-sub005/internal/config"
	"github.com/vflorio/hbbtv-emu-sub005/internal/status"
)

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// status export) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	status       *status.Writer
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. holder and statusWriter may be
// nil; the corresponding subsystems then stay off.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, statusWriter *status.Writer) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		holder:       holder,
		status:       statusWriter,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.holder != nil {
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// Reload wiring: apply the log level from every swapped-in config.
	// Everything else takes effect for components that read the holder.
	if a.holder != nil {
		cfgCh := make(chan config.AppConfig, 1)
		a.holder.RegisterListener(cfgCh)

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case newCfg := <-cfgCh:
					if lvl, err := zerolog.ParseLevel(newCfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
						zerolog.SetGlobalLevel(lvl)
					}
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.holder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Status export loop (writes a final snapshot before returning).
	if a.status != nil {
		g.Go(func() error {
			return a.status.Run(ctx)
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
