// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vflorio/hbbtv-emu-sub005/internal/config"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
)

// Deps contains dependencies required by the daemon Manager.
// This allows for clean dependency injection and easier testing.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config is the loaded application configuration
	Config config.AppConfig

	// APIHandler serves the control API, event streams and fixtures
	APIHandler http.Handler

	// Sessions is the playback session manager, disposed after the HTTP
	// server has drained
	Sessions *core.Manager

	// Ready, when set, is cleared as shutdown begins so readiness probes
	// fail during the drain
	Ready *atomic.Bool
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	if d.Sessions == nil {
		return ErrMissingSessions
	}
	// Config validation is done by config.Loader
	return nil
}
