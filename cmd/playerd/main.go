// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Command playerd runs the HbbTV emulator playback daemon: the session
// state machine, its control API and the surrounding export loops.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/vflorio/hbbtv-emu-sub005/internal/config"
	"github.com/vflorio/hbbtv-emu-sub005/internal/daemon"
	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	listenAddr := flag.String("listen", "", "control API listen address (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	path := strings.TrimSpace(*configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		log.WithComponent("daemon").Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
	}

	// Flags are the highest precedence layer, above ENV and file.
	if addr := strings.TrimSpace(*listenAddr); addr != "" {
		cfg.Listen = addr
	}
	if lvl := strings.TrimSpace(*logLevel); lvl != "" {
		cfg.LogLevel = lvl
	}

	// First Configure wins; nothing logs before this point.
	logCfg := log.Config{
		Level:   cfg.LogLevel,
		Service: "playerd",
	}
	if cfg.LogFormat == "console" {
		logCfg.Output = zerolog.NewConsoleWriter()
	}
	log.Configure(logCfg)

	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if path != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", path).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Listen).
		Str("data_dir", cfg.DataDir).
		Str("journal_backend", cfg.Journal.Backend).
		Str("cache_backend", cfg.Cache.Backend).
		Msg("starting playerd")

	// Hot reload support: watch the config file and honor SIGHUP.
	holder := config.NewHolder(cfg, config.NewLoader(path, version.Version), path)
	defer holder.Stop()

	app, err := daemon.Build(ctx, cfg, holder)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.build_failed").
			Msg("failed to assemble daemon")
	}

	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("server exiting")
}
