// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eyevinn/strom/internal/blocks"
	"github.com/eyevinn/strom/internal/blocks/builtin"
	"github.com/eyevinn/strom/internal/config"
	"github.com/eyevinn/strom/internal/discovery"
	"github.com/eyevinn/strom/internal/events"
	"github.com/eyevinn/strom/internal/flowengine"
	"github.com/eyevinn/strom/internal/flowstore"
	"github.com/eyevinn/strom/internal/httpapi"
	strlog "github.com/eyevinn/strom/internal/log"
	"github.com/eyevinn/strom/internal/mediaplayer"
	"github.com/eyevinn/strom/internal/mf/simmf"
	"github.com/eyevinn/strom/internal/telemetry"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

const telemetryPollInterval = 5 * time.Second

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsed.User = nil
	return parsed.String()
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	bindAddress := flag.String("bind", "", "override the HTTP listen address")
	flag.Parse()

	if *showVersion {
		fmt.Printf("strom %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Safe logging defaults until the real config is loaded.
	strlog.Configure(strlog.Config{Level: "info", Service: "strom", Version: version})
	logger := strlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flags := config.Flags{ConfigPath: configPath}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bind":
			flags.BindAddress = bindAddress
		}
	})

	loader := config.NewLoader(*configPath, flags)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).Str(strlog.FieldEvent, "config.load_failed").Msg("failed to load configuration")
	}

	strlog.Configure(strlog.Config{Level: cfg.LogLevel, Service: "strom", Version: version})
	logger = strlog.WithComponent("main")
	logger.Info().
		Str(strlog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("bind_address", cfg.BindAddress).
		Str("flow_store", maskURL(cfg.FlowStorePath)).
		Msg("starting strom")

	if dir := filepath.Dir(cfg.FlowStorePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logger.Fatal().Err(err).Str(strlog.FieldEvent, "flowstore.dir_failed").Msg("failed to create flow store directory")
		}
	}

	store, err := flowstore.Open(cfg.FlowStorePath)
	if err != nil {
		logger.Fatal().Err(err).Str(strlog.FieldEvent, "flowstore.open_failed").Msg("failed to open flow store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing flow store")
		}
	}()

	broadcaster := events.NewBroadcaster()

	players := mediaplayer.NewRegistry()
	registry := blocks.NewRegistry()
	builtin.Register(registry, players)

	factory := simmf.NewFactory()
	engine := flowengine.New(store, registry, factory, broadcaster, players)

	var disc *discovery.Service
	if cfg.RTSPAddr != "" || cfg.DiscoveryCachePath != "" || len(cfg.SAPAddresses) > 0 {
		disc = discovery.New(discovery.Config{
			SAPAddresses: cfg.SAPAddresses,
			StreamTTL:    cfg.DiscoveryStreamTTL,
			RTSPAddr:     cfg.RTSPAddr,
			CachePath:    cfg.DiscoveryCachePath,
		}, broadcaster)
		if err := disc.Start(ctx); err != nil {
			logger.Error().Err(err).Str(strlog.FieldEvent, "discovery.start_failed").Msg("discovery service failed to start, continuing without it")
			disc = nil
		} else {
			defer disc.Stop()
			go pollDiscoveryTelemetry(ctx, disc, broadcaster)
		}
	}

	holder := config.NewHolder(cfg, loader, *configPath)
	if *configPath != "" {
		if err := holder.StartWatcher(ctx); err != nil {
			logger.Warn().Err(err).Str(strlog.FieldEvent, "config.watch_failed").Msg("config hot-reload watcher unavailable")
		} else {
			defer holder.Stop()
		}
	}

	server := httpapi.NewServer(store, engine, registry, factory, disc, broadcaster, players, httpapi.Config{
		RateLimitRPS:   cfg.RateLimitRPS,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpSrv := &http.Server{
		Addr:              cfg.BindAddress,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str(strlog.FieldEvent, "http.listen").Str(strlog.FieldAddr, cfg.BindAddress).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info().Str(strlog.FieldEvent, "shutdown.signal").Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Str(strlog.FieldEvent, "http.serve_failed").Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Str(strlog.FieldEvent, "http.shutdown_failed").Msg("graceful shutdown failed")
	}

	logger.Info().Msg("strom exiting")
}

// pollDiscoveryTelemetry periodically republishes the discovery service's
// stream counts and the event broadcaster's drop counter into the process
// metrics (spec §4.10).
func pollDiscoveryTelemetry(ctx context.Context, disc *discovery.Service, broadcaster *events.Broadcaster) {
	ticker := time.NewTicker(telemetryPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			telemetry.SetDiscoveredStreams(len(disc.ListDiscovered()))
			telemetry.SetAnnouncedStreams(len(disc.ListAnnounced()))
			telemetry.ObserveBroadcasterDrops(broadcaster.TotalDropped())
		}
	}
}
