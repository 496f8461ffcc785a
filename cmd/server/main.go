// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/telemon/internal/api"
	"github.com/tomtom215/telemon/internal/archive"
	"github.com/tomtom215/telemon/internal/config"
	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/supervisor"
	"github.com/tomtom215/telemon/internal/supervisor/services"
	ws "github.com/tomtom215/telemon/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("Server failed")
		stop()
		os.Exit(1)
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run assembles the processing model and its surfaces and serves them
// under the supervisor tree until ctx is canceled.
func run(ctx context.Context, cfg *config.Config) error {
	logging.Info().Str("definitions", cfg.Engine.DefinitionsFile).Msg("Starting telemon with supervisor tree")

	defs, err := definition.Load(cfg.Engine.DefinitionsFile)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	// Seals the process-wide registry; providers register from init.
	registry := extension.Default()
	logging.Info().
		Strs("calibrations", registry.Calibrations()).
		Strs("checks", registry.Checks()).
		Msg("Extension functions available")

	opts := []engine.Option{
		engine.WithRegistry(registry),
		engine.WithAllowUnresolved(cfg.Engine.AllowUnresolvedExtensions),
		engine.WithAlarmLogInterval(cfg.Engine.AlarmLogInterval),
		engine.WithInjectQueueSize(cfg.Engine.InjectQueueSize),
		engine.WithArchiveQueueSize(cfg.Engine.ArchiveQueueSize),
	}

	store, err := openArchive(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing archive")
			}
		}()
		opts = append(opts, engine.WithArchive(store))
	}

	model, err := engine.New(defs, opts...)
	if err != nil {
		return fmt.Errorf("build processing model: %w", err)
	}
	// Runs before the archive is closed.
	defer model.Stop()

	hub := ws.NewHub(ws.HubConfig{
		ClientBuffer: cfg.WebSocket.ClientBuffer,
		PingInterval: cfg.WebSocket.PingInterval,
	})

	natsComponents, err := InitNATS(cfg)
	if err != nil {
		return fmt.Errorf("initialize NATS forwarding: %w", err)
	}

	handlerCfg := api.HandlerConfig{
		AllowedOrigins: cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}
	if store != nil {
		handlerCfg.Archive = store
	}
	if natsComponents != nil {
		handlerCfg.Forwarder = natsComponents
	}
	handler := api.NewHandler(model, hub, handlerCfg)

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	if cfg.Server.RateLimitReqs > 0 {
		mwCfg.RateLimitRequests = cfg.Server.RateLimitReqs
	}
	if cfg.Server.RateLimitWindow > 0 {
		mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	}
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled
	router := api.NewRouter(handler, mwCfg)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	// Bridges zerolog to slog for sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Model layer
	tree.AddModelService(services.NewModelService(model))
	if store != nil {
		tree.AddModelService(services.NewArchiveCompactorService(archive.NewCompactor(store)))
	}

	// Messaging layer
	AddNATSToSupervisor(tree, natsComponents, model)

	// API layer
	tree.AddAPIService(services.NewWebSocketHubService(hub, model))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Int("entities", model.Graph().Len()).Msg("HTTP server service added")

	// The channel receives exactly one value and is never closed.
	serveErr := <-tree.ServeBackground(ctx)
	if errors.Is(serveErr, context.Canceled) || errors.Is(serveErr, context.DeadlineExceeded) {
		serveErr = nil
	}
	if serveErr != nil {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return serveErr
}

// openArchive opens the record archive when it is enabled. It returns a
// nil store otherwise.
func openArchive(cfg *config.Config) (*archive.Store, error) {
	if !cfg.Archive.Enabled {
		logging.Info().Msg("Record archive disabled (ARCHIVE_ENABLED=false)")
		return nil, nil
	}

	archiveCfg := archive.DefaultConfig()
	archiveCfg.Path = cfg.Archive.Path
	archiveCfg.SyncWrites = cfg.Archive.SyncWrites
	archiveCfg.Compression = cfg.Archive.Compression
	archiveCfg.Retention = cfg.Archive.Retention
	if cfg.Archive.GCInterval > 0 {
		archiveCfg.GCInterval = cfg.Archive.GCInterval
	}

	store, err := archive.Open(archiveCfg)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	logging.Info().
		Str("path", archiveCfg.Path).
		Dur("retention", archiveCfg.Retention).
		Msg("Record archive opened")
	return store, nil
}
