package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/orrn/printsim/internal/api"
	"github.com/orrn/printsim/internal/api/handlers"
	"github.com/orrn/printsim/internal/archive"
	"github.com/orrn/printsim/internal/config"
	"github.com/orrn/printsim/internal/core"
	"github.com/orrn/printsim/internal/db"
	"github.com/orrn/printsim/internal/logging"
	"github.com/orrn/printsim/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator with its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return err
	}

	store, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	if err := handlers.RestoreSettings(ctx, store.Settings, engine, logger); err != nil {
		return err
	}

	archiveDays := cfg.Database.ArchiveDays
	if days, err := handlers.StoredArchiveDays(ctx, store.Settings); err != nil {
		return err
	} else if days > 0 {
		archiveDays = days
	}
	archiver, err := archive.NewArchiver(store, archive.ArchiveConfig{
		ArchivePath: cfg.Database.ArchivePath,
		ArchiveDays: archiveDays,
	}, logger)
	if err != nil {
		return err
	}

	recorder := archive.NewRecorder(engine, store, logger)
	sender := webhook.NewWebhookSender(store.Webhooks, webhook.WebhookConfig{
		RetryCount:  cfg.Webhooks.MaxRetries,
		Timeout:     cfg.Webhooks.Timeout,
		WorkerCount: cfg.Webhooks.Workers,
	}, logger)

	streams := handlers.NewStreamHandler(engine)
	router, err := api.NewRouter(ctx, api.Dependencies{
		Engine:   engine,
		Store:    store,
		Archiver: archiver,
		Webhooks: sender,
		Config:   cfg,
		Logger:   logger,
		Streams:  streams,
	})
	if err != nil {
		return err
	}

	recorder.Start()
	defer recorder.Stop()
	sender.Start()
	sender.Forward(engine)
	defer sender.Stop()
	archiver.Start()
	defer archiver.Stop()
	engine.Start()
	defer engine.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	srv.RegisterOnShutdown(streams.Close)

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":         srv.Addr,
			"auto_process": engine.AutoProcess(),
			"tick_period":  engine.TickPeriod().String(),
		}).Info("printsim listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

func newEngine(cfg *config.Config, logger logrus.FieldLogger) (*core.Engine, error) {
	return core.NewEngine(core.Options{
		TickPeriod:      cfg.Simulation.TickPeriod,
		AutoProcess:     cfg.Simulation.AutoProcess,
		Printers:        cfg.EnginePrinters(),
		HistoryCapacity: cfg.Simulation.HistoryCapacity,
		LogCapacity:     cfg.Simulation.LogCapacity,
		Random:          core.NewSeededRandom(cfg.Simulation.Seed),
		Logger:          logger,
	})
}
