package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"calltriage/internal/bootstrap"
	"calltriage/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.LogLevel}))
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server terminated with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	services, err := bootstrap.Build(cfg, NewApp(logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("failed to close call store", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           services.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting call triage server",
		"listen_addr", cfg.Server.ListenAddr,
		"stt_model", cfg.Deepgram.Model,
		"ai_model", cfg.OpenAI.Model,
		"criteria_file", cfg.Rules.CriteriaPath,
		"db_path", cfg.Store.Path,
		"default_locale", cfg.Session.DefaultLocale,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return services.Server.Drain(shutdownCtx)
	})
	return group.Wait()
}
