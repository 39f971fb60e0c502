package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"factory-hook/internal/client"
	"factory-hook/internal/config"
	"factory-hook/internal/handler"
	"factory-hook/internal/repository"
	"factory-hook/internal/service"
)

const (
	flagPort        = "port"
	shutdownTimeout = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the issue event webhook service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed(flagPort) {
				if cfg.Port, err = cmd.Flags().GetString(flagPort); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			setupLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
		DisableAutoGenTag: true,
	}

	cmd.Flags().String(flagPort, "", "listen port, overrides PORT")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("factory-hook starting", "version", Version)
	slog.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"authentication_enabled", cfg.EnableAuthentication,
		"settings_namespace", cfg.SettingsNamespace,
		"jira_base_url", cfg.JiraBaseURL,
		"develop_field_type", cfg.DevelopFieldType,
		"review_field_type", cfg.ReviewFieldType,
		"port", cfg.Port,
	)

	slog.Info("Initializing Redis connection...")
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to parse Redis URL", "error", err)
		return fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer func() { _ = rdb.Close() }()

	slog.Debug("Initializing service layer dependencies")
	settingsStore := repository.NewRedisRepository(rdb)
	factoryClient := client.NewFactoryClient(cfg)
	jiraClient, err := client.NewJiraClient(cfg)
	if err != nil {
		return fmt.Errorf("creating issue tracker client: %w", err)
	}

	writer := handler.NewResponseWriter()
	events := handler.NewEventHandler(writer, handler.DefaultEventQueueSize)

	router := service.NewRouter(
		settingsStore,
		jiraClient,
		service.NewProvisioner(factoryClient),
		service.NewDecommissioner(factoryClient),
		service.NewFieldWriter(jiraClient),
		events,
		service.RouterConfig{
			SettingsNamespace: cfg.SettingsNamespace,
			DevelopFieldType:  cfg.DevelopFieldType,
			ReviewFieldType:   cfg.ReviewFieldType,
		},
	)
	router.Start()
	slog.Info("Service layer dependencies initialized successfully")

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(cfg,
			events,
			handler.NewSettingsHandler(settingsStore, cfg.SettingsNamespace, writer),
			handler.NewHealthHandler(settingsStore, writer, Version),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		drainEvents(events, router)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("HTTP server error", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}

	// The router stays registered until the queue is drained so that events
	// accepted during shutdown are still handled.
	drainEvents(events, router)

	slog.Info("Server stopped")
	return nil
}

func drainEvents(events *handler.EventHandler, router *service.RouterImpl) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := events.Close(ctx); err != nil {
		slog.Warn("Shutdown timed out with issue events still queued", "error", err)
	}
	router.Stop()
}
