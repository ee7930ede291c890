package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/calliepeck/cubby/internal/config"
	"github.com/calliepeck/cubby/internal/coordinator"
	"github.com/calliepeck/cubby/internal/dailyconnect"
	"github.com/calliepeck/cubby/internal/logging"
	"github.com/calliepeck/cubby/internal/model"
	"github.com/calliepeck/cubby/internal/server"
	ws "github.com/calliepeck/cubby/internal/websocket"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll DailyConnect and serve the local API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
	cmd.Flags().String("listen", "", "address to serve the API on (e.g. :8093)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	logger := logging.Setup(cfg.LogLevel, logFormat(cmd))

	client, err := dailyconnect.New(dailyconnect.Config{
		Email:    cfg.Email,
		Password: cfg.Password,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.HTTPTimeout(),
		Logger:   logger.With("component", "dailyconnect"),
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	coord := coordinator.New(client, coordinator.Config{
		Interval:          cfg.PollInterval(),
		MaxConcurrent:     cfg.MaxConcurrent,
		CalendarMaxEvents: cfg.CalendarMaxEvents,
		CalendarDaysAhead: cfg.CalendarDaysAhead,
	}, logger.With("component", "coordinator"), func(snap *model.Snapshot) {
		hub.Broadcast(ws.SnapshotPublished(snap))
	})

	srv := server.New(coord, hub, logger.With("component", "server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord.Start(ctx)
	defer coord.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.ListenAddr, "poll_interval", cfg.PollInterval())
		if err := srv.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
