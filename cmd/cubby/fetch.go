package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/calliepeck/cubby/internal/coordinator"
	"github.com/calliepeck/cubby/internal/dailyconnect"
	"github.com/calliepeck/cubby/internal/logging"
)

// fetch runs a single refresh cycle and prints the snapshot as JSON. Handy
// for checking credentials and seeing what the API will serve without
// starting the daemon.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one refresh cycle and print the snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

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

			coord := coordinator.New(client, coordinator.Config{
				MaxConcurrent:     cfg.MaxConcurrent,
				CalendarMaxEvents: cfg.CalendarMaxEvents,
				CalendarDaysAhead: cfg.CalendarDaysAhead,
			}, logger.With("component", "coordinator"), nil)

			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			snap, err := coord.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().Duration("timeout", 2*time.Minute, "overall deadline for the cycle")
	return cmd
}
