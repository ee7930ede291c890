package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calliepeck/cubby/internal/config"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cubby",
		Short:         "Bridge between DailyConnect and your home network",
		Long:          "cubby logs into DailyConnect with parent credentials, polls daily reports, activity feeds, and classroom calendars, and serves them over a local HTTP and WebSocket API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig merges defaults, the optional config file, CUBBY_* environment
// variables, and command-line flags, in ascending precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()

	bindings := map[string]string{
		"log_level":   "log-level",
		"listen_addr": "listen",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	file, _ := cmd.Flags().GetString("config")
	return config.Load(v, file)
}

func logFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = "text"
	}
	return format
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cubby version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
