package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/dux/internal/config"
	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/storage"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configDir string
	logLevel  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if de, ok := errors.As(err); ok {
			fmt.Fprintln(os.Stderr, de.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "dux",
		Short: "Inspect and serve shared application state",
		Long: `dux manages the state behind dux stores.

Persistent stores keep their values in storage areas (durable and
session). This tool reads and writes those values, serves a live
devtools view of them, and runs a small demo application.

Storage is configured in dux.json or dux.yaml; without a config file
the durable area is .dux/state.db (sqlite) and the session area is
in memory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configDir, "config", "c", "", "Directory holding dux.json or dux.yaml (default: nearest project root)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")

	rootCmd.AddCommand(
		getCmd(&flags),
		setCmd(&flags),
		rmCmd(&flags),
		lsCmd(&flags),
		devtoolsCmd(&flags),
		demoCmd(&flags),
		versionCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configDir != "" {
		cfg, err = config.LoadOrDefault(flags.configDir)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openStorage loads the config and opens its storage areas.
func openStorage(ctx context.Context, flags *globalFlags) (*config.Config, *storage.Areas, *slog.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cfg.Logger(os.Stderr).With("component", "dux")

	areas, err := cfg.OpenAreas(ctx, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, areas, logger, nil
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
