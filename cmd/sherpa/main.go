package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/config"
	"github.com/VenkatGGG/site-sherpa/internal/logging"
)

type rootOptions struct {
	cfg       config.Config
	logLevel  string
	logFormat string
	logger    *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sherpa:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "sherpa",
		Short:         "SiteSherpa decision engine for the browser assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", opts.cfg.LogFormat, "log format (json or console)")

	root.AddCommand(newServeCmd(opts), newPlanCmd(opts), newVaultCmd(opts))
	return root
}
