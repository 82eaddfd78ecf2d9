// Command athena selects, validates and trains regression models for every
// configured zone.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/athena/config"
	"github.com/YuminosukeSato/athena/decision"
	"github.com/YuminosukeSato/athena/pipeline"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

type runOptions struct {
	configPath     string
	envFile        string
	nonInteractive bool
	zones          []string
	disable        []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "athena",
		Short:         "Multi-zone regression model selection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	return root
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for every configured zone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			err := run(ctx, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "athena: %v\n", err)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration")
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with ATHENA_* overrides")
	f.BoolVar(&opts.nonInteractive, "non-interactive", false, "never prompt; use default decisions")
	f.StringSliceVar(&opts.zones, "zones", nil, "comma separated zones to process (default: all)")
	f.StringSliceVar(&opts.disable, "disable", nil, "stages to skip: train, postprocess, notify")
	return cmd
}

func run(ctx context.Context, opts *runOptions) error {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	if len(opts.zones) > 0 {
		cfg.Data.Zones = opts.zones
	}
	if len(opts.disable) > 0 {
		cfg.Disable = append(cfg.Disable, opts.disable...)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level, _ := log.ParseLevel(cfg.Log.Level)
	logger, err := log.Setup(log.Backend(cfg.Log.Backend), level, os.Stderr)
	if err != nil {
		return err
	}

	var decisions decision.Provider
	if cfg.Interactive && !opts.nonInteractive && isatty.IsTerminal(os.Stdin.Fd()) {
		decisions = decision.NewInteractive(os.Stdin, os.Stdout)
	} else if cfg.Interactive {
		logger.Info("Standard input is not a terminal, running non-interactively")
	}

	rc, err := pipeline.Build(cfg, decisions)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			logger.Warn("Close failed", cerr)
		}
	}()
	rc.BiasReport = os.Stdout

	logger.Info("Run started", log.RunIDKey, rc.RunID, "zones", strings.Join(cfg.Data.Zones, ","))
	if err := rc.Run(ctx); err != nil {
		logger.Error("Run failed", err, "severity", errors.SeverityOf(err).String())
		return err
	}
	return nil
}
