package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"carvision/config"
	"carvision/internal/container"
	"carvision/internal/logging"
)

// commandContext общие для подкоманд конфигурация и зависимости
type commandContext struct {
	logLevel  string
	logFormat string

	cfg       *config.Config
	logger    *slog.Logger
	container *container.Container
}

func (c *commandContext) ensure(cmd *cobra.Command) error {
	if c.container != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.LogFormat = c.logFormat
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logger
	c.container = container.New(cfg, logger)
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "carvision",
		Short:         "Merge car damage and part datasets, triage model detections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.ensure(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newMergeCommand(ctx))
	rootCmd.AddCommand(newTriageCommand(ctx))
	rootCmd.AddCommand(newLabelsCommand(ctx))

	return rootCmd
}
