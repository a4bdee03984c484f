package main

import (
	"fmt"
	"os"

	"orgstock/internal/config"
	"orgstock/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "orgstock",
		Short:         "Multi-tenant category hierarchy and inventory ledger service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			log, err := logger.Init(cfg.Env, cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			log.Info("configuration loaded", cfg.LogFields()...)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.L().Sync()
		},
	}

	root.AddCommand(
		newServeCmd(func() *config.Config { return cfg }),
		newMigrateCmd(func() *config.Config { return cfg }),
	)
	return root
}

func fatalf(msg string, err error) error {
	logger.L().Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}
