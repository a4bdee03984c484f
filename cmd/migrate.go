package main

import (
	"orgstock/internal/config"
	"orgstock/internal/logger"
	"orgstock/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(c *cobra.Command, args []string) error {
			if err := cfg().Validate(); err != nil {
				return err
			}
			if err := database.MigrateUp(cfg().Database.URL); err != nil {
				return fatalf("migration up failed", err)
			}
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(c *cobra.Command, args []string) error {
			if err := cfg().Validate(); err != nil {
				return err
			}
			if err := database.MigrateDown(cfg().Database.URL, steps); err != nil {
				return fatalf("migration down failed", err)
			}
			logger.L().Info("migrations rolled back", zap.Int("steps", steps))
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}
