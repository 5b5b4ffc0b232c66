package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply listing schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
