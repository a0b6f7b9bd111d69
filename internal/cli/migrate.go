package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and provision roles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := openApp(context.Background(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		log.Info("database is up to date")
		return nil
	},
}
