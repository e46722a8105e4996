package main

import (
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/taskhub_auth/internal/db"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the users and refresh_tokens tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(false)
			if err != nil {
				return err
			}
			gdb, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close(gdb)

			if err := db.Migrate(cmd.Context(), gdb); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}
