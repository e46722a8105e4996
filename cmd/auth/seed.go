package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/taskhub_auth/internal/db"
	"github.com/Skotchmaster/taskhub_auth/internal/service"
)

// NewSeedAdminCmd provisions the first admin. Running it again is a no-op.
func NewSeedAdminCmd() *cobra.Command {
	var seed service.AdminSeed

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account if it does not exist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed.Password == "" {
				return errors.New("--password is required")
			}

			cfg, log, err := loadConfig(true)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := db.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}

			created, err := a.svc.ProvisionAdmin(cmd.Context(), seed)
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("admin %q created\n", seed.Username)
			} else {
				cmd.Printf("admin %q already present, nothing to do\n", seed.Username)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&seed.Username, "username", "admin", "admin username")
	cmd.Flags().StringVar(&seed.Email, "email", "admin@example.com", "admin email")
	cmd.Flags().StringVar(&seed.Password, "password", "", "admin password")
	cmd.Flags().StringVar(&seed.FirstName, "first-name", "Admin", "admin first name")
	cmd.Flags().StringVar(&seed.LastName, "last-name", "User", "admin last name")

	return cmd
}
