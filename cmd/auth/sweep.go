package main

import (
	"github.com/spf13/cobra"
)

// NewSweepCmd runs a single sweep pass, for use from cron.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired refresh tokens once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(true)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.svc.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("deleted %d expired refresh tokens\n", n)
			return nil
		},
	}
}
