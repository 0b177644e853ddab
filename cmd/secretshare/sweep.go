package main

import (
	"github.com/alwitt/secretshare"
	"github.com/apex/log"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired secrets once and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := secretshare.NewApplication(cmd.Context(), appCfg, nil)
		if err != nil {
			return err
		}
		defer func() {
			_ = app.Close()
		}()

		purged, err := app.Vault.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"module": "main", "component": "sweep"}).
			WithField("purged", purged).
			Info("Sweep complete")
		return nil
	},
}
