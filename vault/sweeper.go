package vault

import (
	"context"
	"time"

	"github.com/apex/log"
)

/*
RunSweeper periodically purge expired secrets until the context is cancelled

	@param ctx context.Context - execution context
	@param secretVault Vault - the vault
	@param interval time.Duration - time between sweeps
*/
func RunSweeper(ctx context.Context, secretVault Vault, interval time.Duration) {
	logTags := log.Fields{"module": "vault", "component": "sweeper"}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(logTags).WithField("interval", interval.String()).Info("Sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.WithFields(logTags).Info("Sweeper stopped")
			return
		case <-ticker.C:
			if _, err := secretVault.PurgeExpired(ctx); err != nil {
				log.WithError(err).WithFields(logTags).Error("Sweep failed")
			}
		}
	}
}
