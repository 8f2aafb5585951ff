package main

import (
	"context"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/alerts"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	"github.com/craftstock/craftstock/cmd/stocksync/reconciler"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/zap"
)

// StartScheduler launches the periodic background jobs: the low-stock
// threshold recheck sweep and the operation log retention cleanup.
func StartScheduler(service *reconciler.Service, notifier *alerts.Notifier, store *postgresql.Connection) {
	recheckSeconds, _ := env.GetAsInt("THRESHOLD_RECHECK_INTERVAL_SECONDS", false, 300) //nolint:errcheck
	cleanupHours, _ := env.GetAsInt("SYNC_CLEANUP_INTERVAL_HOURS", false, 24)           //nolint:errcheck
	retentionDays, _ := env.GetAsInt("SYNC_RETENTION_DAYS", false, 30)                  //nolint:errcheck

	zap.S().Infof(
		"Starting scheduler (threshold recheck every %ds, cleanup every %dh, retention %dd)",
		recheckSeconds, cleanupHours, retentionDays)

	go thresholdRecheckLoop(notifier, time.Duration(recheckSeconds)*time.Second)
	go retentionCleanupLoop(service, store, time.Duration(cleanupHours)*time.Hour, retentionDays)
}

func thresholdRecheckLoop(notifier *alerts.Notifier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		zap.S().Debugf("Running threshold recheck sweep")
		notifier.RecheckAll(context.Background())
	}
}

func retentionCleanupLoop(service *reconciler.Service, store *postgresql.Connection, interval time.Duration, retentionDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		businessIDs, err := store.ListBusinessIDs(context.Background())
		if err != nil {
			zap.S().Errorf("Retention cleanup failed to list businesses: %s", err)
			continue
		}
		for _, businessID := range businessIDs {
			removed, err := service.Cleanup(context.Background(), businessID, retentionDays)
			if err != nil {
				zap.S().Errorf("Retention cleanup failed for business %s: %s", businessID, err)
				continue
			}
			if removed > 0 {
				zap.S().Infof("Retention cleanup removed %d operations for business %s", removed, businessID)
			}
		}
	}
}
