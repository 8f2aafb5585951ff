package alerts

import (
	"context"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Notifier raises a stock_alert row when a material quantity drops to its
// minimum threshold and resolves the alert when it recovers. It is invoked
// by the reconciliation engine after every committed quantity change and by
// the periodic re-check sweep.
type Notifier struct {
	store *postgresql.Connection
	// settings caches the per-business alert toggle; one DB read per business
	// per minute instead of one per quantity change.
	settings *gocache.Cache
}

func NewNotifier(store *postgresql.Connection) *Notifier {
	return &Notifier{
		store:    store,
		settings: gocache.New(1*time.Minute, 2*time.Minute),
	}
}

// QuantityChanged re-evaluates the low-stock state of one material. Errors
// are logged, never propagated: alerting must not fail a sync operation.
func (n *Notifier) QuantityChanged(ctx context.Context, businessID string, material *models.Material) {
	if !n.alertsEnabled(ctx, businessID) {
		return
	}
	err := n.check(ctx, businessID, material)
	if err != nil {
		zap.S().Errorf("Threshold check failed for material %s of business %s: %s", material.ID, businessID, err)
	}
}

// RecheckAll sweeps every material of every business. Runs on a fixed
// interval independent of sync traffic; it is eventually consistent with the
// entity store and assumes no ordering relative to in-flight operations.
func (n *Notifier) RecheckAll(ctx context.Context) {
	businessIDs, err := n.store.ListBusinessIDs(ctx)
	if err != nil {
		zap.S().Errorf("Threshold recheck failed to list businesses: %s", err)
		return
	}
	for _, businessID := range businessIDs {
		if !n.alertsEnabled(ctx, businessID) {
			continue
		}
		materials, err := n.store.ListMaterials(ctx, businessID)
		if err != nil {
			zap.S().Errorf("Threshold recheck failed to list materials for business %s: %s", businessID, err)
			continue
		}
		for i := range materials {
			err = n.check(ctx, businessID, &materials[i])
			if err != nil {
				zap.S().Errorf("Threshold recheck failed for material %s of business %s: %s", materials[i].ID, businessID, err)
			}
		}
	}
}

func (n *Notifier) check(ctx context.Context, businessID string, material *models.Material) error {
	if material.MinThreshold <= 0 {
		return nil
	}
	active, err := n.store.GetActiveAlert(ctx, businessID, material.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if material.Quantity <= material.MinThreshold {
		if active != nil {
			return nil
		}
		zap.S().Infof("Raising low stock alert for material %s of business %s (%.2f <= %.2f)",
			material.ID, businessID, material.Quantity, material.MinThreshold)
		return n.store.RaiseAlert(ctx, &models.StockAlert{
			BusinessID: businessID,
			MaterialID: material.ID,
			Quantity:   material.Quantity,
			Threshold:  material.MinThreshold,
			RaisedAt:   now,
		})
	}

	if active == nil {
		return nil
	}
	zap.S().Infof("Resolving low stock alert for material %s of business %s", material.ID, businessID)
	return n.store.ResolveAlert(ctx, businessID, material.ID, now)
}

func (n *Notifier) alertsEnabled(ctx context.Context, businessID string) bool {
	if value, found := n.settings.Get(businessID); found {
		return value.(bool)
	}
	business, err := n.store.GetBusiness(ctx, businessID)
	if err != nil {
		zap.S().Errorf("Failed to load alert settings for business %s: %s", businessID, err)
		return false
	}
	enabled := business != nil && business.LowStockAlertsEnabled
	n.settings.SetDefault(businessID, enabled)
	return enabled
}
