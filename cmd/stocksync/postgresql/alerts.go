package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/jackc/pgx/v5"
)

// GetActiveAlert returns the active low-stock alert of a material, or nil.
// At most one active alert exists per material.
func (c *Connection) GetActiveAlert(ctx context.Context, businessID string, materialID string) (*models.StockAlert, error) {
	query := `SELECT id, business_id, material_id, status, quantity, threshold, raised_at, resolved_at FROM stock_alert WHERE business_id = $1 AND material_id = $2 AND status = 'active'`

	row := c.Db.QueryRow(ctx, query, businessID, materialID)
	var alert models.StockAlert
	err := row.Scan(
		&alert.ID, &alert.BusinessID, &alert.MaterialID, &alert.Status,
		&alert.Quantity, &alert.Threshold, &alert.RaisedAt, &alert.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (c *Connection) RaiseAlert(ctx context.Context, alert *models.StockAlert) error {
	query := `INSERT INTO stock_alert (business_id, material_id, status, quantity, threshold, raised_at) VALUES ($1, $2, 'active', $3, $4, $5)`

	_, err := c.Db.Exec(ctx, query,
		alert.BusinessID, alert.MaterialID, alert.Quantity, alert.Threshold, alert.RaisedAt)
	return err
}

func (c *Connection) ResolveAlert(ctx context.Context, businessID string, materialID string, resolvedAt time.Time) error {
	query := `UPDATE stock_alert SET status = 'resolved', resolved_at = $1 WHERE business_id = $2 AND material_id = $3 AND status = 'active'`

	_, err := c.Db.Exec(ctx, query, resolvedAt, businessID, materialID)
	return err
}

// ListActiveAlerts returns all active alerts of a business, newest first.
func (c *Connection) ListActiveAlerts(ctx context.Context, businessID string) ([]models.StockAlert, error) {
	query := `SELECT id, business_id, material_id, status, quantity, threshold, raised_at, resolved_at FROM stock_alert WHERE business_id = $1 AND status = 'active' ORDER BY raised_at DESC`

	rows, err := c.Db.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.StockAlert
	for rows.Next() {
		var alert models.StockAlert
		err = rows.Scan(
			&alert.ID, &alert.BusinessID, &alert.MaterialID, &alert.Status,
			&alert.Quantity, &alert.Threshold, &alert.RaisedAt, &alert.ResolvedAt)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
