package postgresql

import (
	"context"

	"github.com/craftstock/craftstock/cmd/stocksync/models"
)

// InsertInventoryEvent appends one audit entry of a quantity change. The
// event log is append-only; nothing in the service updates or deletes it.
func (c *Connection) InsertInventoryEvent(ctx context.Context, event *models.InventoryEvent) error {
	query := `INSERT INTO inventory_event (business_id, material_id, user_id, delta, quantity_after, action, reason, op_id, timestamp) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := c.Db.Exec(ctx, query,
		event.BusinessID, event.MaterialID, event.UserID, event.Delta,
		event.QuantityAfter, event.Action, event.Reason, event.OpID, event.Timestamp)
	return err
}

// MaterialEvents returns the audit trail of one material, newest first.
func (c *Connection) MaterialEvents(ctx context.Context, businessID string, materialID string, limit int) ([]models.InventoryEvent, error) {
	query := `SELECT business_id, material_id, user_id, delta, quantity_after, action, reason, op_id, timestamp FROM inventory_event WHERE business_id = $1 AND material_id = $2 ORDER BY timestamp DESC LIMIT $3`

	rows, err := c.Db.Query(ctx, query, businessID, materialID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.InventoryEvent
	for rows.Next() {
		var event models.InventoryEvent
		err = rows.Scan(
			&event.BusinessID, &event.MaterialID, &event.UserID, &event.Delta,
			&event.QuantityAfter, &event.Action, &event.Reason, &event.OpID,
			&event.Timestamp)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
