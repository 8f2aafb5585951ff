package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/jackc/pgx/v5"
)

const businessColumns = `id, name, currency, low_stock_alerts_enabled, created_at, updated_at`

// GetBusiness returns the tenant record, or nil when it does not exist.
func (c *Connection) GetBusiness(ctx context.Context, businessID string) (*models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM business WHERE id = $1`

	row := c.Db.QueryRow(ctx, query, businessID)
	var business models.Business
	err := row.Scan(
		&business.ID, &business.Name, &business.Currency,
		&business.LowStockAlertsEnabled, &business.CreatedAt, &business.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &business, nil
}

// ListBusinessIDs returns every tenant id. Used only by the maintenance
// scheduler; request handling is always scoped to one tenant.
func (c *Connection) ListBusinessIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM business ORDER BY id ASC`

	rows, err := c.Db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateBusinessFields merges the non-nil payload fields into the tenant
// record with a compare-and-swap on updated_at.
func (c *Connection) UpdateBusinessFields(ctx context.Context, payload *models.BusinessUpdatePayload, expectedUpdatedAt time.Time, now time.Time) (bool, error) {
	assignments := []string{"updated_at = $1"}
	args := []interface{}{now}

	appendField := func(column string, value interface{}) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if payload.Name != nil {
		appendField("name", *payload.Name)
	}
	if payload.Currency != nil {
		appendField("currency", *payload.Currency)
	}
	if payload.LowStockAlertsEnabled != nil {
		appendField("low_stock_alerts_enabled", *payload.LowStockAlertsEnabled)
	}

	args = append(args, payload.ID)
	idArg := len(args)
	args = append(args, expectedUpdatedAt)
	updatedAtArg := len(args)

	query := fmt.Sprintf(
		`UPDATE business SET %s WHERE id = $%d AND updated_at = $%d`,
		strings.Join(assignments, ", "), idArg, updatedAtArg)

	tag, err := c.Db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
