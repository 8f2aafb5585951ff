package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/helpers"
	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
)

const selectBusinessQuery = `SELECT id, name, currency, low_stock_alerts_enabled, created_at, updated_at FROM business WHERE id = \$1`
const selectActiveAlertQuery = `SELECT id, business_id, material_id, status, quantity, threshold, raised_at, resolved_at FROM stock_alert WHERE business_id = \$1 AND material_id = \$2 AND status = 'active'`

var businessRowColumns = []string{
	"id", "name", "currency", "low_stock_alerts_enabled", "created_at", "updated_at"}

var alertRowColumns = []string{
	"id", "business_id", "material_id", "status", "quantity", "threshold",
	"raised_at", "resolved_at"}

func createMockNotifier(t *testing.T) (*Notifier, pgxmock.PgxPoolIface) {
	helpers.InitTestLogging()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("Failed to create mock connection: %v", err)
	}
	return NewNotifier(&postgresql.Connection{Db: mock}), mock
}

func expectBusiness(mock pgxmock.PgxPoolIface, businessID string, alertsEnabled bool) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(selectBusinessQuery).
		WithArgs(businessID).
		WillReturnRows(mock.NewRows(businessRowColumns).
			AddRow(businessID, "Bakery", "EUR", alertsEnabled, now, now))
}

func TestQuantityChanged(t *testing.T) {
	notifier, mock := createMockNotifier(t)
	defer mock.Close()

	material := &models.Material{
		ID:           "mat-1",
		BusinessID:   "bakery",
		Name:         "Flour",
		Quantity:     1.5,
		MinThreshold: 2.0,
	}

	t.Run("raises below threshold", func(t *testing.T) {
		expectBusiness(mock, "bakery", true)
		mock.ExpectQuery(selectActiveAlertQuery).
			WithArgs("bakery", "mat-1").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec(`INSERT INTO stock_alert \(business_id, material_id, status, quantity, threshold, raised_at\) VALUES \(\$1, \$2, 'active', \$3, \$4, \$5\)`).
			WithArgs("bakery", "mat-1", 1.5, 2.0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		notifier.QuantityChanged(context.Background(), "bakery", material)
	})

	t.Run("resolves on recovery", func(t *testing.T) {
		// The alert toggle is cached, no second business lookup.
		raisedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		mock.ExpectQuery(selectActiveAlertQuery).
			WithArgs("bakery", "mat-1").
			WillReturnRows(mock.NewRows(alertRowColumns).
				AddRow(int64(1), "bakery", "mat-1", "active", 1.5, 2.0, raisedAt, nil))
		mock.ExpectExec(`UPDATE stock_alert SET status = 'resolved', resolved_at = \$1 WHERE business_id = \$2 AND material_id = \$3 AND status = 'active'`).
			WithArgs(pgxmock.AnyArg(), "bakery", "mat-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		recovered := *material
		recovered.Quantity = 10
		notifier.QuantityChanged(context.Background(), "bakery", &recovered)
	})

	t.Run("already alerted stays silent", func(t *testing.T) {
		raisedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		mock.ExpectQuery(selectActiveAlertQuery).
			WithArgs("bakery", "mat-1").
			WillReturnRows(mock.NewRows(alertRowColumns).
				AddRow(int64(1), "bakery", "mat-1", "active", 1.5, 2.0, raisedAt, nil))

		notifier.QuantityChanged(context.Background(), "bakery", material)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuantityChangedDisabled(t *testing.T) {
	notifier, mock := createMockNotifier(t)
	defer mock.Close()

	expectBusiness(mock, "quietshop", false)

	notifier.QuantityChanged(context.Background(), "quietshop", &models.Material{
		ID:           "mat-1",
		Quantity:     0,
		MinThreshold: 5,
	})

	// No alert queries when the business disabled low stock alerts.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuantityChangedNoThreshold(t *testing.T) {
	notifier, mock := createMockNotifier(t)
	defer mock.Close()

	expectBusiness(mock, "bakery", true)

	notifier.QuantityChanged(context.Background(), "bakery", &models.Material{
		ID:           "mat-1",
		Quantity:     0,
		MinThreshold: 0,
	})

	// Materials without a threshold never alert.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecheckAll(t *testing.T) {
	notifier, mock := createMockNotifier(t)
	defer mock.Close()

	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id FROM business ORDER BY id ASC`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("bakery"))
	expectBusiness(mock, "bakery", true)
	mock.ExpectQuery(`SELECT id, business_id, name, category, unit, quantity, min_threshold, created_at, updated_at FROM material WHERE business_id = \$1 ORDER BY name ASC`).
		WithArgs("bakery").
		WillReturnRows(mock.NewRows([]string{
			"id", "business_id", "name", "category", "unit", "quantity",
			"min_threshold", "created_at", "updated_at"}).
			AddRow("mat-1", "bakery", "Flour", "dry", "kg", 1.0, 2.0, createdAt, createdAt).
			AddRow("mat-2", "bakery", "Sugar", "dry", "kg", 9.0, 2.0, createdAt, createdAt))

	// mat-1 is below threshold with no alert yet, mat-2 recovered earlier.
	mock.ExpectQuery(selectActiveAlertQuery).
		WithArgs("bakery", "mat-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO stock_alert \(business_id, material_id, status, quantity, threshold, raised_at\) VALUES \(\$1, \$2, 'active', \$3, \$4, \$5\)`).
		WithArgs("bakery", "mat-1", 1.0, 2.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(selectActiveAlertQuery).
		WithArgs("bakery", "mat-2").
		WillReturnError(pgx.ErrNoRows)

	notifier.RecheckAll(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}
