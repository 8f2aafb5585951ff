package postgresql

import (
	"context"
	"testing"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/helpers"
	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
)

const selectMaterialQuery = `SELECT id, business_id, name, category, unit, quantity, min_threshold, created_at, updated_at FROM material WHERE business_id = \$1 AND id = \$2`

var materialRowColumns = []string{
	"id", "business_id", "name", "category", "unit", "quantity",
	"min_threshold", "created_at", "updated_at"}

func TestGetMaterial(t *testing.T) {
	helpers.InitTestLogging()
	c := CreateMockConnection(t)
	defer c.Db.Close()

	mock, ok := c.Db.(pgxmock.PgxPoolIface)
	assert.True(t, ok)

	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(selectMaterialQuery).
			WithArgs("bakery", "mat-1").
			WillReturnRows(mock.NewRows(materialRowColumns).
				AddRow("mat-1", "bakery", "Flour", "dry", "kg", 5.0, 2.0, createdAt, updatedAt))

		material, err := c.GetMaterial(context.Background(), "bakery", "mat-1")
		assert.NoError(t, err)
		assert.NotNil(t, material)
		assert.Equal(t, "Flour", material.Name)
		assert.Equal(t, 5.0, material.Quantity)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(selectMaterialQuery).
			WithArgs("bakery", "mat-unknown").
			WillReturnError(pgx.ErrNoRows)

		material, err := c.GetMaterial(context.Background(), "bakery", "mat-unknown")
		assert.NoError(t, err)
		assert.Nil(t, material)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMaterialQuantity(t *testing.T) {
	helpers.InitTestLogging()
	c := CreateMockConnection(t)
	defer c.Db.Close()

	mock, ok := c.Db.(pgxmock.PgxPoolIface)
	assert.True(t, ok)

	expected := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := expected.Add(1 * time.Minute)

	casQuery := `UPDATE material SET quantity = \$1, updated_at = \$2 WHERE business_id = \$3 AND id = \$4 AND updated_at = \$5`

	t.Run("swap succeeds", func(t *testing.T) {
		mock.ExpectExec(casQuery).
			WithArgs(2.0, now, "bakery", "mat-1", expected).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		swapped, err := c.UpdateMaterialQuantity(context.Background(), "bakery", "mat-1", 2.0, expected, now)
		assert.NoError(t, err)
		assert.True(t, swapped)
	})

	t.Run("swap misses on concurrent change", func(t *testing.T) {
		mock.ExpectExec(casQuery).
			WithArgs(2.0, now, "bakery", "mat-1", expected).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		swapped, err := c.UpdateMaterialQuantity(context.Background(), "bakery", "mat-1", 2.0, expected, now)
		assert.NoError(t, err)
		assert.False(t, swapped)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMaterialFields(t *testing.T) {
	helpers.InitTestLogging()
	c := CreateMockConnection(t)
	defer c.Db.Close()

	mock, ok := c.Db.(pgxmock.PgxPoolIface)
	assert.True(t, ok)

	expected := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := expected.Add(1 * time.Minute)

	name := "Whole Wheat Flour"
	quantity := 7.5
	payload := &models.MaterialUpdatePayload{
		ID:       "mat-1",
		Name:     &name,
		Quantity: &quantity,
	}

	// Placeholders follow the order the fields are appended in.
	mock.ExpectExec(`UPDATE material SET updated_at = \$1, name = \$2, quantity = \$3 WHERE business_id = \$4 AND id = \$5 AND updated_at = \$6`).
		WithArgs(now, name, quantity, "bakery", "mat-1", expected).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	swapped, err := c.UpdateMaterialFields(context.Background(), "bakery", payload, expected, now)
	assert.NoError(t, err)
	assert.True(t, swapped)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMaterial(t *testing.T) {
	helpers.InitTestLogging()
	c := CreateMockConnection(t)
	defer c.Db.Close()

	mock, ok := c.Db.(pgxmock.PgxPoolIface)
	assert.True(t, ok)

	deleteQuery := `DELETE FROM material WHERE business_id = \$1 AND id = \$2`

	t.Run("existing", func(t *testing.T) {
		mock.ExpectExec(deleteQuery).
			WithArgs("bakery", "mat-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		deleted, err := c.DeleteMaterial(context.Background(), "bakery", "mat-1")
		assert.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("already gone", func(t *testing.T) {
		mock.ExpectExec(deleteQuery).
			WithArgs("bakery", "mat-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		deleted, err := c.DeleteMaterial(context.Background(), "bakery", "mat-1")
		assert.NoError(t, err)
		assert.False(t, deleted)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
