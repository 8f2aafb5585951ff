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

const materialColumns = `id, business_id, name, category, unit, quantity, min_threshold, created_at, updated_at`

// GetMaterial returns one material scoped to a business, or nil when no such
// record exists.
func (c *Connection) GetMaterial(ctx context.Context, businessID string, id string) (*models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM material WHERE business_id = $1 AND id = $2`

	row := c.Db.QueryRow(ctx, query, businessID, id)
	material, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return material, nil
}

// ListMaterials returns all materials of a business, alphabetically.
func (c *Connection) ListMaterials(ctx context.Context, businessID string) ([]models.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM material WHERE business_id = $1 ORDER BY name ASC`

	rows, err := c.Db.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []models.Material
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, *material)
	}
	return materials, rows.Err()
}

func (c *Connection) InsertMaterial(ctx context.Context, material *models.Material) error {
	query := `INSERT INTO material (` + materialColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := c.Db.Exec(ctx, query,
		material.ID, material.BusinessID, material.Name, material.Category,
		material.Unit, material.Quantity, material.MinThreshold,
		material.CreatedAt, material.UpdatedAt)
	return err
}

// UpdateMaterialQuantity writes a new quantity with an explicit
// compare-and-swap on updated_at. Returns false when the record changed since
// it was read (or vanished); the caller decides whether to retry or fail.
func (c *Connection) UpdateMaterialQuantity(ctx context.Context, businessID string, id string, quantity float64, expectedUpdatedAt time.Time, now time.Time) (bool, error) {
	query := `UPDATE material SET quantity = $1, updated_at = $2 WHERE business_id = $3 AND id = $4 AND updated_at = $5`

	tag, err := c.Db.Exec(ctx, query, quantity, now, businessID, id, expectedUpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateMaterialFields merges the non-nil payload fields into the record,
// compare-and-swap on updated_at like UpdateMaterialQuantity.
func (c *Connection) UpdateMaterialFields(ctx context.Context, businessID string, payload *models.MaterialUpdatePayload, expectedUpdatedAt time.Time, now time.Time) (bool, error) {
	assignments := []string{"updated_at = $1"}
	args := []interface{}{now}

	appendField := func(column string, value interface{}) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if payload.Name != nil {
		appendField("name", *payload.Name)
	}
	if payload.Category != nil {
		appendField("category", *payload.Category)
	}
	if payload.Unit != nil {
		appendField("unit", *payload.Unit)
	}
	if payload.Quantity != nil {
		appendField("quantity", *payload.Quantity)
	}
	if payload.MinThreshold != nil {
		appendField("min_threshold", *payload.MinThreshold)
	}

	args = append(args, businessID)
	businessArg := len(args)
	args = append(args, payload.ID)
	idArg := len(args)
	args = append(args, expectedUpdatedAt)
	updatedAtArg := len(args)

	query := fmt.Sprintf(
		`UPDATE material SET %s WHERE business_id = $%d AND id = $%d AND updated_at = $%d`,
		strings.Join(assignments, ", "), businessArg, idArg, updatedAtArg)

	tag, err := c.Db.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteMaterial removes a material. Returns false when the record did not
// exist, which deletion treats as already satisfied.
func (c *Connection) DeleteMaterial(ctx context.Context, businessID string, id string) (bool, error) {
	query := `DELETE FROM material WHERE business_id = $1 AND id = $2`

	tag, err := c.Db.Exec(ctx, query, businessID, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanMaterial(row pgx.Row) (*models.Material, error) {
	var material models.Material
	err := row.Scan(
		&material.ID, &material.BusinessID, &material.Name, &material.Category,
		&material.Unit, &material.Quantity, &material.MinThreshold,
		&material.CreatedAt, &material.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &material, nil
}
