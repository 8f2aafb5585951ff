package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const operationColumns = `op_id, business_id, user_id, op_type, entity_type, payload, client_timestamp, applied_at, source, status, conflict_reason, error, material_id`

// GetOperation looks up one sync log entry by its idempotency key. Returns
// nil without error when no record exists.
func (c *Connection) GetOperation(ctx context.Context, businessID string, opID string) (*models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM sync_operation WHERE business_id = $1 AND op_id = $2`

	row := c.Db.QueryRow(ctx, query, businessID, opID)
	op, err := scanOperation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// InsertOperation appends one record to the sync log. The unique index on
// (business_id, op_id) makes a concurrent identical submission lose the
// insert; the caller then fetches and returns the winning record instead of
// applying twice. Returns false when the insert lost.
func (c *Connection) InsertOperation(ctx context.Context, op *models.Operation) (bool, error) {
	query := `INSERT INTO sync_operation (` + operationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (business_id, op_id) DO NOTHING`

	tag, err := c.Db.Exec(ctx, query,
		op.OpID, op.BusinessID, op.UserID, string(op.Type), string(op.EntityType),
		[]byte(op.Payload), op.ClientTimestamp, op.AppliedAt, string(op.Source),
		string(op.Status), op.ConflictReason, op.Error, op.MaterialID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// OperationsSince returns all applied operations of a business strictly after
// the given cursor, ascending by applied_at. Conflicts and failures are not
// replayable and are excluded.
func (c *Connection) OperationsSince(ctx context.Context, businessID string, since time.Time) ([]models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM sync_operation WHERE business_id = $1 AND applied_at > $2 AND status = 'applied' ORDER BY applied_at ASC`

	rows, err := c.Db.Query(ctx, query, businessID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var operations []models.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		operations = append(operations, *op)
	}
	return operations, rows.Err()
}

// RecentConflicts returns the newest conflict records of a business, enriched
// with the affected material name for display.
func (c *Connection) RecentConflicts(ctx context.Context, businessID string, limit int) ([]models.ConflictRecord, error) {
	query := `SELECT o.op_id, o.business_id, o.user_id, o.op_type, o.entity_type, o.payload, o.client_timestamp, o.applied_at, o.source, o.status, o.conflict_reason, o.error, o.material_id, COALESCE(m.name, '') FROM sync_operation o LEFT JOIN material m ON m.business_id = o.business_id AND m.id = o.material_id WHERE o.business_id = $1 AND o.status = 'conflict' ORDER BY o.applied_at DESC LIMIT $2`

	rows, err := c.Db.Query(ctx, query, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []models.ConflictRecord
	for rows.Next() {
		var record models.ConflictRecord
		var payload []byte
		var opType, entityType, source, status string
		err = rows.Scan(
			&record.OpID, &record.BusinessID, &record.UserID, &opType,
			&entityType, &payload, &record.ClientTimestamp, &record.AppliedAt,
			&source, &status, &record.ConflictReason, &record.Error,
			&record.MaterialID, &record.MaterialName)
		if err != nil {
			return nil, err
		}
		record.Type = models.OperationType(opType)
		record.EntityType = models.EntityType(entityType)
		record.Source = models.OperationSource(source)
		record.Status = models.OperationStatus(status)
		record.Payload = payload
		conflicts = append(conflicts, record)
	}
	return conflicts, rows.Err()
}

// DeduplicateOperations removes all but the oldest record of every duplicated
// opId group. The unique index prevents new duplicates; this repairs rows
// that predate it.
func (c *Connection) DeduplicateOperations(ctx context.Context, businessID string) (int64, error) {
	query := `DELETE FROM sync_operation a USING sync_operation b WHERE a.business_id = $1 AND b.business_id = a.business_id AND a.op_id = b.op_id AND a.id > b.id`

	tag, err := c.Db.Exec(ctx, query, businessID)
	if err != nil {
		return 0, err
	}
	removed := tag.RowsAffected()
	if removed > 0 {
		zap.S().Warnf("Removed %d duplicated sync operations for business %s", removed, businessID)
	}
	return removed, nil
}

// CleanupOperations deletes all records applied before the cutoff. Pure log
// compaction; entity state is untouched.
func (c *Connection) CleanupOperations(ctx context.Context, businessID string, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_operation WHERE business_id = $1 AND applied_at < $2`

	tag, err := c.Db.Exec(ctx, query, businessID, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanOperation(row pgx.Row) (*models.Operation, error) {
	var op models.Operation
	var payload []byte
	var opType, entityType, source, status string
	err := row.Scan(
		&op.OpID, &op.BusinessID, &op.UserID, &opType, &entityType,
		&payload, &op.ClientTimestamp, &op.AppliedAt, &source, &status,
		&op.ConflictReason, &op.Error, &op.MaterialID)
	if err != nil {
		return nil, err
	}
	op.Type = models.OperationType(opType)
	op.EntityType = models.EntityType(entityType)
	op.Source = models.OperationSource(source)
	op.Status = models.OperationStatus(status)
	op.Payload = payload
	return &op, nil
}
