package reconciler

import (
	"context"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/craftstock/craftstock/cmd/stocksync/postgresql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var operationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "stocksync_operations_processed_total",
	Help: "Sync operations processed, by operation type and terminal status",
}, []string{"type", "status"})

var operationsReplayed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stocksync_operations_replayed_total",
	Help: "Sync operations answered from the log without re-applying",
})

// Notifier is invoked after every committed quantity change. Implementations
// must not return errors into the sync path; delivery problems are their own
// concern.
type Notifier interface {
	QuantityChanged(ctx context.Context, businessID string, material *models.Material)
}

// Service is the sync reconciliation engine. It applies client operation
// batches exactly once against the entity store, records every attempt in the
// durable operation log and serves the log back as an incremental feed.
type Service struct {
	store    *postgresql.Connection
	notifier Notifier
	// locks serializes concurrent identical submissions of one (business, opId)
	// inside this process. Across processes the unique index on the log closes
	// the race, see InsertOperation.
	locks *mapmutex.Mutex
}

func NewService(store *postgresql.Connection, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		locks:    mapmutex.NewCustomizedMapMutex(800, 100000000, 10, 1.1, 0.2),
	}
}

// ApplyOperations processes a push batch strictly in order. Operations are
// independent: one failing never aborts its siblings. The result list maps
// 1:1 to the input by opId.
func (s *Service) ApplyOperations(ctx context.Context, businessID string, userID string, operations []models.ClientOperation) []models.AppliedOperation {
	results := make([]models.AppliedOperation, 0, len(operations))
	for i := range operations {
		results = append(results, s.applyOperation(ctx, businessID, userID, &operations[i]))
	}
	return results
}

func (s *Service) applyOperation(ctx context.Context, businessID string, userID string, op *models.ClientOperation) models.AppliedOperation {
	if op.OpID == "" {
		// Without an idempotency key there is nothing to record against.
		return models.AppliedOperation{
			Status:    models.StatusFailed,
			AppliedAt: time.Now().UTC(),
			Error:     "opId is required",
		}
	}

	lockKey := businessID + "*" + op.OpID
	if !s.locks.TryLock(lockKey) {
		zap.S().Warnf("Concurrent submission of operation %s for business %s", op.OpID, businessID)
		return models.AppliedOperation{
			OpID:      op.OpID,
			Status:    models.StatusFailed,
			AppliedAt: time.Now().UTC(),
			Error:     "operation is currently being processed, retry",
		}
	}
	defer s.locks.Unlock(lockKey)

	existing, err := s.store.GetOperation(ctx, businessID, op.OpID)
	if err != nil {
		zap.S().Errorf("Failed to look up operation %s: %s", op.OpID, err)
		return models.AppliedOperation{
			OpID:      op.OpID,
			Status:    models.StatusFailed,
			AppliedAt: time.Now().UTC(),
			Error:     err.Error(),
		}
	}
	if existing != nil {
		// Idempotent replay: the stored outcome is returned verbatim, even if
		// it was a conflict or failure. The entity is never mutated again.
		zap.S().Debugf("Replaying operation %s for business %s", op.OpID, businessID)
		operationsReplayed.Inc()
		return replayOutcome(existing)
	}

	appliedAt := time.Now().UTC()
	switch op.Type {
	case models.OperationAdjust:
		return s.applyAdjust(ctx, businessID, userID, op, appliedAt)
	case models.OperationCreate:
		return s.applyCreate(ctx, businessID, userID, op, appliedAt)
	case models.OperationUpdate:
		return s.applyUpdate(ctx, businessID, userID, op, appliedAt)
	case models.OperationDelete:
		return s.applyDelete(ctx, businessID, userID, op, appliedAt)
	default:
		return s.recordFailure(ctx, businessID, userID, op, appliedAt,
			"unsupported operation type: "+string(op.Type), "")
	}
}

// Pull returns all applied operations of a business strictly after since,
// ascending by appliedAt.
func (s *Service) Pull(ctx context.Context, businessID string, since time.Time) ([]models.Operation, error) {
	return s.store.OperationsSince(ctx, businessID, since)
}

// Conflicts returns the newest conflict log entries.
func (s *Service) Conflicts(ctx context.Context, businessID string, limit int) ([]models.ConflictRecord, error) {
	return s.store.RecentConflicts(ctx, businessID, limit)
}

// Deduplicate collapses duplicated opId groups to a single record.
func (s *Service) Deduplicate(ctx context.Context, businessID string) (int64, error) {
	return s.store.DeduplicateOperations(ctx, businessID)
}

// Cleanup deletes operation records applied more than the given number of
// days ago.
func (s *Service) Cleanup(ctx context.Context, businessID string, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	return s.store.CleanupOperations(ctx, businessID, cutoff)
}

// finish persists the operation record and maps it to the outcome returned to
// the client. When the insert loses against a concurrent identical submission
// the winning record's outcome is returned instead; the log stays free of
// duplicates.
func (s *Service) finish(ctx context.Context, record *models.Operation, serverData []byte) models.AppliedOperation {
	inserted, err := s.store.InsertOperation(ctx, record)
	if err != nil {
		zap.S().Errorf("Failed to persist operation %s: %s", record.OpID, err)
		return models.AppliedOperation{
			OpID:      record.OpID,
			Status:    models.StatusFailed,
			AppliedAt: record.AppliedAt,
			Error:     err.Error(),
		}
	}
	if !inserted {
		zap.S().Warnf("Operation %s lost the insert race, returning the recorded outcome", record.OpID)
		existing, err := s.store.GetOperation(ctx, record.BusinessID, record.OpID)
		if err == nil && existing != nil {
			return replayOutcome(existing)
		}
		if err != nil {
			zap.S().Errorf("Failed to fetch winning operation %s: %s", record.OpID, err)
		}
	}
	operationsProcessed.WithLabelValues(string(record.Type), string(record.Status)).Inc()

	return models.AppliedOperation{
		OpID:           record.OpID,
		Status:         record.Status,
		AppliedAt:      record.AppliedAt,
		ServerData:     serverData,
		Error:          record.Error,
		ConflictReason: record.ConflictReason,
	}
}

func (s *Service) recordFailure(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time, message string, materialID string) models.AppliedOperation {
	zap.S().Infof("Operation %s failed for business %s: %s", op.OpID, businessID, message)
	record := newRecord(businessID, userID, op, appliedAt)
	record.Status = models.StatusFailed
	record.Error = message
	record.MaterialID = materialID
	return s.finish(ctx, record, nil)
}

func (s *Service) recordConflict(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time, reason string, materialID string, serverData []byte) models.AppliedOperation {
	zap.S().Infof("Operation %s conflicted for business %s: %s", op.OpID, businessID, reason)
	record := newRecord(businessID, userID, op, appliedAt)
	record.Status = models.StatusConflict
	record.ConflictReason = reason
	record.MaterialID = materialID
	return s.finish(ctx, record, serverData)
}

func (s *Service) recordApplied(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time, materialID string, serverData []byte) models.AppliedOperation {
	record := newRecord(businessID, userID, op, appliedAt)
	record.Status = models.StatusApplied
	record.MaterialID = materialID
	return s.finish(ctx, record, serverData)
}

func newRecord(businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) *models.Operation {
	return &models.Operation{
		OpID:            op.OpID,
		BusinessID:      businessID,
		UserID:          userID,
		Type:            op.Type,
		EntityType:      op.EntityType,
		Payload:         op.Payload,
		ClientTimestamp: op.ClientTimestamp,
		AppliedAt:       appliedAt,
		Source:          models.SourceClient,
		Status:          models.StatusPending,
	}
}

func replayOutcome(record *models.Operation) models.AppliedOperation {
	return models.AppliedOperation{
		OpID:           record.OpID,
		Status:         record.Status,
		AppliedAt:      record.AppliedAt,
		ServerData:     record.Payload,
		Error:          record.Error,
		ConflictReason: record.ConflictReason,
	}
}
