package reconciler

import (
	"context"
	"time"

	"github.com/craftstock/craftstock/cmd/stocksync/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// applyAdjust changes a material quantity by a signed delta. Driving the
// quantity below zero is a modeled conflict, not a failure: the entity stays
// untouched and the client gets the current server state to reconcile with.
func (s *Service) applyAdjust(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) models.AppliedOperation {
	payload, err := models.ParseAdjustPayload(op.Payload)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}

	material, err := s.store.GetMaterial(ctx, businessID, payload.MaterialID)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), payload.MaterialID)
	}
	if material == nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "material not found", payload.MaterialID)
	}

	newQuantity := material.Quantity + *payload.Delta
	if newQuantity < 0 {
		serverData, _ := json.Marshal(material)
		return s.recordConflict(ctx, businessID, userID, op, appliedAt,
			"Insufficient quantity", material.ID, serverData)
	}

	swapped, err := s.store.UpdateMaterialQuantity(ctx, businessID, material.ID, newQuantity, material.UpdatedAt, appliedAt)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), material.ID)
	}
	if !swapped {
		// The compare-and-swap missed: someone modified the record between our
		// read and write. The client retries with the same opId at no risk.
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "concurrent update, retry", material.ID)
	}

	err = s.store.InsertInventoryEvent(ctx, &models.InventoryEvent{
		BusinessID:    businessID,
		MaterialID:    material.ID,
		UserID:        userID,
		Delta:         *payload.Delta,
		QuantityAfter: newQuantity,
		Action:        payload.Action,
		Reason:        payload.Reason,
		OpID:          op.OpID,
		Timestamp:     appliedAt,
	})
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), material.ID)
	}

	material.Quantity = newQuantity
	material.UpdatedAt = appliedAt
	s.notifier.QuantityChanged(ctx, businessID, material)

	serverData, _ := json.Marshal(material)
	return s.recordApplied(ctx, businessID, userID, op, appliedAt, material.ID, serverData)
}

// applyCreate inserts a new material. Creation cannot conflict.
func (s *Service) applyCreate(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) models.AppliedOperation {
	if op.EntityType != models.EntityMaterial {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt,
			"create is not supported for entity type "+string(op.EntityType), "")
	}

	payload, err := models.ParseMaterialCreatePayload(op.Payload)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}

	material := &models.Material{
		ID:           uuid.NewString(),
		BusinessID:   businessID,
		Name:         payload.Name,
		Category:     payload.Category,
		Unit:         payload.Unit,
		Quantity:     payload.Quantity,
		MinThreshold: payload.MinThreshold,
		CreatedAt:    appliedAt,
		UpdatedAt:    appliedAt,
	}
	err = s.store.InsertMaterial(ctx, material)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}

	if material.Quantity > 0 {
		err = s.store.InsertInventoryEvent(ctx, &models.InventoryEvent{
			BusinessID:    businessID,
			MaterialID:    material.ID,
			UserID:        userID,
			Delta:         material.Quantity,
			QuantityAfter: material.Quantity,
			Action:        "initial stock",
			OpID:          op.OpID,
			Timestamp:     appliedAt,
		})
		if err != nil {
			return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), material.ID)
		}
	}

	s.notifier.QuantityChanged(ctx, businessID, material)

	serverData, _ := json.Marshal(material)
	return s.recordApplied(ctx, businessID, userID, op, appliedAt, material.ID, serverData)
}

// applyUpdate merges partial fields into a material or business record.
// Staleness is detected last-write-wins: when the record changed after the
// client's view (clientTimestamp), the whole update is rejected as a conflict
// and the current server record is returned. No field-level merge.
func (s *Service) applyUpdate(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) models.AppliedOperation {
	switch op.EntityType {
	case models.EntityMaterial:
		return s.applyMaterialUpdate(ctx, businessID, userID, op, appliedAt)
	case models.EntityBusiness:
		return s.applyBusinessUpdate(ctx, businessID, userID, op, appliedAt)
	default:
		return s.recordFailure(ctx, businessID, userID, op, appliedAt,
			"update is not supported for entity type "+string(op.EntityType), "")
	}
}

func (s *Service) applyMaterialUpdate(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) models.AppliedOperation {
	payload, err := models.ParseMaterialUpdatePayload(op.Payload)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}

	material, err := s.store.GetMaterial(ctx, businessID, payload.ID)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), payload.ID)
	}
	if material == nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "material not found", payload.ID)
	}

	if op.ClientTimestamp != nil && material.UpdatedAt.After(*op.ClientTimestamp) {
		serverData, _ := json.Marshal(material)
		return s.recordConflict(ctx, businessID, userID, op, appliedAt,
			"Server has newer data", material.ID, serverData)
	}

	swapped, err := s.store.UpdateMaterialFields(ctx, businessID, payload, material.UpdatedAt, appliedAt)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), material.ID)
	}
	if !swapped {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "concurrent update, retry", material.ID)
	}

	mergeMaterial(material, payload)
	material.UpdatedAt = appliedAt
	if payload.Quantity != nil || payload.MinThreshold != nil {
		s.notifier.QuantityChanged(ctx, businessID, material)
	}

	serverData, _ := json.Marshal(material)
	return s.recordApplied(ctx, businessID, userID, op, appliedAt, material.ID, serverData)
}

func (s *Service) applyBusinessUpdate(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) models.AppliedOperation {
	payload, err := models.ParseBusinessUpdatePayload(op.Payload)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}
	if payload.ID != businessID {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "business id does not match tenant scope", "")
	}

	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}
	if business == nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "business not found", "")
	}

	if op.ClientTimestamp != nil && business.UpdatedAt.After(*op.ClientTimestamp) {
		serverData, _ := json.Marshal(business)
		return s.recordConflict(ctx, businessID, userID, op, appliedAt,
			"Server has newer data", "", serverData)
	}

	swapped, err := s.store.UpdateBusinessFields(ctx, payload, business.UpdatedAt, appliedAt)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}
	if !swapped {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, "concurrent update, retry", "")
	}

	if payload.Name != nil {
		business.Name = *payload.Name
	}
	if payload.Currency != nil {
		business.Currency = *payload.Currency
	}
	if payload.LowStockAlertsEnabled != nil {
		business.LowStockAlertsEnabled = *payload.LowStockAlertsEnabled
	}
	business.UpdatedAt = appliedAt

	serverData, _ := json.Marshal(business)
	return s.recordApplied(ctx, businessID, userID, op, appliedAt, "", serverData)
}

// applyDelete removes a material. Deleting a record that is already gone is
// an idempotent success, never an error.
func (s *Service) applyDelete(ctx context.Context, businessID string, userID string, op *models.ClientOperation, appliedAt time.Time) models.AppliedOperation {
	if op.EntityType != models.EntityMaterial {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt,
			"delete is not supported for entity type "+string(op.EntityType), "")
	}

	payload, err := models.ParseDeletePayload(op.Payload)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), "")
	}

	deleted, err := s.store.DeleteMaterial(ctx, businessID, payload.ID)
	if err != nil {
		return s.recordFailure(ctx, businessID, userID, op, appliedAt, err.Error(), payload.ID)
	}
	if !deleted {
		zap.S().Debugf("Material %s already deleted for business %s", payload.ID, businessID)
	}

	return s.recordApplied(ctx, businessID, userID, op, appliedAt, payload.ID, nil)
}

func mergeMaterial(material *models.Material, payload *models.MaterialUpdatePayload) {
	if payload.Name != nil {
		material.Name = *payload.Name
	}
	if payload.Category != nil {
		material.Category = *payload.Category
	}
	if payload.Unit != nil {
		material.Unit = *payload.Unit
	}
	if payload.Quantity != nil {
		material.Quantity = *payload.Quantity
	}
	if payload.MinThreshold != nil {
		material.MinThreshold = *payload.MinThreshold
	}
}
