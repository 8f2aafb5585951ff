package models

import (
	"errors"

	"github.com/goccy/go-json"
)

// Payload variants, one per (type, entityType) pair. Clients send free-form
// JSON; the handlers parse into the matching variant and reject missing
// required fields before touching any entity state.

// AdjustPayload changes a material quantity by a signed delta.
type AdjustPayload struct {
	MaterialID string   `json:"materialId"`
	Delta      *float64 `json:"delta"`
	Action     string   `json:"action"`
	Reason     string   `json:"reason"`
}

// MaterialCreatePayload creates a new material. Quantity defaults to zero.
type MaterialCreatePayload struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	MinThreshold float64 `json:"minThreshold"`
}

// MaterialUpdatePayload is a partial update; nil fields are left untouched.
type MaterialUpdatePayload struct {
	ID           string   `json:"_id"`
	Name         *string  `json:"name"`
	Category     *string  `json:"category"`
	Unit         *string  `json:"unit"`
	Quantity     *float64 `json:"quantity"`
	MinThreshold *float64 `json:"minThreshold"`
}

// BusinessUpdatePayload is a partial update of the tenant record itself.
type BusinessUpdatePayload struct {
	ID                    string  `json:"_id"`
	Name                  *string `json:"name"`
	Currency              *string `json:"currency"`
	LowStockAlertsEnabled *bool   `json:"lowStockAlertsEnabled"`
}

// DeletePayload removes a material by id.
type DeletePayload struct {
	ID string `json:"_id"`
}

func ParseAdjustPayload(value []byte) (*AdjustPayload, error) {
	var payload AdjustPayload
	err := json.Unmarshal(value, &payload)
	if err != nil {
		return nil, err
	}
	if payload.MaterialID == "" {
		return nil, errors.New("materialId is required")
	}
	if payload.Delta == nil {
		return nil, errors.New("delta is required")
	}
	return &payload, nil
}

func ParseMaterialCreatePayload(value []byte) (*MaterialCreatePayload, error) {
	var payload MaterialCreatePayload
	err := json.Unmarshal(value, &payload)
	if err != nil {
		return nil, err
	}
	if payload.Name == "" {
		return nil, errors.New("name is required")
	}
	return &payload, nil
}

func ParseMaterialUpdatePayload(value []byte) (*MaterialUpdatePayload, error) {
	var payload MaterialUpdatePayload
	err := json.Unmarshal(value, &payload)
	if err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, errors.New("_id is required")
	}
	return &payload, nil
}

func ParseBusinessUpdatePayload(value []byte) (*BusinessUpdatePayload, error) {
	var payload BusinessUpdatePayload
	err := json.Unmarshal(value, &payload)
	if err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, errors.New("_id is required")
	}
	return &payload, nil
}

func ParseDeletePayload(value []byte) (*DeletePayload, error) {
	var payload DeletePayload
	err := json.Unmarshal(value, &payload)
	if err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, errors.New("_id is required")
	}
	return &payload, nil
}
