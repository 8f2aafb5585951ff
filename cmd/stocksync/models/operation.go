package models

import (
	"time"

	"github.com/goccy/go-json"
)

type OperationType string

const (
	OperationAdjust OperationType = "adjust"
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

type EntityType string

const (
	EntityMaterial EntityType = "material"
	EntityBusiness EntityType = "business"
)

type OperationStatus string

const (
	StatusPending  OperationStatus = "pending"
	StatusApplied  OperationStatus = "applied"
	StatusConflict OperationStatus = "conflict"
	StatusFailed   OperationStatus = "failed"
)

type OperationSource string

const (
	SourceClient OperationSource = "client"
	SourceServer OperationSource = "server"
)

// Operation is one entry of the durable sync log. A record is written exactly
// once per unique (businessId, opId) and never changes afterwards; only the
// dedup and retention maintenance procedures may remove it.
type Operation struct {
	OpID            string          `json:"opId"`
	BusinessID      string          `json:"businessId"`
	UserID          string          `json:"userId,omitempty"`
	Type            OperationType   `json:"type"`
	EntityType      EntityType      `json:"entityType,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ClientTimestamp *time.Time      `json:"clientTimestamp,omitempty"`
	// AppliedAt is assigned by the server when the operation is processed and
	// is the ordering key for incremental pull. Never client-supplied.
	AppliedAt      time.Time       `json:"appliedAt"`
	Source         OperationSource `json:"source"`
	Status         OperationStatus `json:"status"`
	ConflictReason string          `json:"conflictReason,omitempty"`
	Error          string          `json:"error,omitempty"`
	MaterialID     string          `json:"materialId,omitempty"`
}

// ConflictRecord is a conflict log entry enriched for display.
type ConflictRecord struct {
	Operation
	MaterialName string `json:"materialName,omitempty"`
}
