package models

import (
	"time"

	"github.com/goccy/go-json"
)

// ClientOperation is one mutation attempt submitted by a client.
type ClientOperation struct {
	OpID            string          `json:"opId" binding:"required"`
	Type            OperationType   `json:"type" binding:"required"`
	EntityType      EntityType      `json:"entityType"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp *time.Time      `json:"clientTimestamp"`
}

// AppliedOperation is the per-operation outcome returned on push. For a
// replayed opId it carries the stored outcome verbatim.
type AppliedOperation struct {
	OpID           string          `json:"opId"`
	Status         OperationStatus `json:"status"`
	AppliedAt      time.Time       `json:"appliedAt"`
	ServerData     json.RawMessage `json:"serverData,omitempty"`
	Error          string          `json:"error,omitempty"`
	ConflictReason string          `json:"conflictReason,omitempty"`
}

type PushRequest struct {
	Operations []ClientOperation `json:"operations" binding:"required"`
}

type PushResponse struct {
	ServerTime time.Time          `json:"serverTime"`
	Results    []AppliedOperation `json:"results"`
	Message    string             `json:"message"`
}

type PullResponse struct {
	ServerTime time.Time   `json:"serverTime"`
	Operations []Operation `json:"operations"`
	Count      int         `json:"count"`
}

type ConflictsResponse struct {
	Conflicts []ConflictRecord `json:"conflicts"`
	Count     int              `json:"count"`
}

type MaintenanceResponse struct {
	Message      string `json:"message"`
	RemovedCount int64  `json:"removedCount"`
}

type SyncStatusResponse struct {
	ServerTime time.Time `json:"serverTime"`
	BusinessID string    `json:"businessId"`
	UserID     string    `json:"userId"`
	Message    string    `json:"message"`
}
