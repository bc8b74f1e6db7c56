package models

import (
	"encoding/json"
	"time"
)

const (
	ChangeWrite  = "write"
	ChangeDelete = "delete"
)

// ChangeEvent is a write to a source collection, recorded in the same
// transaction as the write. Before is absent on create; After is absent on
// delete. Hard deletes carry neither snapshot.
type ChangeEvent struct {
	Collection string          `json:"collection"`
	DocumentID string          `json:"document_id"`
	Op         string          `json:"op"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
