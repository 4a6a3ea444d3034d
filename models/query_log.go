package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueryLogKind distinguishes the entries of the query log
type QueryLogKind string

const (
	QueryLogKindQuery    QueryLogKind = "query"
	QueryLogKindResponse QueryLogKind = "response"
	QueryLogKindError    QueryLogKind = "error"
)

// QueryLogEntry is one append-only record of the query log
type QueryLogEntry struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Kind      QueryLogKind    `json:"kind" db:"kind"`
	SessionID string          `json:"sessionId" db:"session_id"`
	Query     string          `json:"query,omitempty" db:"query"`
	Response  json.RawMessage `json:"response,omitempty" db:"response"`
	LatencyMs *int64          `json:"latencyMs,omitempty" db:"latency_ms"`
	Error     string          `json:"error,omitempty" db:"error_message"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the QueryLogEntry model
func (QueryLogEntry) TableName() string {
	return "query_logs"
}

// NewQueryLogEntry creates an entry stamped with the current time
func NewQueryLogEntry(kind QueryLogKind, sessionID string) *QueryLogEntry {
	return &QueryLogEntry{
		ID:        uuid.New(),
		Kind:      kind,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}
}
