package offline

import (
	"encoding/json"
	"time"
)

type EntryType string

const (
	TypeSubmission   EntryType = "submission"
	TypeStatusUpdate EntryType = "status_update"
)

type EntryState string

const (
	StatePending EntryState = "pending"
	StateSyncing EntryState = "syncing"
	StateSynced  EntryState = "synced"
	StateFailed  EntryState = "failed"
)

// Entry is one queued outgoing request. LocalID is generated once at enqueue
// time and never changes across retries: it is the idempotency key the
// backend deduplicates on.
type Entry struct {
	LocalID    string          `json:"local_id"`
	Type       EntryType       `json:"type"`
	OrderID    string          `json:"order_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	State      EntryState      `json:"state"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
