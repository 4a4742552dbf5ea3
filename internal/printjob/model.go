package printjob

import "time"

type JobState string

const (
	StatePending   JobState = "pending"
	StateDelivered JobState = "delivered" // handed to a poll, not yet confirmed
	StateCompleted JobState = "completed"
	StateExpired   JobState = "expired"
)

// Job is one rendered receipt waiting to be pulled by a printer. The payload
// is opaque here; rendering happened upstream.
type Job struct {
	ID          string     `json:"id"`
	PrinterMAC  string     `json:"printer_mac"`
	Dialect     string     `json:"dialect"`
	Payload     []byte     `json:"payload"`
	State       JobState   `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Registration identifies a physical printer by its stable hardware address.
type Registration struct {
	MAC          string     `json:"mac"`
	Dialect      string     `json:"dialect"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastPollAt   *time.Time `json:"last_poll_at,omitempty"`
}

// Status is the operational snapshot for dashboards.
type Status struct {
	TotalJobs     int   `json:"total_jobs"`
	PendingJobs   int   `json:"pending_jobs"`
	DeliveredJobs int   `json:"delivered_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	ExpiredJobs   int64 `json:"expired_jobs"`

	RegisteredPrinters int `json:"registered_printers"`

	// Printers keyed by MAC with their last poll time.
	Printers []Registration `json:"printers"`

	// NeverPolled lists identities that have queued jobs but have never
	// polled: a misconfigured device, not an empty queue.
	NeverPolled []string `json:"never_polled,omitempty"`
}
