// internal/model/outcome.go
package model

import "time"

// Delivery statuses for one attempted user.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusError   = "error"
	StatusDryRun  = "dry_run"
)

// SentRecord marks a user as already messaged in this campaign.
type SentRecord struct {
	Category Category  `json:"category"`
	SentAt   time.Time `json:"sentAt"`
}

// SendLogEntry is one row of the append-only send log. Never mutated
// after write.
type SendLogEntry struct {
	UserID    string    `json:"userId"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Category  Category  `json:"category"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunReport summarizes a single batch run.
type RunReport struct {
	RunID     string         `json:"run_id"`
	Category  Category       `json:"category,omitempty"`
	Sent      int            `json:"sent"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Outcomes  []SendLogEntry `json:"outcomes,omitempty"`
	Complete  bool           `json:"campaign_complete"`
	DryRun    bool           `json:"dry_run,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Error     string         `json:"error,omitempty"`
}

// CampaignStats are cumulative counters across batch runs in this process.
type CampaignStats struct {
	TotalSent    int `json:"totalSent"`
	TotalSkipped int `json:"totalSkipped"`
	TotalFailed  int `json:"totalFailed"`
	BatchesRun   int `json:"batchesRun"`
}

// CategoryBreakdown reports campaign progress for one category.
type CategoryBreakdown struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Remaining int `json:"remaining"`
}
