package model

import "time"

// Suburb is one catalog suburb and its discovery progress.
type Suburb struct {
	ID            int64        `json:"id"`
	SuburbID      string       `json:"suburb_id"`
	Name          string       `json:"suburb_name"`
	State         string       `json:"state"`
	Postcode      string       `json:"postcode,omitempty"`
	Slug          string       `json:"slug"`
	PriorityTier  int          `json:"priority_tier"`
	Region        string       `json:"region,omitempty"`
	Status        ScrapeStatus `json:"status"`
	AgenciesFound int          `json:"agencies_found"`
	AgentsFound   int          `json:"agents_found"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	RetryCount    int          `json:"retry_count"`
}

// SuburbUpdate is a partial update of a suburb's progress columns. Nil
// fields are left untouched; a non-nil empty ErrorMessage clears the error.
type SuburbUpdate struct {
	Status         *ScrapeStatus
	StartedAt      *time.Time
	CompletedAt    *time.Time
	ErrorMessage   *string
	AgenciesFound  *int
	AgentsFound    *int
	IncrementRetry bool
}

// Empty reports whether the update would change nothing.
func (u SuburbUpdate) Empty() bool {
	return u.Status == nil && u.StartedAt == nil && u.CompletedAt == nil &&
		u.ErrorMessage == nil && u.AgenciesFound == nil && u.AgentsFound == nil && !u.IncrementRetry
}
