package journal

import (
	"encoding/json"
	"time"
)

// Kind identifies which operation produced an entry.
type Kind string

const (
	KindBatchFilter  Kind = "batch_filter"
	KindSingleFilter Kind = "single_filter"
	KindUpload       Kind = "upload"
	KindBatchUpload  Kind = "batch_upload"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Entry is one recorded submission.
type Entry struct {
	ID             string
	Kind           Kind
	Status         Status
	Files          []string
	Filters        json.RawMessage
	DisplayFields  []string
	MinMatchMonths int
	Message        string
	ResultShape    string
	TotalCount     *int64
	MatchedCount   *int64
	FilterRate     string
	DownloadURL    string
	CreatedAt      time.Time
	FinishedAt     *time.Time
}

// Outcome closes a running entry.
type Outcome struct {
	Status       Status
	Message      string
	ResultShape  string
	TotalCount   *int64
	MatchedCount *int64
	FilterRate   string
	DownloadURL  string
}

// Duration returns how long the entry ran, or zero while it is running.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(e.CreatedAt)
}
