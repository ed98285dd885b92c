package db

import (
	"time"
)

type Webhook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Secret     string    `json:"secret,omitempty"`
	EventsJSON string    `json:"events_json"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryRecord is one completed job as it was when it left the engine.
type HistoryRecord struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id"`
	Type        string    `json:"type"`
	Priority    int       `json:"priority"`
	PrinterID   int64     `json:"printer_id"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type EventRecord struct {
	ID         int64     `json:"id"`
	Revision   uint64    `json:"revision"`
	Kind       string    `json:"kind"`
	JobID      string    `json:"job_id,omitempty"`
	PrinterID  int64     `json:"printer_id,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ArchiveRecord struct {
	ID          int64     `json:"id"`
	ArchiveFile string    `json:"archive_file"`
	TableName   string    `json:"table_name"`
	RowCount    int64     `json:"row_count"`
	ArchivedAt  time.Time `json:"archived_at"`
}

type HistoryFilter struct {
	Search    string
	PrinterID int64
	Limit     int
	Offset    int
}

type EventFilter struct {
	Kind   string
	JobID  string
	Limit  int
	Offset int
}
