package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// File statuses recorded for ingested statement files.
const (
	FileProcessed = "processed"
	FileFailed    = "failed"
)

// ImportFile is the processing status of one statement file.
type ImportFile struct {
	Name      string
	Status    string
	Added     int
	Skipped   int
	Error     string
	Archived  string
	UpdatedAt time.Time
}

// ImportIssue is a row that ingestion skipped, kept for review.
type ImportIssue struct {
	ID          int64
	Date        string
	Description string
	Amount      decimal.Decimal
	Reason      string
	File        string
	CreatedAt   time.Time
}

// SyncLogEntry is one line of the sync and edit audit trail.
type SyncLogEntry struct {
	ID        int64
	Operation string
	RecordID  string
	Detail    string
	CreatedAt time.Time
}
