// Package models holds the infra-facing persisted shapes: jobs, queue
// messages, and dead-letter entries.
package models

import "time"

// JobStatus enumerates lifecycle states persisted in Postgres.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusRetrying   JobStatus = "retrying"
	StatusComplete   JobStatus = "complete"
	StatusDLQ        JobStatus = "dlq"
)

// Job represents one review submission and its lifecycle state.
type Job struct {
	ID              string
	OwnerID         int64
	Fingerprint     string
	FileName        string
	FileContent     []byte
	Status          JobStatus
	Result          []byte // JSON-encoded review.Report, present iff Status == StatusComplete
	CacheHit        bool
	Attempts        int
	LastError       string
	DLQMessageID    string
	DLQMovedAt      *time.Time
	CreatedAt       time.Time
	CompletedAt     *time.Time
	ProcessingTimeMs int64
}

// JobSummary is the lightweight shape returned from history listings.
type JobSummary struct {
	ID               string
	FileName         string
	Status           JobStatus
	CacheHit         bool
	ProcessingTimeMs int64
	CreatedAt        time.Time
	IssuesFound      int
}

// AuditLog is a single lifecycle event row for a job.
type AuditLog struct {
	JobID     string
	Event     string
	Detail    string
	Recorded  time.Time
}
