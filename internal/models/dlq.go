package models

import "time"

// DLQEntry is a durable record of a message that exceeded its retry
// budget, kept for inspection and manual resolution.
type DLQEntry struct {
	ID               string
	JobID            string
	MessageID        string
	Body             MessageBody
	FinalReceiveCount int
	LastError        string
	MovedAt          time.Time
	RetryCount       int
	Resolved         bool
	ResolvedAt       *time.Time
	ResolutionReason string
}

// DLQStats summarizes the operational surface for GET /dlq/stats.
type DLQStats struct {
	Total           int
	Unresolved      int
	UniqueJobCount  int
	LatestMovedAt   *time.Time
	AverageRetries  float64
}
