// Package store is the Job Store: the durable, single-source-of-truth
// mapping from job identifier to job record.
package store

import (
	"context"
	"errors"
	"time"

	"codereviewsvc/internal/models"
	"codereviewsvc/pkg/review"
)

// ErrNotFound is returned by Get for an unknown job.
var ErrNotFound = errors.New("job not found")

// CreateParams collects the inputs needed to insert a new job row.
type CreateParams struct {
	ID          string
	OwnerID     int64
	Fingerprint string
	FileName    string
	FileContent []byte
	Status      models.JobStatus
	Result      *review.Report // set when created directly as complete (cache hit)
}

// Store is the data-access interface consumed by the rest of the
// system. Each operation is atomic at row granularity.
type Store interface {
	Create(ctx context.Context, p CreateParams) (models.Job, error)
	MarkProcessing(ctx context.Context, id string, attempts int) error
	Complete(ctx context.Context, id string, report *review.Report, durationMs int64, attempts int) error
	MarkRetrying(ctx context.Context, id string, attempts int, lastError string) error
	MarkDLQ(ctx context.Context, id string, messageID string, lastError string) error
	Get(ctx context.Context, id string) (models.Job, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (models.Job, error)
	History(ctx context.Context, ownerID int64, limit int) ([]models.JobSummary, error)
	CountByStatusSince(ctx context.Context, status models.JobStatus, since time.Time) (int64, error)
	AppendAudit(ctx context.Context, jobID, event, detail string) error
}

// DLQStore persists dead-lettered messages, independent of Store so
// the DLQ Handler can depend on a narrower interface.
type DLQStore interface {
	// CreateEntry inserts a DLQ entry. Idempotent on MessageID: a
	// second insert for the same message_id is a no-op and returns
	// the existing row, matching spec §4.7/§4.8's "idempotent by
	// message_id" requirement for both the Worker's eager write and
	// the DLQ Handler's authoritative write.
	CreateEntry(ctx context.Context, entry models.DLQEntry) (models.DLQEntry, error)
	GetEntry(ctx context.Context, id string) (models.DLQEntry, error)
	List(ctx context.Context, resolved *bool) ([]models.DLQEntry, error)
	Stats(ctx context.Context) (models.DLQStats, error)
	Resolve(ctx context.Context, id, reason string) error
	IncrementRetry(ctx context.Context, id string) error
}
