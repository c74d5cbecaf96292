// Package submission implements the Submission Service: the
// application-facing surface that composes the Hasher, Result Cache,
// Job Store, and Job Queue into submit/status/history operations.
package submission

import (
	"context"
	"errors"
	"fmt"

	"codereviewsvc/internal/cache"
	"codereviewsvc/internal/hash"
	"codereviewsvc/internal/models"
	"codereviewsvc/internal/queue"
	"codereviewsvc/internal/store"
	"codereviewsvc/pkg/review"
)

// ErrInvalidInput is returned for submissions that fail validation.
var ErrInvalidInput = errors.New("invalid input")

const defaultHistoryLimit = 50

// Options configures submission-time validation.
type Options struct {
	MaxContentBytes int // 0 means no ceiling
}

// Service composes the Hasher + Cache + Store + Queue, the same
// pieces the API layer wires together, but kept independent of HTTP
// transport so it can be unit tested directly.
type Service struct {
	cache cache.Cache
	store store.Store
	queue queue.Queue
	opts  Options
}

func New(c cache.Cache, s store.Store, q queue.Queue, opts Options) *Service {
	return &Service{cache: c, store: s, queue: q, opts: opts}
}

// SubmitResult is the outcome of a submit call.
type SubmitResult struct {
	JobID    string
	Status   models.JobStatus
	CacheHit bool
	Result   *review.Report
}

// Submit hashes the content, probes the cache, and either returns a
// synchronously completed job (cache hit) or enqueues a new job for
// the Worker to process (cache miss). The cache-hit path writes the
// job record before returning so that a subsequent status poll always
// observes a consistent view (spec §4.6).
func (s *Service) Submit(ctx context.Context, fileName string, content []byte, ownerID int64) (SubmitResult, error) {
	if len(content) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
	}
	if s.opts.MaxContentBytes > 0 && len(content) > s.opts.MaxContentBytes {
		return SubmitResult{}, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidInput, s.opts.MaxContentBytes)
	}

	fingerprint := hash.Fingerprint(content)

	if report, hit := s.cache.Get(ctx, fingerprint); hit {
		job, err := s.store.Create(ctx, store.CreateParams{
			OwnerID:     ownerID,
			Fingerprint: fingerprint,
			FileName:    fileName,
			FileContent: content,
			Status:      models.StatusComplete,
			Result:      report,
		})
		if err != nil {
			return SubmitResult{}, fmt.Errorf("recording cache-hit job: %w", err)
		}
		_ = s.store.AppendAudit(ctx, job.ID, "cache_hit", fingerprint)
		return SubmitResult{JobID: job.ID, Status: job.Status, CacheHit: true, Result: report}, nil
	}

	job, err := s.store.Create(ctx, store.CreateParams{
		OwnerID:     ownerID,
		Fingerprint: fingerprint,
		FileName:    fileName,
		FileContent: content,
		Status:      models.StatusQueued,
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("creating job: %w", err)
	}

	_, err = s.queue.Enqueue(ctx, models.MessageBody{
		JobID:       job.ID,
		Fingerprint: fingerprint,
		FileName:    fileName,
		FileContent: content,
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("enqueueing job: %w", err)
	}
	_ = s.store.AppendAudit(ctx, job.ID, "queued", fingerprint)

	return SubmitResult{JobID: job.ID, Status: job.Status, CacheHit: false}, nil
}

// Status is a read-through lookup of a job's current state.
func (s *Service) Status(ctx context.Context, jobID string) (models.Job, error) {
	return s.store.Get(ctx, jobID)
}

// History returns the owner's most recent submissions, newest first,
// clamped to defaultHistoryLimit.
func (s *Service) History(ctx context.Context, ownerID int64, limit int) ([]models.JobSummary, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.store.History(ctx, ownerID, limit)
}
