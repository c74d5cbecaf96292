package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"codereviewsvc/internal/models"
	"codereviewsvc/pkg/review"
)

// PostgresStore wraps pgxpool for Postgres persistence.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Create inserts a job row. When p.Result is set, the row is created
// already complete — the cache-hit path (spec §4.6: "the job record
// [is written] before returning, so subsequent status polls observe a
// consistent view").
func (s *PostgresStore) Create(ctx context.Context, p CreateParams) (models.Job, error) {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	job := models.Job{
		ID:          id,
		OwnerID:     p.OwnerID,
		Fingerprint: p.Fingerprint,
		FileName:    p.FileName,
		FileContent: p.FileContent,
		Status:      p.Status,
		CreatedAt:   now,
		CacheHit:    p.Status == models.StatusComplete,
	}

	var resultJSON []byte
	if p.Result != nil {
		raw, err := json.Marshal(p.Result)
		if err != nil {
			return models.Job{}, fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = raw
		job.Result = raw
		job.CompletedAt = &now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_jobs (id, owner_id, code_hash, file_name, file_content, status, result, cache_hit, attempts, created_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $9)
	`, id, p.OwnerID, p.Fingerprint, p.FileName, p.FileContent, string(p.Status), resultJSON, job.CacheHit, now, job.CompletedAt)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// MarkProcessing transitions a job into processing, recording the
// attempt number (the queue's receive-count).
func (s *PostgresStore) MarkProcessing(ctx context.Context, id string, attempts int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE review_jobs SET status = $2, attempts = $3, updated_at = NOW()
		WHERE id = $1 AND status <> $4
	`, id, string(models.StatusProcessing), attempts, string(models.StatusComplete))
	return err
}

// Complete marks a job complete with its result. Guarded so that a
// redelivered message cannot overwrite an already-complete job
// (spec §5: "a transition from complete back to processing is
// forbidden").
func (s *PostgresStore) Complete(ctx context.Context, id string, report *review.Report, durationMs int64, attempts int) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		UPDATE review_jobs
		SET status = $2, result = $3, processing_time_ms = $4, attempts = $5, completed_at = $6, updated_at = $6, last_error = NULL
		WHERE id = $1 AND status <> $2
	`, id, string(models.StatusComplete), raw, durationMs, attempts, now)
	return err
}

// MarkRetrying records a failed attempt and leaves the job retryable.
func (s *PostgresStore) MarkRetrying(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE review_jobs SET status = $2, attempts = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status <> $5
	`, id, string(models.StatusRetrying), attempts, lastError, string(models.StatusComplete))
	return err
}

// MarkDLQ flags a job as dead-lettered.
func (s *PostgresStore) MarkDLQ(ctx context.Context, id string, messageID string, lastError string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		UPDATE review_jobs
		SET status = $2, dlq_message_id = $3, dlq_moved_at = $4, last_error = $5, updated_at = $4
		WHERE id = $1 AND status <> $6
	`, id, string(models.StatusDLQ), messageID, now, lastError, string(models.StatusComplete))
	return err
}

// Get fetches a job by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (models.Job, error) {
	return s.scanOne(ctx, `
		SELECT id, owner_id, code_hash, file_name, file_content, status, result, cache_hit,
		       attempts, last_error, dlq_message_id, dlq_moved_at, created_at, completed_at, processing_time_ms
		FROM review_jobs WHERE id = $1
	`, id)
}

// GetByFingerprint supports the observability-oriented secondary
// lookup spec §4.3 requires.
func (s *PostgresStore) GetByFingerprint(ctx context.Context, fingerprint string) (models.Job, error) {
	return s.scanOne(ctx, `
		SELECT id, owner_id, code_hash, file_name, file_content, status, result, cache_hit,
		       attempts, last_error, dlq_message_id, dlq_moved_at, created_at, completed_at, processing_time_ms
		FROM review_jobs WHERE code_hash = $1 ORDER BY created_at DESC LIMIT 1
	`, fingerprint)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, query, arg)

	var job models.Job
	var status string
	var result []byte
	var lastErr, dlqMsgID pgtype.Text
	var dlqMovedAt, completedAt pgtype.Timestamptz

	err := row.Scan(&job.ID, &job.OwnerID, &job.Fingerprint, &job.FileName, &job.FileContent, &status, &result,
		&job.CacheHit, &job.Attempts, &lastErr, &dlqMsgID, &dlqMovedAt, &job.CreatedAt, &completedAt, &job.ProcessingTimeMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, ErrNotFound
		}
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}

	job.Status = models.JobStatus(status)
	job.Result = result
	if lastErr.Valid {
		job.LastError = lastErr.String
	}
	if dlqMsgID.Valid {
		job.DLQMessageID = dlqMsgID.String
	}
	if dlqMovedAt.Valid {
		t := dlqMovedAt.Time
		job.DLQMovedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// History returns the most recent jobs for an owner, newest first.
func (s *PostgresStore) History(ctx context.Context, ownerID int64, limit int) ([]models.JobSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, status, cache_hit, processing_time_ms, created_at, result
		FROM review_jobs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []models.JobSummary
	for rows.Next() {
		var summary models.JobSummary
		var status string
		var result []byte
		if err := rows.Scan(&summary.ID, &summary.FileName, &status, &summary.CacheHit, &summary.ProcessingTimeMs, &summary.CreatedAt, &result); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		summary.Status = models.JobStatus(status)
		if len(result) > 0 {
			var report review.Report
			if err := json.Unmarshal(result, &report); err == nil {
				summary.IssuesFound = report.TotalIssues()
			}
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// CountByStatusSince supports queue-depth estimation for /stats.
func (s *PostgresStore) CountByStatusSince(ctx context.Context, status models.JobStatus, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM review_jobs WHERE status = $1 AND created_at >= $2
	`, string(status), since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by status: %w", err)
	}
	return n, nil
}

// AppendAudit adds an audit row recording a lifecycle transition.
func (s *PostgresStore) AppendAudit(ctx context.Context, jobID, event, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_audit_log (job_id, event, detail, recorded_at) VALUES ($1, $2, $3, NOW())
	`, jobID, event, detail)
	return err
}

var _ Store = (*PostgresStore)(nil)
