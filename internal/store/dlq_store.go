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

	"codereviewsvc/internal/models"
)

// CreateEntry inserts a DLQ entry, idempotent on message_id: a
// conflicting insert is ignored and the existing row returned, so the
// Worker's eager write and the DLQ Handler's authoritative write never
// produce duplicate rows for the same message.
func (s *PostgresStore) CreateEntry(ctx context.Context, entry models.DLQEntry) (models.DLQEntry, error) {
	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	body, err := json.Marshal(entry.Body)
	if err != nil {
		return models.DLQEntry{}, fmt.Errorf("marshal dlq body: %w", err)
	}
	movedAt := entry.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dlq_messages (id, job_id, message_id, body, final_receive_count, last_error, moved_to_dlq_at, retry_count, resolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, false)
		ON CONFLICT (message_id) DO NOTHING
	`, id, entry.JobID, entry.MessageID, body, entry.FinalReceiveCount, entry.LastError, movedAt)
	if err != nil {
		return models.DLQEntry{}, fmt.Errorf("insert dlq entry: %w", err)
	}

	return s.dlqByMessageID(ctx, entry.MessageID)
}

func (s *PostgresStore) dlqByMessageID(ctx context.Context, messageID string) (models.DLQEntry, error) {
	return s.scanDLQRow(ctx, `
		SELECT id, job_id, message_id, body, final_receive_count, last_error, moved_to_dlq_at,
		       retry_count, resolved, resolved_at, resolution_reason
		FROM dlq_messages WHERE message_id = $1
	`, messageID)
}

func (s *PostgresStore) GetEntry(ctx context.Context, id string) (models.DLQEntry, error) {
	return s.scanDLQRow(ctx, `
		SELECT id, job_id, message_id, body, final_receive_count, last_error, moved_to_dlq_at,
		       retry_count, resolved, resolved_at, resolution_reason
		FROM dlq_messages WHERE id = $1
	`, id)
}

func (s *PostgresStore) scanDLQRow(ctx context.Context, query, arg string) (models.DLQEntry, error) {
	row := s.pool.QueryRow(ctx, query, arg)

	var e models.DLQEntry
	var body []byte
	var resolvedAt pgtype.Timestamptz
	var reason pgtype.Text

	err := row.Scan(&e.ID, &e.JobID, &e.MessageID, &body, &e.FinalReceiveCount, &e.LastError, &e.MovedAt,
		&e.RetryCount, &e.Resolved, &resolvedAt, &reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DLQEntry{}, ErrNotFound
		}
		return models.DLQEntry{}, fmt.Errorf("scan dlq entry: %w", err)
	}
	if err := json.Unmarshal(body, &e.Body); err != nil {
		return models.DLQEntry{}, fmt.Errorf("unmarshal dlq body: %w", err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		e.ResolvedAt = &t
	}
	if reason.Valid {
		e.ResolutionReason = reason.String
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context, resolved *bool) ([]models.DLQEntry, error) {
	query := `
		SELECT id, job_id, message_id, body, final_receive_count, last_error, moved_to_dlq_at,
		       retry_count, resolved, resolved_at, resolution_reason
		FROM dlq_messages`
	args := []any{}
	if resolved != nil {
		query += ` WHERE resolved = $1`
		args = append(args, *resolved)
	}
	query += ` ORDER BY moved_to_dlq_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dlq entries: %w", err)
	}
	defer rows.Close()

	var out []models.DLQEntry
	for rows.Next() {
		var e models.DLQEntry
		var body []byte
		var resolvedAt pgtype.Timestamptz
		var reason pgtype.Text

		if err := rows.Scan(&e.ID, &e.JobID, &e.MessageID, &body, &e.FinalReceiveCount, &e.LastError, &e.MovedAt,
			&e.RetryCount, &e.Resolved, &resolvedAt, &reason); err != nil {
			return nil, fmt.Errorf("scan dlq row: %w", err)
		}
		if err := json.Unmarshal(body, &e.Body); err != nil {
			return nil, fmt.Errorf("unmarshal dlq body: %w", err)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			e.ResolvedAt = &t
		}
		if reason.Valid {
			e.ResolutionReason = reason.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (models.DLQStats, error) {
	var stats models.DLQStats
	var latest pgtype.Timestamptz
	var avgRetries pgtype.Float8

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT resolved),
			COUNT(DISTINCT job_id),
			MAX(moved_to_dlq_at),
			AVG(retry_count)
		FROM dlq_messages
	`).Scan(&stats.Total, &stats.Unresolved, &stats.UniqueJobCount, &latest, &avgRetries)
	if err != nil {
		return models.DLQStats{}, fmt.Errorf("query dlq stats: %w", err)
	}
	if latest.Valid {
		t := latest.Time
		stats.LatestMovedAt = &t
	}
	if avgRetries.Valid {
		stats.AverageRetries = avgRetries.Float64
	}
	return stats, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, id, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dlq_messages SET resolved = true, resolved_at = NOW(), resolution_reason = $2
		WHERE id = $1
	`, id, reason)
	return err
}

func (s *PostgresStore) IncrementRetry(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dlq_messages SET retry_count = retry_count + 1 WHERE id = $1
	`, id)
	return err
}

var _ DLQStore = (*PostgresStore)(nil)
