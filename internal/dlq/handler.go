// Package dlq implements the DLQ Handler: a long-running consumer of
// the dead-letter destination, plus the read/retry/resolve operations
// backing the /dlq HTTP surface.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codereviewsvc/internal/models"
	"codereviewsvc/internal/queue"
	"codereviewsvc/internal/store"
	"codereviewsvc/internal/telemetry"
)

// Config parameterizes one Handler.
type Config struct {
	PollInterval time.Duration
	LongPollWait time.Duration
}

// Handler drains the dead-letter destination and serves the DLQ
// inspection/retry/resolve operations described in spec §4.8.
type Handler struct {
	cfg      Config
	dlq      queue.DLQ
	mainQ    queue.Queue
	store    store.Store
	dlqStore store.DLQStore
}

func NewHandler(cfg Config, dlq queue.DLQ, mainQ queue.Queue, st store.Store, dlqStore store.DLQStore) *Handler {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.LongPollWait == 0 {
		cfg.LongPollWait = 5 * time.Second
	}
	return &Handler{cfg: cfg, dlq: dlq, mainQ: mainQ, store: st, dlqStore: dlqStore}
}

// Run consumes the dead-letter destination until context
// cancellation, recording each message as a durable DLQEntry and
// marking the owning job dlq before deleting the DLQ-side message.
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := h.dlq.Receive(ctx, h.cfg.LongPollWait)
		if err != nil {
			slog.Warn("dlq receive failed", "error", err)
			time.Sleep(h.cfg.PollInterval)
			continue
		}
		if msg == nil {
			time.Sleep(h.cfg.PollInterval)
			continue
		}

		h.consume(ctx, *msg)
	}
}

func (h *Handler) consume(ctx context.Context, msg models.QueueMessage) {
	if msg.Body.JobID == "" {
		slog.Warn("dropping malformed dlq message", "message_id", msg.ID)
		_ = h.dlq.Delete(ctx, msg.Receipt)
		return
	}

	lastError := "exceeded max receive count"
	if job, err := h.store.Get(ctx, msg.Body.JobID); err == nil && job.LastError != "" {
		lastError = job.LastError
	}

	// Authoritative write: idempotent on message_id, so when the Worker
	// has already written its eager entry for this message id the
	// existing row is kept and no duplicate entry is produced.
	_, err := h.dlqStore.CreateEntry(ctx, models.DLQEntry{
		JobID:             msg.Body.JobID,
		MessageID:         msg.ID,
		Body:              msg.Body,
		FinalReceiveCount: msg.ReceiveCount,
		LastError:         lastError,
	})
	if err != nil {
		slog.Error("dlq entry write failed", "job_id", msg.Body.JobID, "error", err)
		return
	}

	if err := h.store.MarkDLQ(ctx, msg.Body.JobID, msg.ID, lastError); err != nil {
		slog.Error("mark_dlq failed", "job_id", msg.Body.JobID, "error", err)
	}
	_ = h.store.AppendAudit(ctx, msg.Body.JobID, "dead_letter_recorded", msg.ID)
	telemetry.DLQDepthGauge.Inc()

	_ = h.dlq.Delete(ctx, msg.Receipt)
}

// List returns DLQ entries, optionally filtered by resolution state.
func (h *Handler) List(ctx context.Context, resolved *bool) ([]models.DLQEntry, error) {
	return h.dlqStore.List(ctx, resolved)
}

// Get returns a single DLQ entry.
func (h *Handler) Get(ctx context.Context, id string) (models.DLQEntry, error) {
	return h.dlqStore.GetEntry(ctx, id)
}

// Stats returns the aggregate view backing GET /dlq/stats.
func (h *Handler) Stats(ctx context.Context) (models.DLQStats, error) {
	return h.dlqStore.Stats(ctx)
}

// ErrAlreadyResolved is returned by Resolve/Retry on a closed entry.
var ErrAlreadyResolved = errors.New("dlq entry already resolved")

// Resolve marks an entry resolved without resending its message,
// for operator triage where the underlying job doesn't need a retry.
func (h *Handler) Resolve(ctx context.Context, id, reason string) error {
	entry, err := h.dlqStore.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.Resolved {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}
	return h.dlqStore.Resolve(ctx, id, reason)
}

// Retry resends the entry's body to the main queue under a fresh
// message identity, resets the owning job to retrying, and increments
// the entry's retry_count. It leaves the entry unresolved: a retry and
// a resolve are distinct operations (spec §4.8), and if the resend
// fails again it surfaces as a new DLQEntry under the fresh message id
// rather than this same row.
func (h *Handler) Retry(ctx context.Context, id string) error {
	entry, err := h.dlqStore.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry.Resolved {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}

	if _, err := h.mainQ.ResendToMain(ctx, entry.Body); err != nil {
		return fmt.Errorf("resend to main queue: %w", err)
	}
	if err := h.dlqStore.IncrementRetry(ctx, id); err != nil {
		slog.Warn("increment retry count failed", "dlq_id", id, "error", err)
	}
	if err := h.store.MarkRetrying(ctx, entry.JobID, entry.FinalReceiveCount, "manual dlq retry"); err != nil {
		slog.Warn("reset job to retrying failed", "job_id", entry.JobID, "error", err)
	}
	_ = h.store.AppendAudit(ctx, entry.JobID, "dlq_retry", id)

	return nil
}
