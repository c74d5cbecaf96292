// Package worker implements the Worker: a long-running loop that
// receives queue messages, runs the Analyzer, and routes the result
// to completion, retry, or the dead-letter queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"codereviewsvc/internal/analyzer"
	"codereviewsvc/internal/cache"
	"codereviewsvc/internal/models"
	"codereviewsvc/internal/queue"
	"codereviewsvc/internal/store"
	"codereviewsvc/internal/telemetry"
)

// Sweeper is satisfied by queue.RedisQueue: reclaiming in-flight
// messages whose visibility lease expired, redelivering under budget
// or routing to the dead-letter queue once exhausted.
type Sweeper interface {
	SweepExpired(ctx context.Context) (redelivered int, deadlettered int, err error)
}

// Config parameterizes one Processor.
type Config struct {
	MaxReceiveCount int
	PollInterval    time.Duration
	LongPollWait    time.Duration
	SweepInterval   time.Duration
}

// Processor drives the worker execution loop: a single fixed pipeline
// (parse -> idempotency short-circuit -> mark_processing -> analyze
// -> complete|retry|dlq), since this domain has exactly one job type.
type Processor struct {
	cfg      Config
	queue    queue.Queue
	sweeper  Sweeper
	store    store.Store
	dlqStore store.DLQStore
	cache    cache.Cache
	analyze  *analyzer.Analyzer
}

func NewProcessor(cfg Config, q queue.Queue, sweeper Sweeper, st store.Store, dlqStore store.DLQStore, c cache.Cache, a *analyzer.Analyzer) *Processor {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.LongPollWait == 0 {
		cfg.LongPollWait = 5 * time.Second
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	return &Processor{cfg: cfg, queue: q, sweeper: sweeper, store: st, dlqStore: dlqStore, cache: c, analyze: a}
}

// Run starts the main worker loop until context cancellation. Before
// receiving, a pass sweeps expired leases if SweepInterval has elapsed
// since the last sweep (the same sweep-then-receive ordering the
// teacher's promote-then-dequeue loop uses), so a message whose lease
// has lapsed becomes eligible for redelivery at the next sweep.
func (p *Processor) Run(ctx context.Context) error {
	var lastSweep time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.sweeper != nil && time.Since(lastSweep) >= p.cfg.SweepInterval {
			redelivered, deadlettered, err := p.sweeper.SweepExpired(ctx)
			if err != nil {
				slog.Warn("sweep expired messages failed", "error", err)
			} else if redelivered+deadlettered > 0 {
				slog.Info("swept expired messages", "redelivered", redelivered, "deadlettered", deadlettered)
			}
			if depth, err := p.queue.Depth(ctx); err == nil {
				telemetry.QueueDepthGauge.Set(float64(depth))
			}
			lastSweep = time.Now()
		}

		msg, err := p.queue.Receive(ctx, p.cfg.LongPollWait)
		if err != nil {
			slog.Warn("receive failed", "error", err)
			p.idle(ctx)
			continue
		}
		if msg == nil {
			p.idle(ctx)
			continue
		}

		p.process(ctx, *msg)
	}
}

// idle backs off the empty-queue poll with jitter so many idle
// workers don't hammer the transport in lockstep.
func (p *Processor) idle(ctx context.Context) {
	wait := backoffWithJitter(p.cfg.PollInterval, p.cfg.PollInterval*4, 1)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// process implements the single fixed pipeline from spec §4.7.
func (p *Processor) process(ctx context.Context, msg models.QueueMessage) {
	if msg.Body.JobID == "" {
		slog.Warn("dropping malformed message", "message_id", msg.ID)
		telemetry.MalformedMessagesTotal.Inc()
		_ = p.queue.Delete(ctx, msg.Receipt)
		return
	}

	if msg.ReceiveCount >= p.cfg.MaxReceiveCount {
		slog.Warn("message at terminal receive count; next failure routes to dlq",
			"job_id", msg.Body.JobID, "receive_count", msg.ReceiveCount)
	}

	job, err := p.store.Get(ctx, msg.Body.JobID)
	if err == nil && job.Status == models.StatusComplete {
		// Idempotent-completion short-circuit: a successful completion
		// followed by a crash before delete causes redelivery.
		slog.Info("job already complete, discarding redelivered message", "job_id", job.ID)
		_ = p.queue.Delete(ctx, msg.Receipt)
		return
	}

	if err := p.store.MarkProcessing(ctx, msg.Body.JobID, msg.ReceiveCount); err != nil {
		slog.Error("mark_processing failed", "job_id", msg.Body.JobID, "error", err)
	}

	start := time.Now()
	report, analyzeErr := p.analyze.Analyze(ctx, msg.Body.FileContent, msg.Body.FileName)
	telemetry.AnalysisDuration.Observe(time.Since(start).Seconds())

	if analyzeErr == nil {
		p.cache.Put(ctx, msg.Body.Fingerprint, report)
		durationMs := time.Since(start).Milliseconds()
		if err := p.store.Complete(ctx, msg.Body.JobID, report, durationMs, msg.ReceiveCount); err != nil {
			slog.Error("complete failed", "job_id", msg.Body.JobID, "error", err)
		}
		_ = p.store.AppendAudit(ctx, msg.Body.JobID, "completed", fmt.Sprintf("attempts=%d", msg.ReceiveCount))
		telemetry.JobsCompletedTotal.Inc()
		_ = p.queue.Delete(ctx, msg.Receipt)
		return
	}

	p.handleFailure(ctx, msg, analyzeErr)
}

func (p *Processor) handleFailure(ctx context.Context, msg models.QueueMessage, analyzeErr error) {
	var ae *analyzer.AnalysisError
	reason := analyzeErr.Error()
	if errors.As(analyzeErr, &ae) {
		reason = ae.Error()
	}

	if msg.ReceiveCount >= p.cfg.MaxReceiveCount {
		p.routeToDLQ(ctx, msg, reason)
		return
	}

	if err := p.store.MarkRetrying(ctx, msg.Body.JobID, msg.ReceiveCount, reason); err != nil {
		slog.Error("mark_retrying failed", "job_id", msg.Body.JobID, "error", err)
	}
	_ = p.store.AppendAudit(ctx, msg.Body.JobID, "retrying", reason)
	telemetry.JobsRetriedTotal.Inc()
	// Do not delete: the visibility lease expires and the transport
	// redelivers, or routes to DLQ once the receive budget is spent.
}

// routeToDLQ performs the Worker's eager half of spec §4.7 step 5: a
// DLQ entry write (idempotent on message_id) and a job status update,
// ahead of the DLQ Handler's own authoritative write of the same pair
// once it actually consumes the message from the DLQ transport.
func (p *Processor) routeToDLQ(ctx context.Context, msg models.QueueMessage, reason string) {
	if p.dlqStore != nil {
		_, err := p.dlqStore.CreateEntry(ctx, models.DLQEntry{
			JobID:             msg.Body.JobID,
			MessageID:         msg.ID,
			Body:              msg.Body,
			FinalReceiveCount: msg.ReceiveCount,
			LastError:         reason,
		})
		if err != nil {
			slog.Error("eager dlq entry write failed", "job_id", msg.Body.JobID, "error", err)
		}
	}
	if err := p.store.MarkDLQ(ctx, msg.Body.JobID, msg.ID, reason); err != nil {
		slog.Error("mark_dlq failed", "job_id", msg.Body.JobID, "error", err)
	}
	_ = p.store.AppendAudit(ctx, msg.Body.JobID, "dead_letter", reason)
	telemetry.JobsDeadLetterTotal.Inc()
	// Do not delete the message: the transport's own sweep routes it
	// to the DLQ destination; the companion DLQ Handler will consume
	// and delete it from there.
}

// backoffWithJitter halves the window and adds random jitter, used
// only for the idle poll interval; message-level redelivery timing is
// governed by the queue's own visibility lease, not this function.
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
	}
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}
