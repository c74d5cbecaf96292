package dlq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"codereviewsvc/internal/models"
	"codereviewsvc/internal/store"
	"codereviewsvc/pkg/review"
)

type fakeDLQQueue struct {
	pending []models.QueueMessage
	deleted []string
}

func (q *fakeDLQQueue) Receive(context.Context, time.Duration) (*models.QueueMessage, error) {
	if len(q.pending) == 0 {
		return nil, nil
	}
	m := q.pending[0]
	q.pending = q.pending[1:]
	return &m, nil
}

func (q *fakeDLQQueue) Delete(_ context.Context, receipt string) error {
	q.deleted = append(q.deleted, receipt)
	return nil
}

type fakeMainQueue struct {
	resent []models.MessageBody
}

func (q *fakeMainQueue) Enqueue(context.Context, models.MessageBody) (string, error) { return "", nil }
func (q *fakeMainQueue) Receive(context.Context, time.Duration) (*models.QueueMessage, error) {
	return nil, nil
}
func (q *fakeMainQueue) Delete(context.Context, string) error { return nil }
func (q *fakeMainQueue) ResendToMain(_ context.Context, body models.MessageBody) (string, error) {
	q.resent = append(q.resent, body)
	return uuid.New().String(), nil
}
func (q *fakeMainQueue) Depth(context.Context) (int64, error) { return 0, nil }

type fakeStore struct {
	jobs  map[string]models.Job
	audit []string
}

func newFakeStore() *fakeStore { return &fakeStore{jobs: map[string]models.Job{}} }

func (s *fakeStore) Create(context.Context, store.CreateParams) (models.Job, error) {
	return models.Job{}, nil
}
func (s *fakeStore) MarkProcessing(context.Context, string, int) error { return nil }
func (s *fakeStore) Complete(context.Context, string, *review.Report, int64, int) error {
	return nil
}
func (s *fakeStore) MarkRetrying(_ context.Context, id string, attempts int, lastError string) error {
	j := s.jobs[id]
	j.Status = models.StatusRetrying
	j.LastError = lastError
	s.jobs[id] = j
	return nil
}
func (s *fakeStore) MarkDLQ(_ context.Context, id string, messageID string, lastError string) error {
	j := s.jobs[id]
	j.Status = models.StatusDLQ
	j.DLQMessageID = messageID
	j.LastError = lastError
	s.jobs[id] = j
	return nil
}
func (s *fakeStore) Get(_ context.Context, id string) (models.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, store.ErrNotFound
	}
	return j, nil
}
func (s *fakeStore) GetByFingerprint(context.Context, string) (models.Job, error) {
	return models.Job{}, store.ErrNotFound
}
func (s *fakeStore) History(context.Context, int64, int) ([]models.JobSummary, error) {
	return nil, nil
}
func (s *fakeStore) CountByStatusSince(context.Context, models.JobStatus, time.Time) (int64, error) {
	return 0, nil
}
func (s *fakeStore) AppendAudit(_ context.Context, _ string, event, _ string) error {
	s.audit = append(s.audit, event)
	return nil
}

type fakeDLQStore struct {
	entries map[string]models.DLQEntry
}

func newFakeDLQStore() *fakeDLQStore { return &fakeDLQStore{entries: map[string]models.DLQEntry{}} }

func (d *fakeDLQStore) CreateEntry(_ context.Context, e models.DLQEntry) (models.DLQEntry, error) {
	for _, existing := range d.entries {
		if existing.MessageID == e.MessageID {
			return existing, nil
		}
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	d.entries[e.ID] = e
	return e, nil
}

func (d *fakeDLQStore) GetEntry(_ context.Context, id string) (models.DLQEntry, error) {
	e, ok := d.entries[id]
	if !ok {
		return models.DLQEntry{}, store.ErrNotFound
	}
	return e, nil
}

func (d *fakeDLQStore) List(_ context.Context, resolved *bool) ([]models.DLQEntry, error) {
	var out []models.DLQEntry
	for _, e := range d.entries {
		if resolved == nil || e.Resolved == *resolved {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *fakeDLQStore) Stats(context.Context) (models.DLQStats, error) {
	return models.DLQStats{Total: len(d.entries)}, nil
}

func (d *fakeDLQStore) Resolve(_ context.Context, id, reason string) error {
	e := d.entries[id]
	e.Resolved = true
	e.ResolutionReason = reason
	d.entries[id] = e
	return nil
}

func (d *fakeDLQStore) IncrementRetry(_ context.Context, id string) error {
	e := d.entries[id]
	e.RetryCount++
	d.entries[id] = e
	return nil
}

func newTestHandler(dq *fakeDLQQueue, mq *fakeMainQueue, st *fakeStore, ds *fakeDLQStore) *Handler {
	return NewHandler(Config{}, dq, mq, st, ds)
}

func TestConsumeMalformedMessageIsDropped(t *testing.T) {
	dq := &fakeDLQQueue{}
	h := newTestHandler(dq, &fakeMainQueue{}, newFakeStore(), newFakeDLQStore())

	h.consume(context.Background(), models.QueueMessage{ID: "m1", Receipt: "r1", Body: models.MessageBody{}})

	if len(dq.deleted) != 1 {
		t.Fatalf("expected malformed message deleted, got %v", dq.deleted)
	}
}

func TestConsumeRecordsEntryMarksJobAndDeletes(t *testing.T) {
	dq := &fakeDLQQueue{}
	st, ds := newFakeStore(), newFakeDLQStore()
	st.jobs["job-1"] = models.Job{ID: "job-1", LastError: "boom"}
	h := newTestHandler(dq, &fakeMainQueue{}, st, ds)

	msg := models.QueueMessage{ID: "m1", Receipt: "r1", ReceiveCount: 5, Body: models.MessageBody{JobID: "job-1", FileName: "f.js"}}
	h.consume(context.Background(), msg)

	if st.jobs["job-1"].Status != models.StatusDLQ {
		t.Fatalf("expected job marked dlq, got %s", st.jobs["job-1"].Status)
	}
	if len(ds.entries) != 1 {
		t.Fatalf("expected one dlq entry, got %d", len(ds.entries))
	}
	if len(dq.deleted) != 1 {
		t.Fatalf("expected dlq message deleted, got %v", dq.deleted)
	}
}

func TestConsumeIsIdempotentByMessageID(t *testing.T) {
	dq := &fakeDLQQueue{}
	st, ds := newFakeStore(), newFakeDLQStore()
	st.jobs["job-1"] = models.Job{ID: "job-1"}
	h := newTestHandler(dq, &fakeMainQueue{}, st, ds)

	msg := models.QueueMessage{ID: "dup", Receipt: "r1", Body: models.MessageBody{JobID: "job-1", FileName: "f.js"}}
	h.consume(context.Background(), msg)
	h.consume(context.Background(), msg)

	if len(ds.entries) != 1 {
		t.Fatalf("expected a single deduplicated entry, got %d", len(ds.entries))
	}
}

func TestRetryResendsAndLeavesEntryUnresolved(t *testing.T) {
	mq := &fakeMainQueue{}
	st, ds := newFakeStore(), newFakeDLQStore()
	st.jobs["job-1"] = models.Job{ID: "job-1"}
	entry, _ := ds.CreateEntry(context.Background(), models.DLQEntry{JobID: "job-1", MessageID: "m1", Body: models.MessageBody{JobID: "job-1"}})
	h := newTestHandler(&fakeDLQQueue{}, mq, st, ds)

	if err := h.Retry(context.Background(), entry.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mq.resent) != 1 {
		t.Fatalf("expected one resend, got %d", len(mq.resent))
	}
	if st.jobs["job-1"].Status != models.StatusRetrying {
		t.Fatalf("expected job reset to retrying, got %s", st.jobs["job-1"].Status)
	}
	if ds.entries[entry.ID].Resolved {
		t.Fatal("expected entry to remain unresolved after retry")
	}
	if ds.entries[entry.ID].RetryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", ds.entries[entry.ID].RetryCount)
	}
}

func TestRetryOnAlreadyResolvedFails(t *testing.T) {
	st, ds := newFakeStore(), newFakeDLQStore()
	entry, _ := ds.CreateEntry(context.Background(), models.DLQEntry{JobID: "job-1", MessageID: "m1"})
	_ = ds.Resolve(context.Background(), entry.ID, "done")
	h := newTestHandler(&fakeDLQQueue{}, &fakeMainQueue{}, st, ds)

	err := h.Retry(context.Background(), entry.ID)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestResolveMarksEntry(t *testing.T) {
	ds := newFakeDLQStore()
	entry, _ := ds.CreateEntry(context.Background(), models.DLQEntry{JobID: "job-1", MessageID: "m1"})
	h := newTestHandler(&fakeDLQQueue{}, &fakeMainQueue{}, newFakeStore(), ds)

	if err := h.Resolve(context.Background(), entry.ID, "manual triage"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ds.entries[entry.ID].Resolved {
		t.Fatal("expected entry resolved")
	}
}
