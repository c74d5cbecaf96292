package submission

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

type fakeCache struct {
	reports map[string]*review.Report
}

func newFakeCache() *fakeCache { return &fakeCache{reports: map[string]*review.Report{}} }

func (c *fakeCache) Get(_ context.Context, fp string) (*review.Report, bool) {
	r, ok := c.reports[fp]
	return r, ok
}

func (c *fakeCache) Put(_ context.Context, fp string, r *review.Report) {
	c.reports[fp] = r
}

type fakeStore struct {
	jobs  map[string]models.Job
	audit []string
}

func newFakeStore() *fakeStore { return &fakeStore{jobs: map[string]models.Job{}} }

func (s *fakeStore) Create(_ context.Context, p store.CreateParams) (models.Job, error) {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	job := models.Job{
		ID: id, OwnerID: p.OwnerID, Fingerprint: p.Fingerprint,
		FileName: p.FileName, FileContent: p.FileContent, Status: p.Status,
		CacheHit: p.Status == models.StatusComplete,
	}
	s.jobs[id] = job
	return job, nil
}

func (s *fakeStore) MarkProcessing(_ context.Context, id string, attempts int) error {
	j := s.jobs[id]
	j.Status = models.StatusProcessing
	j.Attempts = attempts
	s.jobs[id] = j
	return nil
}

func (s *fakeStore) Complete(_ context.Context, id string, _ *review.Report, durationMs int64, attempts int) error {
	j := s.jobs[id]
	j.Status = models.StatusComplete
	j.ProcessingTimeMs = durationMs
	j.Attempts = attempts
	s.jobs[id] = j
	return nil
}

func (s *fakeStore) MarkRetrying(_ context.Context, id string, attempts int, lastError string) error {
	j := s.jobs[id]
	j.Status = models.StatusRetrying
	j.Attempts = attempts
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

func (s *fakeStore) GetByFingerprint(_ context.Context, fp string) (models.Job, error) {
	for _, j := range s.jobs {
		if j.Fingerprint == fp {
			return j, nil
		}
	}
	return models.Job{}, store.ErrNotFound
}

func (s *fakeStore) History(_ context.Context, ownerID int64, limit int) ([]models.JobSummary, error) {
	var out []models.JobSummary
	for _, j := range s.jobs {
		if j.OwnerID != ownerID {
			continue
		}
		out = append(out, models.JobSummary{ID: j.ID, FileName: j.FileName, Status: j.Status})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) CountByStatusSince(context.Context, models.JobStatus, time.Time) (int64, error) {
	return 0, nil
}

func (s *fakeStore) AppendAudit(_ context.Context, jobID, event, detail string) error {
	s.audit = append(s.audit, event)
	return nil
}

type fakeQueue struct {
	enqueued []models.MessageBody
}

func (q *fakeQueue) Enqueue(_ context.Context, body models.MessageBody) (string, error) {
	q.enqueued = append(q.enqueued, body)
	return uuid.New().String(), nil
}

func (q *fakeQueue) Receive(context.Context, time.Duration) (*models.QueueMessage, error) { return nil, nil }
func (q *fakeQueue) Delete(context.Context, string) error                               { return nil }
func (q *fakeQueue) ResendToMain(_ context.Context, body models.MessageBody) (string, error) {
	q.enqueued = append(q.enqueued, body)
	return uuid.New().String(), nil
}
func (q *fakeQueue) Depth(context.Context) (int64, error) { return int64(len(q.enqueued)), nil }

func TestSubmitEmptyContentIsInvalid(t *testing.T) {
	svc := New(newFakeCache(), newFakeStore(), &fakeQueue{}, Options{})
	_, err := svc.Submit(context.Background(), "f.js", nil, 1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitOverMaxContentBytesIsInvalid(t *testing.T) {
	svc := New(newFakeCache(), newFakeStore(), &fakeQueue{}, Options{MaxContentBytes: 4})
	_, err := svc.Submit(context.Background(), "f.js", []byte("way too long"), 1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitCacheMissEnqueuesAndReturnsQueued(t *testing.T) {
	q := &fakeQueue{}
	svc := New(newFakeCache(), newFakeStore(), q, Options{})
	res, err := svc.Submit(context.Background(), "f.js", []byte("console.log(1)"), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != models.StatusQueued || res.CacheHit {
		t.Fatalf("expected queued/no-cache-hit, got %+v", res)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("expected one enqueued message, got %d", len(q.enqueued))
	}
}

func TestSubmitCacheHitCompletesSynchronously(t *testing.T) {
	c := newFakeCache()
	content := []byte("console.log(1)")
	fp := "precomputed" // not the real fingerprint, but fakeCache is keyed by whatever Submit computes
	_ = fp
	st := newFakeStore()
	q := &fakeQueue{}
	svc := New(c, st, q, Options{})

	// Prime the cache using the same fingerprint Submit will compute.
	first, err := svc.Submit(context.Background(), "f.js", content, 1)
	if err != nil {
		t.Fatalf("unexpected error on first submit: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first submission should be a cache miss")
	}
	c.Put(context.Background(), st.jobs[first.JobID].Fingerprint, &review.Report{FileName: "f.js"})

	second, err := svc.Submit(context.Background(), "f.js", content, 1)
	if err != nil {
		t.Fatalf("unexpected error on second submit: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second identical submission should be a cache hit")
	}
	if second.Status != models.StatusComplete {
		t.Errorf("expected complete status on cache hit, got %s", second.Status)
	}
	if len(q.enqueued) != 1 {
		t.Errorf("cache-hit path must not enqueue a second message, got %d enqueued", len(q.enqueued))
	}
}
