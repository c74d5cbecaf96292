package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"codereviewsvc/internal/models"
)

func newTestQueue(t *testing.T, maxReceive int) (*RedisQueue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueue(client, Options{VisibilitySeconds: 1, MaxReceiveCount: maxReceive})
	return q, mr
}

func TestEnqueueReceiveDelete(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	id, err := q.Enqueue(ctx, models.MessageBody{JobID: "j1", FileName: "a.js"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty message id")
	}

	msg, err := q.Receive(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg == nil {
		t.Fatalf("expected a message")
	}
	if msg.ReceiveCount != 1 {
		t.Fatalf("expected receive_count=1, got %d", msg.ReceiveCount)
	}
	if msg.Body.JobID != "j1" {
		t.Fatalf("unexpected body: %+v", msg.Body)
	}

	if err := q.Delete(ctx, msg.Receipt); err != nil {
		t.Fatalf("delete: %v", err)
	}

	empty, err := q.Receive(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("receive after delete: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected empty queue after delete")
	}
}

func TestSweepExpiredRedeliversUnderBudget(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	_, err := q.Enqueue(ctx, models.MessageBody{JobID: "j1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Receive(ctx, 50*time.Millisecond); err != nil {
		t.Fatalf("receive: %v", err)
	}

	// Past the 1s visibility lease. Lease deadlines are Go wall-clock
	// milliseconds, so miniredis's FastForward does not move them.
	time.Sleep(1100 * time.Millisecond)

	redelivered, deadlettered, err := q.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if redelivered != 1 || deadlettered != 0 {
		t.Fatalf("expected 1 redelivered, 0 deadlettered, got %d/%d", redelivered, deadlettered)
	}

	msg, err := q.Receive(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("receive after sweep: %v", err)
	}
	if msg == nil || msg.ReceiveCount != 2 {
		t.Fatalf("expected redelivered message with receive_count=2, got %+v", msg)
	}
}

func TestSweepExpiredRoutesToDLQAtBudget(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)

	_, err := q.Enqueue(ctx, models.MessageBody{JobID: "j1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Receive(ctx, 50*time.Millisecond); err != nil {
		t.Fatalf("receive: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	redelivered, deadlettered, err := q.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if redelivered != 0 || deadlettered != 1 {
		t.Fatalf("expected 0 redelivered, 1 deadlettered, got %d/%d", redelivered, deadlettered)
	}

	dlq := NewDLQQueue(q.client)
	msg, err := dlq.Receive(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("dlq receive: %v", err)
	}
	if msg == nil || msg.Body.JobID != "j1" || msg.ReceiveCount != 1 {
		t.Fatalf("unexpected dlq message: %+v", msg)
	}
}
