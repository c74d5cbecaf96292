// Package queue implements the Job Queue: an at-least-once message
// transport with visibility-lease redelivery and a companion
// dead-letter destination.
package queue

import (
	"context"
	"time"

	"codereviewsvc/internal/models"
)

// Options configures the transport.
type Options struct {
	VisibilitySeconds int
	MaxReceiveCount   int
	LongPollSeconds   int
	RetentionSeconds  int
}

// Queue is the main-queue contract used by the Submission Service and
// Worker.
type Queue interface {
	Enqueue(ctx context.Context, body models.MessageBody) (string, error)
	Receive(ctx context.Context, maxWait time.Duration) (*models.QueueMessage, error)
	Delete(ctx context.Context, receipt string) error
	ResendToMain(ctx context.Context, body models.MessageBody) (string, error)
	Depth(ctx context.Context) (int64, error)
}

// DLQ is the companion dead-letter destination's own receive/delete
// surface, used by the DLQ Handler.
type DLQ interface {
	Receive(ctx context.Context, maxWait time.Duration) (*models.QueueMessage, error)
	Delete(ctx context.Context, receipt string) error
}
