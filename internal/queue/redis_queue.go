package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"codereviewsvc/internal/models"
)

// RedisQueue coordinates a ready list, an in-flight sorted set keyed by
// visibility deadline, and a companion dead-letter list, adapted from
// the teacher's priority-queue design but generalized to the single
// FIFO queue this domain needs.
type RedisQueue struct {
	client        *redis.Client
	readyKey      string
	inflightKey   string
	dlqKey        string
	metaPrefix    string
	visibility    time.Duration
	maxReceive    int
}

// NewRedisQueue builds the main queue client.
func NewRedisQueue(client *redis.Client, opts Options) *RedisQueue {
	visibility := time.Duration(opts.VisibilitySeconds) * time.Second
	if visibility == 0 {
		visibility = 30 * time.Second
	}
	maxReceive := opts.MaxReceiveCount
	if maxReceive == 0 {
		maxReceive = 5
	}
	return &RedisQueue{
		client:      client,
		readyKey:    "review:queue:ready",
		inflightKey: "review:queue:inflight",
		dlqKey:      "review:queue:dlq",
		metaPrefix:  "review:queue:meta:",
		visibility:  visibility,
		maxReceive:  maxReceive,
	}
}

func (q *RedisQueue) metaKey(id string) string {
	return q.metaPrefix + id
}

// Enqueue pushes a new message body onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, body models.MessageBody) (string, error) {
	id := uuid.New().String()
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal message body: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.metaKey(id), "body", raw, "receive_count", 0)
	pipe.RPush(ctx, q.readyKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// ResendToMain re-enqueues a body under a fresh message identity, used
// by the DLQ Handler's manual retry.
func (q *RedisQueue) ResendToMain(ctx context.Context, body models.MessageBody) (string, error) {
	return q.Enqueue(ctx, body)
}

// Receive pops the next ready message, increments its receive-count,
// and places it in the in-flight set with a fresh visibility deadline.
// A nil message with a nil error indicates the queue is empty.
func (q *RedisQueue) Receive(ctx context.Context, maxWait time.Duration) (*models.QueueMessage, error) {
	deadline := time.Now().Add(maxWait)
	for {
		msg, err := q.tryReceive(ctx)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (q *RedisQueue) tryReceive(ctx context.Context) (*models.QueueMessage, error) {
	res, err := receiveScript.Run(ctx, q.client,
		[]string{q.readyKey, q.inflightKey},
		q.metaPrefix, time.Now().Add(q.visibility).UnixMilli(),
	).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 2 {
		return nil, nil
	}
	id, _ := arr[0].(string)
	if id == "" {
		return nil, nil
	}
	rawBody, _ := arr[1].(string)
	count, _ := toInt(arr[2])

	var body models.MessageBody
	if err := json.Unmarshal([]byte(rawBody), &body); err != nil {
		return nil, fmt.Errorf("unmarshal message body: %w", err)
	}
	return &models.QueueMessage{ID: id, Receipt: id, Body: body, ReceiveCount: count}, nil
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}

// Delete removes a message from in-flight tracking and its meta
// record, completing the receive/process/delete cycle on success.
func (q *RedisQueue) Delete(ctx context.Context, receipt string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, receipt)
	pipe.Del(ctx, q.metaKey(receipt))
	_, err := pipe.Exec(ctx)
	return err
}

// Depth returns the ready-queue length for queue-depth estimation.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey).Result()
}

// SweepExpired reclaims in-flight messages whose visibility lease has
// expired: messages under the receive budget are redelivered to the
// ready list; messages at or over budget are routed to the companion
// DLQ destination instead (spec §4.4 — "the worker must never delete
// on failure, otherwise the message is lost before DLQ routing").
func (q *RedisQueue) SweepExpired(ctx context.Context) (redelivered int, deadlettered int, err error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", time.Now().UnixMilli()),
	}).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("sweep: %w", err)
	}
	for _, id := range ids {
		count, _ := q.client.HGet(ctx, q.metaKey(id), "receive_count").Int()
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.inflightKey, id)
		if count >= q.maxReceive {
			pipe.RPush(ctx, q.dlqKey, id)
			deadlettered++
		} else {
			pipe.RPush(ctx, q.readyKey, id)
			redelivered++
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return redelivered, deadlettered, fmt.Errorf("sweep reclaim %s: %w", id, err)
		}
	}
	return redelivered, deadlettered, nil
}

// DLQQueue exposes the companion destination's own receive/delete
// operations for the DLQ Handler.
type DLQQueue struct {
	client     *redis.Client
	dlqKey     string
	metaPrefix string
}

// NewDLQQueue shares the same Redis client and meta records as the
// main queue, reading from the dlqKey list instead.
func NewDLQQueue(client *redis.Client) *DLQQueue {
	return &DLQQueue{client: client, dlqKey: "review:queue:dlq", metaPrefix: "review:queue:meta:"}
}

func (d *DLQQueue) metaKey(id string) string { return d.metaPrefix + id }

// Receive pops the next dead-lettered message id and reads its body
// and final receive-count from the shared meta record.
func (d *DLQQueue) Receive(ctx context.Context, maxWait time.Duration) (*models.QueueMessage, error) {
	deadline := time.Now().Add(maxWait)
	for {
		id, err := d.client.LPop(ctx, d.dlqKey).Result()
		if err == nil {
			raw, err := d.client.HGet(ctx, d.metaKey(id), "body").Result()
			if err != nil {
				return nil, fmt.Errorf("read dlq message body: %w", err)
			}
			count, _ := d.client.HGet(ctx, d.metaKey(id), "receive_count").Int()
			var body models.MessageBody
			if err := json.Unmarshal([]byte(raw), &body); err != nil {
				return nil, fmt.Errorf("unmarshal dlq message body: %w", err)
			}
			return &models.QueueMessage{ID: id, Receipt: id, Body: body, ReceiveCount: count}, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("dlq receive: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Delete removes the DLQ message's meta record, preventing
// reprocessing loops once the DLQ Handler has recorded the entry.
func (d *DLQQueue) Delete(ctx context.Context, receipt string) error {
	return d.client.Del(ctx, d.metaKey(receipt)).Err()
}

var receiveScript = redis.NewScript(`
local ready = KEYS[1]
local inflight = KEYS[2]
local metaPrefix = ARGV[1]
local deadline = ARGV[2]

local id = redis.call('LPOP', ready)
if not id then return nil end

local metaKey = metaPrefix .. id
local body = redis.call('HGET', metaKey, 'body')
local count = redis.call('HINCRBY', metaKey, 'receive_count', 1)
redis.call('ZADD', inflight, deadline, id)
return {id, body, count}
`)

var _ Queue = (*RedisQueue)(nil)
var _ DLQ = (*DLQQueue)(nil)
