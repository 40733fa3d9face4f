// Package queue is a small Redis list backed job queue.
// Producers LPUSH JSON jobs; a Worker BRPOPs them and dispatches by name.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Job is the wire form stored in Redis.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals the payload into dst.
func (j Job) Decode(dst any) error {
	if len(j.Payload) == 0 {
		return errors.New("queue: empty payload")
	}
	return json.Unmarshal(j.Payload, dst)
}

// DeadLetterKey is where jobs go after their last failed attempt.
func DeadLetterKey(queue string) string { return queue + ":dead" }

// DelayedKey is the sorted set holding retries until their backoff ends.
// Scores are due times in unix milliseconds.
func DelayedKey(queue string) string { return queue + ":delayed" }

// Client enqueues jobs. It is safe for concurrent use.
type Client struct {
	rdb   redis.Cmdable
	queue string
	clock func() time.Time
}

func NewClient(rdb redis.Cmdable, queue string) *Client {
	return &Client{rdb: rdb, queue: queue, clock: time.Now}
}

// Enqueue pushes a job and returns its id.
func (c *Client) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	if name == "" {
		return "", errors.New("queue: job name required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("queue: encode %s payload: %w", name, err)
	}
	job := Job{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: c.clock().UTC(),
	}
	if err := push(ctx, c.rdb, c.queue, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Len reports the number of pending jobs.
func (c *Client) Len(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, c.queue).Result()
}

func push(ctx context.Context, rdb redis.Cmdable, key string, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job: %w", err)
	}
	if err := rdb.LPush(ctx, key, b).Err(); err != nil {
		return fmt.Errorf("queue: push %s: %w", key, err)
	}
	return nil
}
