package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskhub/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Processing outcomes, also used as metric labels.
const (
	ResultSuccess = "success"
	ResultRetry   = "retry"
	ResultDead    = "dead"
	ResultUnknown = "unknown"
)

type WorkerOptions struct {
	Queue       string
	MaxAttempts int
	// PollTimeout bounds each BRPOP so shutdown is noticed promptly.
	PollTimeout time.Duration
	// RetryBackoff is the delay before the first retry; it doubles per
	// attempt up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	Logger       *slog.Logger
	// Observe receives one outcome per processed job.
	Observe func(job, result string)
	Now     func() time.Time
}

type Worker struct {
	rdb      redis.Cmdable
	registry *Registry
	opts     WorkerOptions
}

func NewWorker(rdb redis.Cmdable, registry *Registry, opts WorkerOptions) *Worker {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 2 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.MaxBackoff < opts.RetryBackoff {
		opts.MaxBackoff = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Observe == nil {
		opts.Observe = func(string, string) {}
	}
	return &Worker{rdb: rdb, registry: registry, opts: opts}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.opts.Logger.Info("worker started",
		"queue", w.opts.Queue,
		"jobs", w.registry.Names(),
		"max_attempts", w.opts.MaxAttempts,
	)
	defer w.opts.Logger.Info("worker stopped", "queue", w.opts.Queue)

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, err := w.ProcessOne(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		w.opts.Logger.Error("queue poll failed", "err", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// promoteScript moves due retries from the delayed set onto the queue.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, v in ipairs(due) do
  redis.call('ZREM', KEYS[1], v)
  redis.call('LPUSH', KEYS[2], v)
end
return #due
`)

const promoteBatch = 100

// ProcessOne promotes due retries, then waits up to PollTimeout for a job
// and handles it. It reports whether a job was taken.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	keys := []string{DelayedKey(w.opts.Queue), w.opts.Queue}
	if err := promoteScript.Run(ctx, w.rdb, keys, w.opts.Now().UnixMilli(), promoteBatch).Err(); err != nil {
		return false, fmt.Errorf("queue: promote delayed: %w", err)
	}

	res, err := w.rdb.BRPop(ctx, w.opts.PollTimeout, w.opts.Queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return false, fmt.Errorf("queue: unexpected BRPOP reply %v", res)
	}
	w.handle(ctx, res[1])
	return true, nil
}

func (w *Worker) handle(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.opts.Logger.Error("dropping undecodable job", "err", err)
		_ = w.rdb.LPush(ctx, DeadLetterKey(w.opts.Queue), raw).Err()
		w.opts.Observe("", ResultDead)
		return
	}

	log := w.opts.Logger.With("job_id", job.ID, "job", job.Name, "attempt", job.Attempts+1)
	jobCtx := logger.With(ctx, log)

	h, ok := w.registry.Lookup(job.Name)
	if !ok {
		log.Warn("no handler for job")
		w.deadLetter(ctx, log, job)
		w.opts.Observe(job.Name, ResultUnknown)
		return
	}

	start := time.Now()
	err := safeCall(jobCtx, h, job)
	if err == nil {
		log.Info("job done", "duration_ms", time.Since(start).Milliseconds())
		w.opts.Observe(job.Name, ResultSuccess)
		return
	}

	job.Attempts++
	if IsPermanent(err) || job.Attempts >= w.opts.MaxAttempts {
		log.Error("job failed permanently", "err", err)
		w.deadLetter(ctx, log, job)
		w.opts.Observe(job.Name, ResultDead)
		return
	}

	delay := w.backoff(job.Attempts)
	log.Warn("job failed, will retry", "err", err, "retry_in", delay.String())
	if perr := w.schedule(ctx, job, w.opts.Now().Add(delay)); perr != nil {
		log.Error("requeue failed", "err", perr)
	}
	w.opts.Observe(job.Name, ResultRetry)
}

// backoff is RetryBackoff doubled per prior attempt, capped at MaxBackoff.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.opts.RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.opts.MaxBackoff {
			return w.opts.MaxBackoff
		}
	}
	return d
}

func (w *Worker) schedule(ctx context.Context, job Job, at time.Time) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job: %w", err)
	}
	return w.rdb.ZAdd(ctx, DelayedKey(w.opts.Queue), redis.Z{Score: float64(at.UnixMilli()), Member: b}).Err()
}

func (w *Worker) deadLetter(ctx context.Context, log *slog.Logger, job Job) {
	if err := push(ctx, w.rdb, DeadLetterKey(w.opts.Queue), job); err != nil {
		log.Error("dead-letter push failed", "err", err)
	}
}

func safeCall(ctx context.Context, h HandlerFunc, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}
