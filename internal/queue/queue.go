// Package queue implements the durable order queue and its worker pool on
// Redis Streams. Each partition is a stream consumed through a consumer
// group, which gives at-least-once delivery with at most one active
// consumer per entry. Retries are parked in a sorted set scored by their
// ready time and moved back onto their partition when due.
package queue

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"swap-enginev1/internal/metrics"
	"swap-enginev1/internal/model"
)

const (
	streamPrefix = "orders:stream:"
	retryKey     = "orders:retry"

	streamMaxLen  = 100000
	readBlock     = 2 * time.Second
	readCount     = 10
	moverInterval = 250 * time.Millisecond
	moverBatch    = 100

	reclaimInterval = 30 * time.Second
	reclaimMinIdle  = 60 * time.Second
)

// Handler processes one job attempt. A nil return resolves the job; an
// error wrapping ErrNonRetryable dead-letters it; any other error retries
// it per the queue's policy.
type Handler func(ctx context.Context, job Job) error

// DeadLetterSink records jobs that exhausted their attempts, for operator
// inspection.
type DeadLetterSink interface {
	Record(ctx context.Context, job Job, reason string) error
}

// Config configures the queue and its worker pool.
type Config struct {
	Addr     string
	Password string
	DB       int

	Partitions  int
	Group       string
	Consumer    string
	Concurrency int

	// Rate limit: at most RateMax jobs started per RateWindow, globally.
	RateMax    int
	RateWindow time.Duration

	Policy RetryPolicy
}

// Queue is the durable work queue plus its consumer side.
type Queue struct {
	client  *goredis.Client
	cfg     Config
	handler Handler
	dead    DeadLetterSink
	prom    *metrics.Metrics
	limiter *rate.Limiter
	sem     chan struct{}
}

// New connects to Redis, pings it, and ensures the consumer group exists
// on every partition stream.
func New(cfg Config, handler Handler, dead DeadLetterSink, prom *metrics.Metrics) (*Queue, error) {
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Group == "" {
		cfg.Group = "order-workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-1"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	q := &Queue{
		client:  client,
		cfg:     cfg,
		handler: handler,
		dead:    dead,
		prom:    prom,
		limiter: newLimiter(cfg.RateMax, cfg.RateWindow),
		sem:     make(chan struct{}, cfg.Concurrency),
	}
	if err := q.ensureGroups(ctx); err != nil {
		return nil, err
	}

	log.Printf("[queue] connected to %s (partitions=%d group=%s consumer=%s concurrency=%d)",
		cfg.Addr, cfg.Partitions, cfg.Group, cfg.Consumer, cfg.Concurrency)
	return q, nil
}

func newLimiter(max int, window time.Duration) *rate.Limiter {
	if max <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(max)/window.Seconds()), max)
}

// Client returns the underlying Redis client for health checks.
func (q *Queue) Client() *goredis.Client { return q.client }

// Close releases the Redis connection.
func (q *Queue) Close() error { return q.client.Close() }

func (q *Queue) streamKey(partition int) string {
	return fmt.Sprintf("%s%d", streamPrefix, partition)
}

func (q *Queue) streams() []string {
	out := make([]string, q.cfg.Partitions)
	for i := range out {
		out[i] = q.streamKey(i)
	}
	return out
}

func (q *Queue) ensureGroups(ctx context.Context) error {
	for _, stream := range q.streams() {
		err := q.client.XGroupCreateMkStream(ctx, stream, q.cfg.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// Enqueue durably records an order for processing. It returns once the
// entry is in its partition stream; no worker needs to be free.
func (q *Queue) Enqueue(ctx context.Context, order model.Order) error {
	job := Job{Order: order, Attempt: 1, EnqueuedAt: time.Now().UTC()}
	return q.add(ctx, job)
}

func (q *Queue) add(ctx context.Context, job Job) error {
	stream := q.streamKey(partitionFor(job.Order.ID, q.cfg.Partitions))
	err := q.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(job.Marshal())},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	log.Printf("[queue] order %s added to %s (attempt %d)", job.Order.ID, stream, job.Attempt)
	return nil
}

// scheduleRetry parks the next attempt on the retry set. The caller ACKs
// the current delivery afterwards, so a crash in between only causes a
// redelivery, never a loss.
func (q *Queue) scheduleRetry(ctx context.Context, job Job) error {
	next := Job{Order: job.Order, Attempt: job.Attempt + 1, EnqueuedAt: job.EnqueuedAt}
	delay := q.cfg.Policy.Delay(next.Attempt)
	ready := time.Now().Add(delay)

	err := q.client.ZAdd(ctx, retryKey, &goredis.Z{
		Score:  float64(ready.UnixMilli()),
		Member: string(next.Marshal()),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd retry: %w", err)
	}

	if q.prom != nil {
		q.prom.RetriesScheduled.Inc()
	}
	log.Printf("[queue] order %s scheduled for attempt %d in %v", job.Order.ID, next.Attempt, delay)
	return nil
}

// runRetryMover periodically moves due retry entries back onto their
// partition streams. Same shape as a delayed-job set: score is the ready
// time in epoch millis.
func (q *Queue) runRetryMover(ctx context.Context) {
	ticker := time.NewTicker(moverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.moveDueRetries(ctx)
		}
	}
}

func (q *Queue) moveDueRetries(ctx context.Context) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	members, err := q.client.ZRangeByScore(ctx, retryKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: moverBatch,
	}).Result()
	if err != nil || len(members) == 0 {
		return
	}

	for _, member := range members {
		job, perr := ParseJob(member)
		if perr != nil {
			// Poison entry; drop it rather than loop forever.
			log.Printf("[queue] dropping bad retry entry: %v", perr)
			q.client.ZRem(ctx, retryKey, member)
			continue
		}
		if err := q.add(ctx, job); err != nil {
			log.Printf("[queue] retry requeue failed for order %s: %v", job.Order.ID, err)
			continue
		}
		q.client.ZRem(ctx, retryKey, member)
	}
}

// runPELReclaimer periodically claims entries that sat unacknowledged past
// minIdle — a worker died mid-job — and reprocesses them on this consumer.
func (q *Queue) runPELReclaimer(ctx context.Context) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stream := range q.streams() {
				q.reclaimStream(ctx, stream)
			}
		}
	}
}

func (q *Queue) reclaimStream(ctx context.Context, stream string) {
	pending, err := q.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: stream,
		Group:  q.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  moverBatch,
		Idle:   reclaimMinIdle,
	}).Result()
	if err != nil || len(pending) == 0 {
		return
	}

	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	claimed, err := q.client.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  reclaimMinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		log.Printf("[queue] xclaim %s: %v", stream, err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	log.Printf("[queue] reclaimed %d stale entries from %s", len(claimed), stream)
	if q.prom != nil {
		q.prom.EntriesReclaimed.Add(float64(len(claimed)))
	}
	for _, msg := range claimed {
		q.dispatch(ctx, stream, msg)
	}
}
