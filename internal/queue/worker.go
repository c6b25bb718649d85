package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Run starts the retry mover, the stale-entry reclaimer and the consumer
// loop, then blocks until ctx is cancelled. In-flight jobs are drained
// before it returns.
func (q *Queue) Run(ctx context.Context) error {
	go q.runRetryMover(ctx)
	go q.runPELReclaimer(ctx)

	err := q.consumeLoop(ctx)

	// Wait for in-flight handlers by filling the semaphore.
	for i := 0; i < cap(q.sem); i++ {
		q.sem <- struct{}{}
	}
	return err
}

// consumeLoop blocks on XREADGROUP across all partition streams and
// dispatches each entry to the worker pool.
func (q *Queue) consumeLoop(ctx context.Context) error {
	streams := q.streams()
	args := make([]string, len(streams)*2)
	for i, s := range streams {
		args[i] = s
		args[len(streams)+i] = ">"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := q.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  args,
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[queue] xreadgroup error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				q.dispatch(ctx, stream.Stream, msg)
			}
		}
	}
}

// dispatch admits one stream entry into the pool: rate limit first, then a
// concurrency slot, then a goroutine running the handler. Malformed
// entries are ACKed immediately so they cannot wedge the group.
func (q *Queue) dispatch(ctx context.Context, stream string, msg goredis.XMessage) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		q.ack(ctx, stream, msg.ID)
		return
	}
	job, err := ParseJob(data)
	if err != nil {
		log.Printf("[queue] %v — acking poison entry %s", err, msg.ID)
		q.ack(ctx, stream, msg.ID)
		return
	}

	if err := q.limiter.Wait(ctx); err != nil {
		return // shutting down; entry stays pending for redelivery
	}
	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	go func() {
		defer func() { <-q.sem }()
		q.process(ctx, stream, msg.ID, job)
	}()
}

// process runs one job attempt and settles its delivery: ACK on success,
// retry or dead-letter on failure. A panic in the handler fails only this
// job; sibling jobs in the pool are unaffected.
func (q *Queue) process(ctx context.Context, stream, msgID string, job Job) {
	log.Printf("[worker] processing order %s (attempt %d/%d)",
		job.Order.ID, job.Attempt, q.cfg.Policy.MaxAttempts)

	err := q.invoke(ctx, job)

	// Settlement operations run on a detached context so a shutdown that
	// cancels ctx mid-job cannot lose the ACK or the retry entry.
	settleCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = settleCtx

	switch {
	case err == nil:
		if q.prom != nil {
			q.prom.JobsResolved.Inc()
		}

	case errors.Is(err, ErrNonRetryable):
		log.Printf("[worker] order %s rejected: %v", job.Order.ID, err)
		q.deadLetter(ctx, job, err)

	case q.cfg.Policy.Exhausted(job.Attempt):
		log.Printf("[worker] order %s failed attempt %d, retries exhausted: %v",
			job.Order.ID, job.Attempt, err)
		q.deadLetter(ctx, job, err)

	default:
		log.Printf("[worker] order %s failed attempt %d: %v", job.Order.ID, job.Attempt, err)
		if rerr := q.scheduleRetry(ctx, job); rerr != nil {
			// Leave the entry pending; the reclaimer will redeliver it.
			log.Printf("[worker] retry scheduling failed for order %s: %v", job.Order.ID, rerr)
			return
		}
	}

	q.ack(ctx, stream, msgID)
}

func (q *Queue) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return q.handler(ctx, job)
}

func (q *Queue) deadLetter(ctx context.Context, job Job, cause error) {
	if q.prom != nil {
		q.prom.DeadLetters.Inc()
	}
	if q.dead == nil {
		log.Printf("[worker] no dead-letter sink; dropping order %s: %v", job.Order.ID, cause)
		return
	}
	if err := q.dead.Record(ctx, job, cause.Error()); err != nil {
		log.Printf("[worker] dead-letter record failed for order %s: %v", job.Order.ID, err)
	}
}

func (q *Queue) ack(ctx context.Context, stream, msgID string) {
	if err := q.client.XAck(ctx, stream, q.cfg.Group, msgID).Err(); err != nil {
		log.Printf("[queue] xack %s %s: %v", stream, msgID, err)
	}
}
