package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"swap-enginev1/internal/model"
)

// ErrNonRetryable marks a handler error that must not be retried; the job
// goes straight to the dead-letter journal. Wrap with fmt.Errorf("...: %w").
var ErrNonRetryable = errors.New("non-retryable")

// Job is the unit of work carried on a partition stream. Attempt is 1-based
// and travels with the payload so retries survive process restarts.
type Job struct {
	Order      model.Order `json:"order"`
	Attempt    int         `json:"attempt"`
	EnqueuedAt time.Time   `json:"enqueuedAt"`
}

// Marshal encodes the job for the stream's data field.
func (j Job) Marshal() []byte {
	buf, _ := json.Marshal(j)
	return buf
}

// ParseJob decodes a stream payload.
func ParseJob(data string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return Job{}, fmt.Errorf("job decode: %w", err)
	}
	if j.Order.ID == "" {
		return Job{}, errors.New("job decode: empty order id")
	}
	return j, nil
}

// partitionFor hashes an order id onto one of n partition streams, so one
// order always lands on the same partition (FIFO per partition).
func partitionFor(orderID string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(crc32.ChecksumIEEE([]byte(orderID)) % uint32(n))
}
