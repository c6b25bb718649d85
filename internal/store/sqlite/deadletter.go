// Package sqlite persists dead-lettered jobs so an operator can inspect
// orders that exhausted their retries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"swap-enginev1/internal/queue"
)

// Journal is a single-writer SQLite dead-letter store.
type Journal struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Open creates the journal, initializing the database with WAL mode and schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened dead-letter journal at %s", path)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id     TEXT    NOT NULL,
			input_token  TEXT    NOT NULL,
			output_token TEXT    NOT NULL,
			amount       REAL    NOT NULL,
			attempts     INTEGER NOT NULL,
			reason       TEXT    NOT NULL,
			enqueued_at  INTEGER NOT NULL,
			failed_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_dead_letters_order ON dead_letters(order_id);
	`)
	return err
}

// Record inserts a dead-lettered job. Implements queue.DeadLetterSink.
func (j *Journal) Record(ctx context.Context, job queue.Job, reason string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dead_letters
			(order_id, input_token, output_token, amount, attempts, reason, enqueued_at, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Order.ID,
		job.Order.InputToken,
		job.Order.OutputToken,
		job.Order.Amount,
		job.Attempt,
		reason,
		job.EnqueuedAt.Unix(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("dead letter insert: %w", err)
	}
	log.Printf("[sqlite] dead-lettered order %s after %d attempts: %s", job.Order.ID, job.Attempt, reason)
	return nil
}

// DeadLetter is one inspectable journal row.
type DeadLetter struct {
	ID          int64     `json:"id"`
	OrderID     string    `json:"order_id"`
	InputToken  string    `json:"input_token"`
	OutputToken string    `json:"output_token"`
	Amount      float64   `json:"amount"`
	Attempts    int       `json:"attempts"`
	Reason      string    `json:"reason"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	FailedAt    time.Time `json:"failed_at"`
}

// Recent returns the most recently failed entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, order_id, input_token, output_token, amount, attempts, reason, enqueued_at, failed_at
		FROM dead_letters ORDER BY failed_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("dead letter query: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		var enq, failed int64
		if err := rows.Scan(&dl.ID, &dl.OrderID, &dl.InputToken, &dl.OutputToken,
			&dl.Amount, &dl.Attempts, &dl.Reason, &enq, &failed); err != nil {
			return nil, err
		}
		dl.EnqueuedAt = time.Unix(enq, 0).UTC()
		dl.FailedAt = time.Unix(failed, 0).UTC()
		out = append(out, dl)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
