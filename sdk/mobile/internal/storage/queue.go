package storage

import (
	"fmt"
	"strings"
	"time"
)

// PendingEvent is an analytics envelope waiting for delivery.
type PendingEvent struct {
	ID             int64
	AdSpaceID      string
	EventType      string
	Payload        string
	IdempotencyKey string
	CreatedAt      int64 // unix ms
	RetryCount     int
}

// Queue is a FIFO analytics queue backed by SQLite. When it holds maxSize
// events the oldest ones are evicted to make room.
type Queue struct {
	db      *DB
	maxSize int
	now     func() time.Time
}

// NewQueue creates a Queue over db. A non-positive maxSize defaults to 1000.
func NewQueue(db *DB, maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Queue{db: db, maxSize: maxSize, now: time.Now}
}

// Enqueue stores an event. Duplicate idempotency keys are ignored without error.
func (q *Queue) Enqueue(e PendingEvent) error {
	count, err := q.Count()
	if err != nil {
		return err
	}
	if count >= q.maxSize {
		if err := q.evictOldest(count - q.maxSize + 1); err != nil {
			return err
		}
	}

	createdAt := e.CreatedAt
	if createdAt == 0 {
		createdAt = q.now().UnixMilli()
	}

	_, err = q.db.Exec(
		`INSERT OR IGNORE INTO analytics_events (ad_space_id, event_type, payload, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.AdSpaceID, e.EventType, e.Payload, e.IdempotencyKey, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// DequeueBatch returns up to n events, oldest first, without removing them.
// The result is never nil.
func (q *Queue) DequeueBatch(n int) ([]PendingEvent, error) {
	events := []PendingEvent{}
	if n <= 0 {
		return events, nil
	}

	rows, err := q.db.Query(
		`SELECT id, ad_space_id, event_type, payload, idempotency_key, created_at, retry_count
		 FROM analytics_events
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e PendingEvent
		if err := rows.Scan(&e.ID, &e.AdSpaceID, &e.EventType, &e.Payload, &e.IdempotencyKey, &e.CreatedAt, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Delete removes events by ID after delivery.
func (q *Queue) Delete(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM analytics_events WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := q.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

// MarkRetry bumps the retry counter of an event.
func (q *Queue) MarkRetry(id int64) error {
	result, err := q.db.Exec(
		`UPDATE analytics_events SET retry_count = retry_count + 1, last_retry_at = ? WHERE id = ?`,
		q.now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %d not found", id)
	}
	return nil
}

// DropExhausted deletes events that have been retried maxRetries times or
// more and reports how many were dropped.
func (q *Queue) DropExhausted(maxRetries int) (int, error) {
	if maxRetries <= 0 {
		return 0, nil
	}
	result, err := q.db.Exec(`DELETE FROM analytics_events WHERE retry_count >= ?`, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("drop exhausted: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// Count returns the number of queued events.
func (q *Queue) Count() (int, error) {
	var count int
	if err := q.db.QueryRow("SELECT COUNT(*) FROM analytics_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// Clear removes every queued event.
func (q *Queue) Clear() error {
	if _, err := q.db.Exec("DELETE FROM analytics_events"); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}

func (q *Queue) evictOldest(n int) error {
	_, err := q.db.Exec(
		`DELETE FROM analytics_events WHERE id IN (
			SELECT id FROM analytics_events ORDER BY created_at ASC, id ASC LIMIT ?
		)`,
		n,
	)
	if err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}
