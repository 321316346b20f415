// Package activity records portal usage events.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Event types written by portal sessions.
const (
	TypeLogin              = "login"
	TypeLogout             = "logout"
	TypeTopicCompleted     = "topic_completed"
	TypeCompletionDeferred = "completion_deferred"
)

// Event is one usage record persisted to the events table.
type Event struct {
	UID       string
	SessionID string
	Type      string
	Data      map[string]any
	CreatedAt time.Time
}

// Logger defines event logging behavior.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Nop ignores all events.
type Nop struct{}

func (Nop) Log(context.Context, Event) error {
	return nil
}

// Memory stores events in memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{
		events: []Event{},
	}
}

func (l *Memory) Log(_ context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *Memory) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// OfType returns the recorded events with the given type.
func (l *Memory) OfType(eventType string) []Event {
	var out []Event
	for _, e := range l.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Postgres inserts events into the events table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (l *Postgres) Log(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO events (uid, session_id, event_type, data, created_at)
		 VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4::jsonb, $5)`,
		event.UID,
		event.SessionID,
		event.Type,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.Type,
		"session_id", event.SessionID,
		"uid", event.UID,
	)
	return nil
}

// CountByType returns how many events of each type a user has produced.
func (l *Postgres) CountByType(ctx context.Context, uid string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT event_type, COUNT(*) FROM events WHERE uid = $1 GROUP BY event_type`, uid)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			eventType string
			n         int
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		out[eventType] = n
	}
	return out, rows.Err()
}
