package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluewire-labs/callgo-ai/src/logger"
)

// Call is one call record.
type Call struct {
	ID           int64      `json:"id"`
	CallSID      string     `json:"call_sid"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Status       string     `json:"status"`
	CallerNumber *string    `json:"caller_number"`
	CallDuration *int       `json:"call_duration"`
}

// ConversationEntry is one transcript line of a call.
type ConversationEntry struct {
	ID        int64     `json:"id"`
	CallID    int64     `json:"call_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// PerformanceMetric is one timed step of a call.
type PerformanceMetric struct {
	ID         int64           `json:"id"`
	CallID     int64           `json:"call_id"`
	StepName   string          `json:"step_name"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	DurationMs int             `json:"duration_ms"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// CallDetails is a call with its transcript and metrics.
type CallDetails struct {
	Call
	Conversation []ConversationEntry `json:"conversation"`
	Metrics      []PerformanceMetric `json:"metrics"`
}

// StepStatistics aggregates metric timings per step.
type StepStatistics struct {
	StepName    string  `json:"step_name"`
	Count       int64   `json:"count"`
	AvgDuration float64 `json:"avg_duration"`
	MinDuration float64 `json:"min_duration"`
	MaxDuration float64 `json:"max_duration"`
}

// TableStats holds row counts for the admin panel.
type TableStats struct {
	Calls               int64 `json:"calls"`
	ConversationEntries int64 `json:"conversation_entries"`
	PerformanceMetrics  int64 `json:"performance_metrics"`
	ActiveCalls         int64 `json:"active_calls"`
}

// CallStore is the persistence contract consumed by the admin API and the
// relay's recording sinks. *Store implements it against Postgres; tests use
// fakes.
type CallStore interface {
	CreateCall(ctx context.Context, callSID, callerNumber string) (int64, error)
	UpdateCallStatus(ctx context.Context, callID int64, status string, duration *int) error
	UpdateCallWithTwilioData(ctx context.Context, callSID, status string, duration *int) error
	AddConversationEntry(ctx context.Context, callSID, role, content string) error
	AddPerformanceMetric(ctx context.Context, callSID, stepName string, startTime, endTime time.Time, metadata map[string]interface{}) error
	GetCalls(ctx context.Context, limit, offset int) ([]Call, error)
	GetCallDetails(ctx context.Context, callID int64) (*CallDetails, error)
	GetCallBySID(ctx context.Context, callSID string) (*Call, error)
	GetPerformanceStatistics(ctx context.Context) ([]StepStatistics, error)
	Stats(ctx context.Context) (*TableStats, error)
}

// Store implements CallStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	log := logger.Component("database")
	log.Info("Database initialized successfully")
	return &Store{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateCall inserts a new in-progress call record and returns its ID.
func (s *Store) CreateCall(ctx context.Context, callSID, callerNumber string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO calls (call_sid, start_time, status, caller_number)
		 VALUES ($1, now(), 'in-progress', NULLIF($2, ''))
		 RETURNING id`,
		callSID, callerNumber,
	).Scan(&id)
	if err != nil {
		s.log.Error("Error creating call record: %v", err)
		return 0, fmt.Errorf("store: create call: %w", err)
	}
	s.log.Info("Created new call record with ID: %d", id)
	return id, nil
}

// ensureCall resolves a call SID to its row ID, creating a stub record when
// the call was never explicitly created (e.g. a relay session recorded
// before any webhook wrote the call).
func (s *Store) ensureCall(ctx context.Context, callSID string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO calls (call_sid) VALUES ($1)
		 ON CONFLICT (call_sid) DO UPDATE SET call_sid = EXCLUDED.call_sid
		 RETURNING id`,
		callSID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: resolve call %s: %w", callSID, err)
	}
	return id, nil
}

// UpdateCallStatus updates a call's status; a "completed" status also stamps
// the end time and duration.
func (s *Store) UpdateCallStatus(ctx context.Context, callID int64, status string, duration *int) error {
	var err error
	if status == "completed" {
		_, err = s.pool.Exec(ctx,
			`UPDATE calls SET status = $1, end_time = now(), call_duration = $2 WHERE id = $3`,
			status, duration, callID)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE calls SET status = $1 WHERE id = $2`, status, callID)
	}
	if err != nil {
		s.log.Error("Error updating call status: %v", err)
		return fmt.Errorf("store: update call status: %w", err)
	}
	s.log.Info("Updated call %d status to %s", callID, status)
	return nil
}

// UpdateCallWithTwilioData reconciles a call record with state fetched from
// the Twilio REST API.
func (s *Store) UpdateCallWithTwilioData(ctx context.Context, callSID, status string, duration *int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET
		    status = $1,
		    call_duration = COALESCE($2, call_duration),
		    end_time = CASE WHEN $1 = 'completed' AND end_time IS NULL THEN now() ELSE end_time END
		 WHERE call_sid = $3`,
		status, duration, callSID)
	if err != nil {
		s.log.Error("Error updating call with Twilio data: %v", err)
		return fmt.Errorf("store: update call with twilio data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: no call found with SID %s", callSID)
	}
	s.log.Info("Updated call %s with Twilio data", callSID)
	return nil
}

// AddConversationEntry appends one transcript line to a call.
func (s *Store) AddConversationEntry(ctx context.Context, callSID, role, content string) error {
	callID, err := s.ensureCall(ctx, callSID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO conversation_entries (call_id, timestamp, role, content)
		 VALUES ($1, now(), $2, $3)`,
		callID, role, content)
	if err != nil {
		s.log.Error("Error adding conversation entry: %v", err)
		return fmt.Errorf("store: add conversation entry: %w", err)
	}
	s.log.Debug("Added conversation entry for call %d", callID)
	return nil
}

// AddPerformanceMetric records one timed step of a call.
func (s *Store) AddPerformanceMetric(ctx context.Context, callSID, stepName string, startTime, endTime time.Time, metadata map[string]interface{}) error {
	callID, err := s.ensureCall(ctx, callSID)
	if err != nil {
		return err
	}

	var meta []byte
	if metadata != nil {
		if meta, err = json.Marshal(metadata); err != nil {
			return fmt.Errorf("store: marshal metric metadata: %w", err)
		}
	}

	durationMs := int(endTime.Sub(startTime).Milliseconds())
	_, err = s.pool.Exec(ctx,
		`INSERT INTO performance_metrics (call_id, step_name, start_time, end_time, duration_ms, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		callID, stepName, startTime, endTime, durationMs, meta)
	if err != nil {
		s.log.Error("Error adding performance metric: %v", err)
		return fmt.Errorf("store: add performance metric: %w", err)
	}
	s.log.Info("Added performance metric for call %d: %s took %dms", callID, stepName, durationMs)
	return nil
}

// GetCalls returns recent calls, newest first.
func (s *Store) GetCalls(ctx context.Context, limit, offset int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, call_sid, start_time, end_time, status, caller_number, call_duration
		 FROM calls ORDER BY start_time DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: get calls: %w", err)
	}
	defer rows.Close()
	return scanCalls(rows)
}

// GetCallBySID returns the call record for a Twilio call SID, or nil when
// no such call exists.
func (s *Store) GetCallBySID(ctx context.Context, callSID string) (*Call, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, call_sid, start_time, end_time, status, caller_number, call_duration
		 FROM calls WHERE call_sid = $1`,
		callSID)
	if err != nil {
		return nil, fmt.Errorf("store: get call by SID: %w", err)
	}
	defer rows.Close()

	calls, err := scanCalls(rows)
	if err != nil || len(calls) == 0 {
		return nil, err
	}
	return &calls[0], nil
}

// GetCallDetails returns a call with its conversation and metrics, or nil
// when the call does not exist.
func (s *Store) GetCallDetails(ctx context.Context, callID int64) (*CallDetails, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, call_sid, start_time, end_time, status, caller_number, call_duration
		 FROM calls WHERE id = $1`,
		callID)
	if err != nil {
		return nil, fmt.Errorf("store: get call: %w", err)
	}
	calls, err := scanCalls(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}

	details := &CallDetails{Call: calls[0]}

	convRows, err := s.pool.Query(ctx,
		`SELECT id, call_id, timestamp, role, content
		 FROM conversation_entries WHERE call_id = $1 ORDER BY timestamp`,
		callID)
	if err != nil {
		return nil, fmt.Errorf("store: get conversation: %w", err)
	}
	defer convRows.Close()
	for convRows.Next() {
		var e ConversationEntry
		if err := convRows.Scan(&e.ID, &e.CallID, &e.Timestamp, &e.Role, &e.Content); err != nil {
			return nil, fmt.Errorf("store: scan conversation entry: %w", err)
		}
		details.Conversation = append(details.Conversation, e)
	}
	if err := convRows.Err(); err != nil {
		return nil, fmt.Errorf("store: read conversation: %w", err)
	}

	metricRows, err := s.pool.Query(ctx,
		`SELECT id, call_id, step_name, start_time, end_time, duration_ms, metadata
		 FROM performance_metrics WHERE call_id = $1 ORDER BY start_time`,
		callID)
	if err != nil {
		return nil, fmt.Errorf("store: get metrics: %w", err)
	}
	defer metricRows.Close()
	for metricRows.Next() {
		var m PerformanceMetric
		if err := metricRows.Scan(&m.ID, &m.CallID, &m.StepName, &m.StartTime, &m.EndTime, &m.DurationMs, &m.Metadata); err != nil {
			return nil, fmt.Errorf("store: scan metric: %w", err)
		}
		details.Metrics = append(details.Metrics, m)
	}
	if err := metricRows.Err(); err != nil {
		return nil, fmt.Errorf("store: read metrics: %w", err)
	}

	return details, nil
}

// GetPerformanceStatistics aggregates metric timings per step, slowest
// average first.
func (s *Store) GetPerformanceStatistics(ctx context.Context) ([]StepStatistics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT step_name, COUNT(*), AVG(duration_ms), MIN(duration_ms), MAX(duration_ms)
		 FROM performance_metrics
		 GROUP BY step_name
		 ORDER BY AVG(duration_ms) DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: get performance statistics: %w", err)
	}
	defer rows.Close()

	var stats []StepStatistics
	for rows.Next() {
		var st StepStatistics
		if err := rows.Scan(&st.StepName, &st.Count, &st.AvgDuration, &st.MinDuration, &st.MaxDuration); err != nil {
			return nil, fmt.Errorf("store: scan statistics: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read statistics: %w", err)
	}
	return stats, nil
}

// Stats returns table row counts for the admin panel.
func (s *Store) Stats(ctx context.Context) (*TableStats, error) {
	var st TableStats
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM calls),
		   (SELECT COUNT(*) FROM conversation_entries),
		   (SELECT COUNT(*) FROM performance_metrics),
		   (SELECT COUNT(*) FROM calls WHERE status = 'in-progress')`,
	).Scan(&st.Calls, &st.ConversationEntries, &st.PerformanceMetrics, &st.ActiveCalls)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	return &st, nil
}

func scanCalls(rows pgx.Rows) ([]Call, error) {
	var calls []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.CallSID, &c.StartTime, &c.EndTime, &c.Status, &c.CallerNumber, &c.CallDuration); err != nil {
			return nil, fmt.Errorf("store: scan call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read calls: %w", err)
	}
	return calls, nil
}
