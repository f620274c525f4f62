// Package store implements feedback.Store on SQLite and in memory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zen-systems/switchyard/pkg/feedback"
	"github.com/zen-systems/switchyard/pkg/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS routing_decisions (
	id TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	model TEXT NOT NULL,
	strategy TEXT NOT NULL,
	confidence REAL NOT NULL,
	decision_json TEXT NOT NULL,
	archive_ref TEXT,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS performance_records (
	id TEXT PRIMARY KEY,
	decision_id TEXT,
	model TEXT NOT NULL,
	task_type TEXT NOT NULL,
	response_time_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error_kind TEXT,
	tokens INTEGER,
	user_rating INTEGER,
	hour_of_day INTEGER NOT NULL,
	day_of_week INTEGER NOT NULL,
	session_id TEXT,
	context_json TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_performance_task_time ON performance_records (task_type, created_at);
`

// SQLite persists decisions and performance records in a SQLite database.
// Writes are serialized; reads run concurrently.
type SQLite struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// busyTimeoutMs bounds how long a connection waits on another process's
// write lock before failing with SQLITE_BUSY.
const busyTimeoutMs = 5000

// dsn adds per-connection pragmas. Concurrent CLI runs share the file, so
// writers wait for the lock and readers do not block them.
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMs)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *SQLite) Path() string {
	return s.path
}

// InsertDecision implements feedback.Store.
func (s *SQLite) InsertDecision(ctx context.Context, rec feedback.DecisionRecord) error {
	data, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO routing_decisions
		(id, task_type, model, strategy, confidence, decision_json, archive_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.TaskType),
		rec.Decision.Model,
		string(rec.Decision.Strategy),
		rec.Decision.Confidence,
		string(data),
		nullString(rec.ArchiveRef),
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// InsertPerformanceRecord implements feedback.Store.
func (s *SQLite) InsertPerformanceRecord(ctx context.Context, rec feedback.PerformanceRecord) error {
	snapshot, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("encode context snapshot: %w", err)
	}
	var rating sql.NullInt64
	if rec.UserRating != nil {
		rating = sql.NullInt64{Int64: int64(*rec.UserRating), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO performance_records
		(id, decision_id, model, task_type, response_time_ms, success, error_kind, tokens,
		 user_rating, hour_of_day, day_of_week, session_id, context_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullString(rec.DecisionID),
		rec.Model,
		string(rec.TaskType),
		rec.ResponseTimeMs,
		boolToInt(rec.Success),
		nullString(rec.ErrorKind),
		rec.Tokens,
		rating,
		rec.HourOfDay,
		rec.DayOfWeek,
		nullString(rec.SessionID),
		string(snapshot),
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert performance record: %w", err)
	}
	return nil
}

// QueryRecords implements feedback.Store. Records are returned oldest first.
func (s *SQLite) QueryRecords(ctx context.Context, taskType task.Type, since time.Time) ([]feedback.PerformanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, decision_id, model, task_type, response_time_ms, success, error_kind, tokens,
		user_rating, hour_of_day, day_of_week, session_id, context_json, created_at
		FROM performance_records
		WHERE task_type = ? AND created_at >= ?
		ORDER BY created_at, id`,
		string(taskType), since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query performance records: %w", err)
	}
	defer rows.Close()

	var records []feedback.PerformanceRecord
	for rows.Next() {
		var (
			rec        feedback.PerformanceRecord
			decisionID sql.NullString
			errorKind  sql.NullString
			sessionID  sql.NullString
			tokens     sql.NullInt64
			rating     sql.NullInt64
			success    int
			taskName   string
			snapshot   string
			createdAt  int64
		)
		if err := rows.Scan(&rec.ID, &decisionID, &rec.Model, &taskName, &rec.ResponseTimeMs, &success,
			&errorKind, &tokens, &rating, &rec.HourOfDay, &rec.DayOfWeek, &sessionID, &snapshot, &createdAt); err != nil {
			return nil, fmt.Errorf("scan performance record: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &rec.Context); err != nil {
			return nil, fmt.Errorf("decode context snapshot %s: %w", rec.ID, err)
		}
		rec.DecisionID = decisionID.String
		rec.TaskType = task.Type(taskName)
		rec.Success = success == 1
		rec.ErrorKind = errorKind.String
		rec.Tokens = int(tokens.Int64)
		rec.SessionID = sessionID.String
		if rating.Valid {
			v := int(rating.Int64)
			rec.UserRating = &v
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance records: %w", err)
	}
	return records, nil
}

// Decision loads a stored decision by id.
func (s *SQLite) Decision(ctx context.Context, id string) (feedback.DecisionRecord, error) {
	var (
		rec       feedback.DecisionRecord
		taskName  string
		data      string
		ref       sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, task_type, decision_json, archive_ref, created_at FROM routing_decisions WHERE id = ?`, id).
		Scan(&rec.ID, &taskName, &data, &ref, &createdAt)
	if err != nil {
		return feedback.DecisionRecord{}, fmt.Errorf("load decision %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(data), &rec.Decision); err != nil {
		return feedback.DecisionRecord{}, fmt.Errorf("decode decision %s: %w", id, err)
	}
	rec.TaskType = task.Type(taskName)
	rec.ArchiveRef = ref.String
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
