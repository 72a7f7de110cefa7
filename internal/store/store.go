package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"calltriage/internal/domain"
)

var ErrCallNotFound = errors.New("call not found")

const schema = `
CREATE TABLE IF NOT EXISTS calls (
	session_id TEXT PRIMARY KEY,
	locale TEXT NOT NULL,
	transcript TEXT NOT NULL,
	note TEXT NOT NULL,
	level TEXT NOT NULL,
	score REAL NOT NULL,
	rationale TEXT NOT NULL,
	rule_level INTEGER NOT NULL,
	method TEXT NOT NULL,
	time_to_response TEXT NOT NULL,
	word_count INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	completed_at REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS calls_completed_at ON calls(completed_at DESC);
`

// Store persists finalized calls in SQLite.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "calltriage", "calls.sqlite")
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCall inserts or replaces one finalized call.
func (s *Store) SaveCall(ctx context.Context, record domain.CallRecord) error {
	note, err := json.Marshal(record.Note)
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO calls (
			session_id, locale, transcript, note, level, score, rationale,
			rule_level, method, time_to_response, word_count, duration_ms, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.SessionID, string(record.Locale), record.Transcript, string(note),
		string(record.Verdict.Level), record.Verdict.Score, record.Verdict.Rationale,
		int(record.Verdict.RuleLevel), string(record.Verdict.Method), record.Verdict.TimeToResponse,
		record.WordCount, record.Duration.Milliseconds(), unixFromTime(record.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

// GetCall returns one call by session id.
func (s *Store) GetCall(ctx context.Context, sessionID string) (domain.CallRecord, error) {
	row := s.db.QueryRowContext(ctx, selectCalls+` WHERE session_id = ?`, sessionID)
	record, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CallRecord{}, ErrCallNotFound
	}
	if err != nil {
		return domain.CallRecord{}, err
	}
	return record, nil
}

// RecentCalls returns up to limit calls, most recently completed first.
func (s *Store) RecentCalls(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectCalls+` ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	records := []domain.CallRecord{}
	for rows.Next() {
		record, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

const selectCalls = `
	SELECT session_id, locale, transcript, note, level, score, rationale,
		rule_level, method, time_to_response, word_count, duration_ms, completed_at
	FROM calls`

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (domain.CallRecord, error) {
	var (
		record      domain.CallRecord
		locale      string
		note        string
		level       string
		ruleLevel   int
		method      string
		durationMS  int64
		completedAt float64
	)
	if err := row.Scan(&record.SessionID, &locale, &record.Transcript, &note,
		&level, &record.Verdict.Score, &record.Verdict.Rationale,
		&ruleLevel, &method, &record.Verdict.TimeToResponse,
		&record.WordCount, &durationMS, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CallRecord{}, err
		}
		return domain.CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	if err := json.Unmarshal([]byte(note), &record.Note); err != nil {
		return domain.CallRecord{}, fmt.Errorf("decode note for %s: %w", record.SessionID, err)
	}

	record.Locale = domain.Locale(locale)
	record.Verdict.Level = domain.UrgencyLevel(level)
	record.Verdict.RuleLevel = domain.ESILevel(ruleLevel)
	record.Verdict.Method = domain.FusionMethod(method)
	record.Duration = time.Duration(durationMS) * time.Millisecond
	record.CompletedAt = timeFromUnix(completedAt)
	return record, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
