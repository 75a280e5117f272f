// Package mysql stores sessions and report snapshots in MySQL.
package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/session"
)

//go:embed schema.sql
var schema string

// DefaultTimeout bounds each statement issued by the store
const DefaultTimeout = 5 * time.Second

const sessionColumns = `id, catalog, phase, current_section, answers, status,
	created_at, updated_at, completed_at`

// Store implements session.Backend using MySQL
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

var _ session.Backend = (*Store)(nil)

// NewStore wraps an open database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, timeout: DefaultTimeout}
}

// NormalizeDSN forces the driver options the store relies on: DATETIME
// columns scanned as time.Time in UTC
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Connect opens a connection pool for dsn and verifies it
func Connect(ctx context.Context, dsn string) (*Store, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return NewStore(db), nil
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range statements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// statements splits a schema file into single statements; the driver
// rejects multi-statement queries unless the DSN opts in
func statements(sqlText string) []string {
	var out []string
	for _, part := range strings.Split(sqlText, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Save upserts a session
func (s *Store) Save(sess *session.Session) error {
	answers := []byte("{}")
	if sess.Answers != nil {
		data, err := json.Marshal(sess.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		answers = data
	}

	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			catalog = VALUES(catalog), phase = VALUES(phase),
			current_section = VALUES(current_section), answers = VALUES(answers),
			status = VALUES(status), updated_at = VALUES(updated_at),
			completed_at = VALUES(completed_at)`,
		sess.ID, sess.Catalog, string(sess.Phase), sess.CurrentSectionIndex,
		string(answers), string(sess.Status),
		sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(), nullTime(sess.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (s *Store) Get(id string) (*session.Session, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return sess, err
}

// Delete removes a session; its reports cascade
func (s *Store) Delete(id string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// List returns all session IDs, newest first
func (s *Store) List() ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAll returns every session, newest first
func (s *Store) ListAll() ([]*session.Session, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Exists reports whether a session is stored
func (s *Store) Exists(id string) bool {
	ctx, cancel := s.ctx()
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, id).Scan(&exists)
	return err == nil && exists
}

// SaveReport upserts a report snapshot
func (s *Store) SaveReport(record *session.ReportRecord) error {
	body, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	ctx, cancel := s.ctx()
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, session_id, score, band, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			score = VALUES(score), band = VALUES(band), report = VALUES(report)`,
		record.ID, record.SessionID, record.Report.Score, string(record.Report.Band),
		string(body), record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// GetReport retrieves one snapshot of a session
func (s *Store) GetReport(sessionID, reportID string) (*session.ReportRecord, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	record, err := scanReport(s.db.QueryRowContext(ctx, `
		SELECT id, session_id, report, created_at
		FROM reports WHERE id = ? AND session_id = ?`, reportID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return record, err
}

// ListReports returns a session's snapshots, oldest first
func (s *Store) ListReports(sessionID string) ([]*session.ReportRecord, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, report, created_at
		FROM reports WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	records := []*session.ReportRecord{}
	for rows.Next() {
		record, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var sess session.Session
	var phase, status string
	var answers []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.Catalog, &phase, &sess.CurrentSectionIndex,
		&answers, &status,
		&sess.CreatedAt, &sess.UpdatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Phase = assessment.Phase(phase)
	sess.Status = session.Status(status)
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	sess.Answers = assessment.NewAnswerStore()
	if err := json.Unmarshal(answers, sess.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return &sess, nil
}

func scanReport(row scanner) (*session.ReportRecord, error) {
	var record session.ReportRecord
	var body []byte

	if err := row.Scan(&record.ID, &record.SessionID, &body, &record.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if err := json.Unmarshal(body, &record.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
