package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/session"
)

const sessionColumns = `id, catalog, phase, current_section, answers, status,
	created_at, updated_at, completed_at`

// SessionStore implements session and report persistence backed by SQLite.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SQLite-backed session store.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save persists a session (insert or update).
func (s *SessionStore) Save(sess *session.Session) error {
	answers, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if sess.Answers == nil {
		answers = []byte("{}")
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			catalog=excluded.catalog, phase=excluded.phase,
			current_section=excluded.current_section, answers=excluded.answers,
			status=excluded.status, updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`,
		sess.ID, sess.Catalog, string(sess.Phase), sess.CurrentSectionIndex,
		string(answers), string(sess.Status),
		sess.CreatedAt, sess.UpdatedAt, nullTime(sess.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*session.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return sess, err
}

// Delete removes a session and its cascaded reports.
func (s *SessionStore) Delete(id string) error {
	result, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// List returns all session IDs.
func (s *SessionStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT id FROM sessions ORDER BY created_at DESC")
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

// ListAll returns every session, newest first.
func (s *SessionStore) ListAll() ([]*session.Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`)
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

// Exists checks if a session exists.
func (s *SessionStore) Exists(id string) bool {
	var count int
	s.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", id).Scan(&count)
	return count > 0
}

// SaveReport persists a report snapshot.
func (s *SessionStore) SaveReport(record *session.ReportRecord) error {
	body, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO reports (id, session_id, score, band, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			score=excluded.score, band=excluded.band, report=excluded.report`,
		record.ID, record.SessionID, record.Report.Score, string(record.Report.Band),
		string(body), record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// GetReport retrieves a report snapshot by ID.
func (s *SessionStore) GetReport(sessionID, reportID string) (*session.ReportRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, report, created_at
		FROM reports WHERE id = ? AND session_id = ?`, reportID, sessionID)

	record, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return record, err
}

// ListReports returns the report snapshots for a session, oldest first.
func (s *SessionStore) ListReports(sessionID string) ([]*session.ReportRecord, error) {
	rows, err := s.db.Query(`
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

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var sess session.Session
	var phase, status, answersJSON string
	var completedAt sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.Catalog, &phase, &sess.CurrentSectionIndex,
		&answersJSON, &status,
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
	sess.Answers = assessment.NewAnswerStore()
	if err := json.Unmarshal([]byte(answersJSON), sess.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	return &sess, nil
}

func scanReport(row scanner) (*session.ReportRecord, error) {
	var record session.ReportRecord
	var body string

	if err := row.Scan(&record.ID, &record.SessionID, &body, &record.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &record.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &record, nil
}

// nullTime converts a *time.Time to sql.NullTime for storage.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
