// Package postgres stores sessions and report snapshots in PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"
)

//go:embed schema.sql
var schema string

// DefaultTimeout bounds each statement issued by the store
const DefaultTimeout = 5 * time.Second

const sessionColumns = `id, catalog, phase, current_section, answers, status,
	created_at, updated_at, completed_at`

// Store implements session.Backend using PostgreSQL
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ session.Backend = (*Store)(nil)

// NewStore wraps an existing pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, timeout: DefaultTimeout}
}

// Connect opens a pool for dsn and verifies the connection
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStore(pool), nil
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			catalog = EXCLUDED.catalog, phase = EXCLUDED.phase,
			current_section = EXCLUDED.current_section, answers = EXCLUDED.answers,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at`,
		sess.ID, sess.Catalog, string(sess.Phase), sess.CurrentSectionIndex,
		string(answers), string(sess.Status),
		sess.CreatedAt, sess.UpdatedAt, sess.CompletedAt,
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

	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return sess, err
}

// Delete removes a session; its reports cascade
func (s *Store) Delete(id string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}
	return nil
}

// List returns all session IDs, newest first
func (s *Store) List() ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT id FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan session ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ListAll returns every session, newest first
func (s *Store) ListAll() ([]*session.Session, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
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
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	return err == nil && exists
}

// SaveReport upserts a report snapshot
func (s *Store) SaveReport(record *session.ReportRecord) error {
	data, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	body := pqtype.NullRawMessage{RawMessage: data, Valid: true}

	ctx, cancel := s.ctx()
	defer cancel()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (id, session_id, score, band, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			score = EXCLUDED.score, band = EXCLUDED.band, report = EXCLUDED.report`,
		record.ID, record.SessionID, record.Report.Score, string(record.Report.Band),
		body, record.CreatedAt,
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

	record, err := scanReport(s.pool.QueryRow(ctx, `
		SELECT id, session_id, report, created_at
		FROM reports WHERE id = $1 AND session_id = $2`, reportID, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	return record, err
}

// ListReports returns a session's snapshots, oldest first
func (s *Store) ListReports(sessionID string) ([]*session.ReportRecord, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, report, created_at
		FROM reports WHERE session_id = $1 ORDER BY created_at`, sessionID)
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

// Close releases the pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var sess session.Session
	var phase, status string
	var answers []byte
	var completedAt *time.Time

	err := row.Scan(
		&sess.ID, &sess.Catalog, &phase, &sess.CurrentSectionIndex,
		&answers, &status,
		&sess.CreatedAt, &sess.UpdatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.Phase = assessment.Phase(phase)
	sess.Status = session.Status(status)
	sess.CompletedAt = completedAt
	sess.Answers = assessment.NewAnswerStore()
	if err := json.Unmarshal(answers, sess.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return &sess, nil
}

func scanReport(row pgx.Row) (*session.ReportRecord, error) {
	var record session.ReportRecord
	var body pqtype.NullRawMessage

	if err := row.Scan(&record.ID, &record.SessionID, &body, &record.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	if !body.Valid {
		return nil, fmt.Errorf("report %s has no body", record.ID)
	}
	if err := json.Unmarshal(body.RawMessage, &record.Report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &record, nil
}
