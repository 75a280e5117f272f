package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/gapcheck/internal/storage/local"
)

const (
	collectionSessions = "sessions"
	subdirReports      = "reports"
)

var (
	ErrNotFound = errors.New("session not found")
)

// Store handles session persistence as JSON files
type Store struct {
	store *local.Store
}

// NewStore creates a new session store
func NewStore(basePath string) (*Store, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &Store{store: store}, nil
}

// Save persists a session
func (s *Store) Save(session *Session) error {
	return s.store.Save(collectionSessions, session.ID, session)
}

// Get retrieves a session by ID
func (s *Store) Get(id string) (*Session, error) {
	var session Session
	if err := s.store.Load(collectionSessions, id, &session); err != nil {
		if isMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes a session and its saved reports
func (s *Store) Delete(id string) error {
	if err := s.store.Delete(collectionSessions, id); err != nil {
		if isMissing(err) {
			return ErrNotFound
		}
		return err
	}
	if err := s.store.DeleteDir(collectionSessions, id); err != nil {
		return fmt.Errorf("remove session reports: %w", err)
	}
	return nil
}

// List returns all session IDs
func (s *Store) List() ([]string, error) {
	return s.store.List(collectionSessions)
}

// ListAll returns every session, newest first
func (s *Store) ListAll() ([]*Session, error) {
	ids, err := s.store.List(collectionSessions)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Exists checks if a session exists
func (s *Store) Exists(id string) bool {
	return s.store.Exists(collectionSessions, id)
}

// SaveReport persists a report snapshot within a session
func (s *Store) SaveReport(record *ReportRecord) error {
	return s.store.SaveDir(collectionSessions, record.SessionID, subdirReports, record.ID, record)
}

// GetReport retrieves a saved report by ID
func (s *Store) GetReport(sessionID, reportID string) (*ReportRecord, error) {
	var record ReportRecord
	if err := s.store.LoadDir(collectionSessions, sessionID, subdirReports, reportID, &record); err != nil {
		if isMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListReports returns the saved reports for a session, oldest first
func (s *Store) ListReports(sessionID string) ([]*ReportRecord, error) {
	ids, err := s.store.ListDir(collectionSessions, sessionID, subdirReports)
	if err != nil {
		return nil, err
	}

	records := make([]*ReportRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.GetReport(sessionID, id)
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Close is a no-op for file storage
func (s *Store) Close() error {
	return nil
}

// isMissing treats ids that can never name a file as absent
func isMissing(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, local.ErrInvalidName)
}
