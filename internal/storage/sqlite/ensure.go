package sqlite

import "github.com/felixgeelhaar/gapcheck/internal/session"

// Ensure the SQLite store implements the session storage backend.
var _ session.Backend = (*SessionStore)(nil)
