package mysql

import (
	"strings"
	"testing"
)

func TestNormalizeDSN(t *testing.T) {
	got, err := NormalizeDSN("gapcheck:secret@tcp(db:3306)/gapcheck")
	if err != nil {
		t.Fatalf("NormalizeDSN() error = %v", err)
	}
	if !strings.Contains(got, "parseTime=true") {
		t.Errorf("NormalizeDSN() = %q; want parseTime=true", got)
	}
	if !strings.HasPrefix(got, "gapcheck:secret@tcp(db:3306)/gapcheck") {
		t.Errorf("NormalizeDSN() = %q; lost connection details", got)
	}

	if _, err := NormalizeDSN("not a dsn"); err == nil {
		t.Error("NormalizeDSN() should reject a malformed dsn")
	}
}

func TestStatements(t *testing.T) {
	stmts := statements(schema)
	if len(stmts) != 2 {
		t.Fatalf("len(statements) = %d; want 2", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS sessions") {
		t.Errorf("first statement = %q", stmts[0][:40])
	}
	if !strings.Contains(stmts[1], "ON DELETE CASCADE") {
		t.Error("reports table should cascade on session delete")
	}

	if got := statements(" ;\n; "); len(got) != 0 {
		t.Errorf("statements(blank) = %q; want none", got)
	}
}
