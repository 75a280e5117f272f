//go:build integration

package postgres_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/session"
	"github.com/felixgeelhaar/gapcheck/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// setupPostgres starts a Postgres container and returns a migrated store
// together with its connection string
func setupPostgres(t *testing.T) (*postgres.Store, string) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gapcheck"),
		tcpostgres.WithUsername("gapcheck"),
		tcpostgres.WithPassword("gapcheck"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	store, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// migrations are idempotent
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	return store, dsn
}

func TestIntegration_Store_SessionLifecycle(t *testing.T) {
	store, _ := setupPostgres(t)

	sess := session.NewSession("ISO/IEC 42001")
	sess.Phase = assessment.PhaseSection
	sess.CurrentSectionIndex = 2
	sess.Answers.MergeUpdates(map[string]assessment.AnswerState{
		"C4_1": assessment.FullyImplemented,
	})

	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Exists(sess.ID) {
		t.Fatal("Exists() = false after save")
	}

	loaded, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.CurrentSectionIndex != 2 {
		t.Errorf("CurrentSectionIndex = %d; want 2", loaded.CurrentSectionIndex)
	}
	if got := loaded.Answers.Get("C4_1"); got != assessment.FullyImplemented {
		t.Errorf("Answers.Get(C4_1) = %q; want %q", got, assessment.FullyImplemented)
	}

	sess.Complete()
	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() update error = %v", err)
	}
	loaded, _ = store.Get(sess.ID)
	if loaded.Status != session.StatusCompleted || loaded.CompletedAt == nil {
		t.Errorf("Status = %q, CompletedAt = %v; want completed with timestamp", loaded.Status, loaded.CompletedAt)
	}

	if err := store.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(sess.ID); err != session.ErrNotFound {
		t.Errorf("Get() after delete error = %v; want ErrNotFound", err)
	}
	if err := store.Delete(sess.ID); err != session.ErrNotFound {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}

func TestIntegration_Store_Reports(t *testing.T) {
	store, _ := setupPostgres(t)

	sess := session.NewSession("c")
	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	first := session.NewReportRecord(sess.ID, assessment.Report{
		Catalog: "c",
		Score:   33,
		Band:    assessment.BandNeedsWork,
		Gaps:    []assessment.GapItem{{QuestionID: "Q1", Status: assessment.NotImplemented}},
	})
	second := session.NewReportRecord(sess.ID, assessment.Report{Catalog: "c", Score: 100, Band: assessment.BandExcellent})
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	for _, r := range []*session.ReportRecord{second, first} {
		if err := store.SaveReport(r); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	got, err := store.GetReport(sess.ID, first.ID)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Report.Score != 33 || len(got.Report.Gaps) != 1 {
		t.Errorf("GetReport() = %+v; want score 33 with one gap", got.Report)
	}

	records, err := store.ListReports(sess.ID)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(records) != 2 || records[0].ID != first.ID {
		t.Fatalf("ListReports() = %d records; want 2, oldest first", len(records))
	}

	if err := store.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	records, _ = store.ListReports(sess.ID)
	if len(records) != 0 {
		t.Errorf("reports after cascade delete = %d; want 0", len(records))
	}
}

func TestIntegration_Store_ReportWithoutBody(t *testing.T) {
	store, dsn := setupPostgres(t)
	ctx := context.Background()

	sess := session.NewSession("c")
	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		INSERT INTO reports (id, session_id, score, band, report, created_at)
		VALUES ('empty', $1, 0, 'needs_work', NULL, now())`, sess.ID)
	if err != nil {
		t.Fatalf("insert report without body: %v", err)
	}

	_, err = store.GetReport(sess.ID, "empty")
	if err == nil || !strings.Contains(err.Error(), "no body") {
		t.Errorf("GetReport() error = %v; want missing body error", err)
	}
}
