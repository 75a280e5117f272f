package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/config"
	"github.com/felixgeelhaar/gapcheck/internal/render"
)

func testConfig(t *testing.T, backend string) *config.LocalConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultLocalConfig()
	cfg.Storage.Backend = backend
	cfg.Storage.SessionsDir = filepath.Join(dir, "sessions")
	cfg.Storage.SQLitePath = filepath.Join(dir, "gapcheck.db")
	return cfg
}

func TestNew_Backends(t *testing.T) {
	for _, backend := range []string{config.StorageFile, config.StorageSQLite} {
		t.Run(backend, func(t *testing.T) {
			a, err := New(context.Background(), testConfig(t, backend))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer a.Close()

			if a.Catalog.QuestionCount() == 0 {
				t.Error("default catalog has no questions")
			}

			ctx := context.Background()
			sess, err := a.Service.Create(ctx)
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if _, err := a.Service.Begin(ctx, sess.ID); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			report, err := a.Service.Report(ctx, sess.ID)
			if err != nil {
				t.Fatalf("Report() error = %v", err)
			}
			if report.Score != 0 || report.Band != assessment.BandNeedsWork {
				t.Errorf("Report() = %d/%s; want 0/needs_work", report.Score, report.Band)
			}
		})
	}
}

func TestNew_MissingCatalog(t *testing.T) {
	cfg := testConfig(t, config.StorageFile)
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New() with missing catalog should fail")
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend(context.Background(), config.StorageConfig{Backend: "mongo"})

	var cerr *config.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("OpenBackend() error = %v; want ConfigurationError", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, config.StorageFile))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestArchiveConfig(t *testing.T) {
	cfg := config.DefaultLocalConfig().Archive
	cfg.AccessKey = "ak"
	cfg.Formats = []string{"json", "text"}

	got, err := ArchiveConfig(cfg)
	if err != nil {
		t.Fatalf("ArchiveConfig() error = %v", err)
	}
	if got.Bucket != "gapcheck-reports" || got.AccessKey != "ak" {
		t.Errorf("ArchiveConfig() = %+v", got)
	}
	if len(got.Formats) != 2 || got.Formats[1] != render.FormatText {
		t.Errorf("Formats = %v; want [json text]", got.Formats)
	}

	cfg.Formats = []string{"pdf"}
	if _, err := ArchiveConfig(cfg); err == nil {
		t.Error("ArchiveConfig() with unknown format should fail")
	}
}

func TestRunWorker_RequiresBroker(t *testing.T) {
	err := RunWorker(context.Background(), config.DefaultLocalConfig())

	var cerr *config.ConfigurationError
	if !errors.As(err, &cerr) || cerr.Field != "events.amqp_url" {
		t.Errorf("RunWorker() error = %v; want events.amqp_url ConfigurationError", err)
	}
}
