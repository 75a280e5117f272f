package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestStore_SaveGet(t *testing.T) {
	store := setupTestStore(t)

	sess := NewSession("c")
	sess.Answers.MergeUpdates(map[string]assessment.AnswerState{"Q2": assessment.PartiallyImplemented})

	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.ID != sess.ID {
		t.Errorf("ID = %q; want %q", loaded.ID, sess.ID)
	}
	if got := loaded.Answers.Get("Q2"); got != assessment.PartiallyImplemented {
		t.Errorf("Answers.Get(Q2) = %q; want %q", got, assessment.PartiallyImplemented)
	}
	if !store.Exists(sess.ID) {
		t.Error("Exists() = false after Save")
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupTestStore(t)

	for _, id := range []string{"missing", "../../etc/passwd", ""} {
		if _, err := store.Get(id); err != ErrNotFound {
			t.Errorf("Get(%q) error = %v; want ErrNotFound", id, err)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)

	sess := NewSession("c")
	store.Save(sess)
	store.SaveReport(NewReportRecord(sess.ID, assessment.Report{Score: 10}))

	if err := store.Delete(sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(sess.ID); err != ErrNotFound {
		t.Errorf("Get() after Delete error = %v; want ErrNotFound", err)
	}
	reports, _ := store.ListReports(sess.ID)
	if len(reports) != 0 {
		t.Errorf("ListReports() after Delete = %d; want 0", len(reports))
	}

	if err := store.Delete(sess.ID); err != ErrNotFound {
		t.Errorf("second Delete() error = %v; want ErrNotFound", err)
	}
}

func TestStore_ListAll_NewestFirst(t *testing.T) {
	store := setupTestStore(t)

	base := time.Now()
	var ids []string
	for i := 0; i < 3; i++ {
		sess := NewSession("c")
		sess.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		store.Save(sess)
		ids = append(ids, sess.ID)
	}

	all, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll() returned %d; want 3", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("ListAll() order = %s, %s, %s; want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	listed, _ := store.List()
	if len(listed) != 3 {
		t.Errorf("List() returned %d ids; want 3", len(listed))
	}
}

func TestStore_Reports(t *testing.T) {
	store := setupTestStore(t)
	sess := NewSession("c")
	store.Save(sess)

	first := NewReportRecord(sess.ID, assessment.Report{Score: 25})
	second := NewReportRecord(sess.ID, assessment.Report{Score: 75})
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	store.SaveReport(second)
	store.SaveReport(first)

	records, err := store.ListReports(sess.ID)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListReports() returned %d; want 2", len(records))
	}
	if records[0].Report.Score != 25 || records[1].Report.Score != 75 {
		t.Errorf("scores = %d, %d; want oldest first 25, 75", records[0].Report.Score, records[1].Report.Score)
	}

	got, err := store.GetReport(sess.ID, second.ID)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Report.Score != 75 {
		t.Errorf("GetReport().Report.Score = %d; want 75", got.Report.Score)
	}

	if _, err := store.GetReport(sess.ID, "missing"); err != ErrNotFound {
		t.Errorf("GetReport(missing) error = %v; want ErrNotFound", err)
	}
}
