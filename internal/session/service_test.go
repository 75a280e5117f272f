package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/felixgeelhaar/gapcheck/internal/assessment"
	"github.com/felixgeelhaar/gapcheck/internal/catalog"
	"github.com/felixgeelhaar/gapcheck/internal/events"
)

// recordingPublisher collects published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("test", "", []catalog.Section{
		{
			Title:       "Context",
			Description: "Where you stand",
			Questions: []catalog.Question{
				{ID: "Q1", Text: "Scope defined?", Recommendation: "Define scope."},
				{ID: "Q2", Text: "Stakeholders known?", Recommendation: "List stakeholders."},
			},
		},
		{
			Title: "Leadership",
			Questions: []catalog.Question{
				{ID: "Q3", Text: "Policy approved?", Recommendation: "Approve a policy."},
			},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return c
}

func setupTestService(t *testing.T) (*Service, *Store, *recordingPublisher) {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	pub := &recordingPublisher{}
	service := NewService(store, assessment.NewEngine(testCatalog(t)))
	service.SetPublisher(pub)
	return service, store, pub
}

func TestService_Create(t *testing.T) {
	service, store, _ := setupTestService(t)

	sess, err := service.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.Catalog != "test" {
		t.Errorf("Catalog = %q; want test", sess.Catalog)
	}
	if sess.Phase != assessment.PhaseIntro {
		t.Errorf("Phase = %q; want %q", sess.Phase, assessment.PhaseIntro)
	}
	if !store.Exists(sess.ID) {
		t.Error("session not persisted")
	}
}

func TestService_Get_NotFound(t *testing.T) {
	service, _, _ := setupTestService(t)

	_, err := service.Get(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v; want ErrSessionNotFound", err)
	}
}

func TestService_Begin(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)

	view, err := service.Begin(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if view.Index != 0 || view.Total != 2 {
		t.Errorf("view = %d/%d; want 0/2", view.Index, view.Total)
	}
	if view.Title != "Context" || view.Description != "Where you stand" {
		t.Errorf("view title = %q (%q)", view.Title, view.Description)
	}
	if view.Progress != 50 {
		t.Errorf("Progress = %d; want 50", view.Progress)
	}
	if !view.IsFirst || view.IsLast {
		t.Errorf("IsFirst/IsLast = %v/%v; want true/false", view.IsFirst, view.IsLast)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("len(Questions) = %d; want 2", len(view.Questions))
	}
	for _, q := range view.Questions {
		if q.Answer != assessment.NotImplemented {
			t.Errorf("question %s answer = %q; want default %q", q.ID, q.Answer, assessment.NotImplemented)
		}
	}

	loaded, _ := service.Get(ctx, sess.ID)
	if loaded.Phase != assessment.PhaseSection {
		t.Errorf("Phase = %q; want %q", loaded.Phase, assessment.PhaseSection)
	}
}

func TestService_Submit_SavesAnswersAndNavigates(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)

	res, err := service.Submit(ctx, sess.ID, 0, map[string]string{
		"Q1": "fully_implemented",
		"Q2": "partially_implemented",
	}, assessment.ActionNext)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Outcome != (assessment.Outcome{Kind: assessment.GoToSection, Index: 1}) {
		t.Errorf("Outcome = %v; want section(1)", res.Outcome)
	}
	if res.Section == nil || res.Section.Title != "Leadership" {
		t.Fatalf("Section = %+v; want Leadership view", res.Section)
	}
	if res.Report != nil {
		t.Error("Report should be nil when navigating between sections")
	}

	// going back shows the saved answers
	view, err := service.Section(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("Section() error = %v", err)
	}
	if view.Questions[0].Answer != assessment.FullyImplemented {
		t.Errorf("Q1 answer = %q; want %q", view.Questions[0].Answer, assessment.FullyImplemented)
	}
	if view.Questions[1].Answer != assessment.PartiallyImplemented {
		t.Errorf("Q2 answer = %q; want %q", view.Questions[1].Answer, assessment.PartiallyImplemented)
	}
}

func TestService_Submit_ReportsRejectedEntries(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)

	res, err := service.Submit(ctx, sess.ID, 0, map[string]string{
		"Q1": "maybe",
		"Q2": "fully_implemented",
	}, assessment.ActionNext)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].QuestionID != "Q1" {
		t.Errorf("Rejected = %v; want Q1", res.Rejected)
	}

	loaded, _ := service.Get(ctx, sess.ID)
	if got := loaded.Answers.Get("Q1"); got != assessment.NotImplemented {
		t.Errorf("Q1 = %q; want unchanged %q", got, assessment.NotImplemented)
	}
	if got := loaded.Answers.Get("Q2"); got != assessment.FullyImplemented {
		t.Errorf("Q2 = %q; want %q", got, assessment.FullyImplemented)
	}
}

func TestService_Submit_OutOfRange(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)

	_, err := service.Submit(ctx, sess.ID, 5, map[string]string{"Q1": "fully_implemented"}, assessment.ActionNext)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Submit() error = %v; want ErrOutOfRange", err)
	}

	loaded, _ := service.Get(ctx, sess.ID)
	if loaded.Answers.Len() != 0 {
		t.Errorf("Answers.Len() = %d; want 0", loaded.Answers.Len())
	}
}

func TestService_Section_OutOfRange(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)
	service.Section(ctx, sess.ID, 1)

	for _, idx := range []int{-1, 2, 100} {
		if _, err := service.Section(ctx, sess.ID, idx); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Section(%d) error = %v; want ErrOutOfRange", idx, err)
		}
	}

	loaded, _ := service.Get(ctx, sess.ID)
	if loaded.CurrentSectionIndex != 1 {
		t.Errorf("CurrentSectionIndex = %d; want 1", loaded.CurrentSectionIndex)
	}
}

func TestService_Submit_FinalizeProducesReport(t *testing.T) {
	service, _, pub := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)
	service.Submit(ctx, sess.ID, 0, map[string]string{
		"Q1": "fully_implemented",
		"Q2": "fully_implemented",
	}, assessment.ActionNext)

	res, err := service.Submit(ctx, sess.ID, 1, map[string]string{"Q3": "partially_implemented"}, assessment.ActionFinalize)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Report == nil {
		t.Fatal("Report = nil; want report")
	}
	if res.Report.Score != 67 {
		t.Errorf("Score = %d; want 67", res.Report.Score)
	}
	if len(res.Report.Gaps) != 1 || res.Report.Gaps[0].QuestionID != "Q3" {
		t.Errorf("Gaps = %+v; want Q3", res.Report.Gaps)
	}
	if pub.count() != 1 {
		t.Errorf("published %d events; want 1", pub.count())
	}

	loaded, _ := service.Get(ctx, sess.ID)
	if loaded.Status != StatusCompleted {
		t.Errorf("Status = %q; want %q", loaded.Status, StatusCompleted)
	}
	if loaded.Phase != assessment.PhaseReport {
		t.Errorf("Phase = %q; want %q", loaded.Phase, assessment.PhaseReport)
	}
}

func TestService_Report_RecordsHistoryAndPublishes(t *testing.T) {
	service, _, pub := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)

	first, err := service.Report(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if first.Score != 0 || first.Band != assessment.BandNeedsWork {
		t.Errorf("first report = %d/%q; want 0/needs_work", first.Score, first.Band)
	}

	service.Begin(ctx, sess.ID)
	service.Submit(ctx, sess.ID, 0, map[string]string{"Q1": "fully_implemented", "Q2": "fully_implemented"}, assessment.ActionNext)
	service.Submit(ctx, sess.ID, 1, map[string]string{"Q3": "fully_implemented"}, assessment.ActionNext)

	second, err := service.Report(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if second.Score != 100 {
		t.Errorf("second Score = %d; want 100", second.Score)
	}

	records, err := service.Reports(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Reports() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len(Reports) = %d; want 2", len(records))
	}

	if pub.count() != 2 {
		t.Fatalf("published %d events; want 2", pub.count())
	}
	last := pub.events[1]
	if last.Type != events.TypeAssessmentCompleted || last.SessionID != sess.ID || last.Score != 100 {
		t.Errorf("event = %+v", last)
	}
}

// failingReportStore rejects every snapshot write
type failingReportStore struct {
	*Store
	err error
}

func (f *failingReportStore) SaveReport(*ReportRecord) error {
	return f.err
}

func TestService_Report_SnapshotFailureKeepsSessionActive(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	diskFull := errors.New("disk full")
	pub := &recordingPublisher{}
	service := NewService(&failingReportStore{Store: store, err: diskFull}, assessment.NewEngine(testCatalog(t)))
	service.SetPublisher(pub)
	ctx := context.Background()

	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)
	service.Submit(ctx, sess.ID, 0, map[string]string{"Q1": "fully_implemented"}, assessment.ActionNext)

	if _, err := service.Report(ctx, sess.ID); !errors.Is(err, diskFull) {
		t.Fatalf("Report() error = %v; want %v", err, diskFull)
	}

	persisted, err := store.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if persisted.Status != StatusActive {
		t.Errorf("Status = %q; want %q", persisted.Status, StatusActive)
	}
	if persisted.CompletedAt != nil {
		t.Errorf("CompletedAt = %v; want nil", persisted.CompletedAt)
	}
	if persisted.Phase != assessment.PhaseSection {
		t.Errorf("Phase = %q; want %q", persisted.Phase, assessment.PhaseSection)
	}
	if persisted.Answers.Get("Q1") != assessment.FullyImplemented {
		t.Errorf("Q1 = %q; want fully_implemented", persisted.Answers.Get("Q1"))
	}
	if pub.count() != 0 {
		t.Errorf("published %d events; want 0", pub.count())
	}
}

func TestService_Report_PublishFailureIsNotFatal(t *testing.T) {
	service, _, pub := setupTestService(t)
	pub.err = errors.New("broker down")
	ctx := context.Background()
	sess, _ := service.Create(ctx)

	if _, err := service.Report(ctx, sess.ID); err != nil {
		t.Errorf("Report() error = %v; want nil", err)
	}
}

func TestService_Preview_HasNoSideEffects(t *testing.T) {
	service, store, pub := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)
	service.Submit(ctx, sess.ID, 0, map[string]string{"Q1": "fully_implemented"}, assessment.ActionNext)

	report, err := service.Preview(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if report.Score != 33 {
		t.Errorf("Score = %d; want 33", report.Score)
	}

	records, _ := store.ListReports(sess.ID)
	if len(records) != 0 {
		t.Errorf("Preview() saved %d reports; want 0", len(records))
	}
	if pub.count() != 0 {
		t.Errorf("Preview() published %d events; want 0", pub.count())
	}
	loaded, _ := store.Get(sess.ID)
	if loaded.Status != StatusActive {
		t.Errorf("Status = %q; want active", loaded.Status)
	}

	if _, err := service.Preview(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Preview(missing) error = %v; want ErrSessionNotFound", err)
	}
}

func TestService_Reset(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)
	service.Submit(ctx, sess.ID, 0, map[string]string{"Q1": "fully_implemented"}, assessment.ActionFinalize)

	reset, err := service.Reset(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if reset.Phase != assessment.PhaseIntro {
		t.Errorf("Phase = %q; want %q", reset.Phase, assessment.PhaseIntro)
	}
	if reset.Answers.Len() != 0 {
		t.Errorf("Answers.Len() = %d; want 0", reset.Answers.Len())
	}
	if reset.Status != StatusActive {
		t.Errorf("Status = %q; want %q", reset.Status, StatusActive)
	}
}

func TestService_Begin_ClearsPreviousAnswers(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)
	service.Submit(ctx, sess.ID, 0, map[string]string{"Q1": "fully_implemented"}, assessment.ActionNext)

	view, _ := service.Begin(ctx, sess.ID)
	if view.Questions[0].Answer != assessment.NotImplemented {
		t.Errorf("Q1 answer after Begin = %q; want %q", view.Questions[0].Answer, assessment.NotImplemented)
	}
}

func TestService_Delete(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)

	if err := service.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := service.Delete(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete() error = %v; want ErrSessionNotFound", err)
	}
	if _, err := service.Reports(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Reports() error = %v; want ErrSessionNotFound", err)
	}
}

func TestService_List(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	service.Create(ctx)
	service.Create(ctx)

	list, err := service.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() returned %d; want 2", len(list))
	}
}

func TestService_ConcurrentSubmitsKeepEveryAnswer(t *testing.T) {
	service, _, _ := setupTestService(t)
	ctx := context.Background()
	sess, _ := service.Create(ctx)
	service.Begin(ctx, sess.ID)

	var wg sync.WaitGroup
	for _, id := range []string{"Q1", "Q2", "Q3"} {
		wg.Add(1)
		go func(qid string) {
			defer wg.Done()
			service.Submit(ctx, sess.ID, 0, map[string]string{qid: "fully_implemented"}, assessment.ActionNext)
		}(id)
	}
	wg.Wait()

	loaded, _ := service.Get(ctx, sess.ID)
	if loaded.Answers.Len() != 3 {
		t.Errorf("Answers.Len() = %d; want 3 (no lost updates)", loaded.Answers.Len())
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	var k keyedMutex

	unlock := k.Lock("a")
	unlock()

	k.mu.Lock()
	n := len(k.locks)
	k.mu.Unlock()
	if n != 0 {
		t.Errorf("locks held = %d; want 0", n)
	}
}
