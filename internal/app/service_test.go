package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fsawadogo/sqordia-sub000/internal/export"
	"github.com/fsawadogo/sqordia-sub000/internal/search"
	"github.com/fsawadogo/sqordia-sub000/internal/snapshot"
	"github.com/fsawadogo/sqordia-sub000/internal/store"
)

// fakeStore is an in-memory Store used across the app tests.
type fakeStore struct {
	plans    map[string]store.Plan
	sections map[string][]store.PlanSection
	activity []store.ActivityEntry
	pingErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		plans:    make(map[string]store.Plan),
		sections: make(map[string][]store.PlanSection),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) EnsureUserByEmail(ctx context.Context, displayName, email string) (store.User, error) {
	return store.User{ID: "usr1", DisplayName: displayName, Email: email}, nil
}

func (f *fakeStore) CreatePlan(ctx context.Context, ownerID, title, description string) (store.Plan, error) {
	plan := store.Plan{
		ID:          fmt.Sprintf("plan%d", len(f.plans)+1),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		UpdatedAt:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	f.plans[plan.ID] = plan
	return plan, nil
}

func (f *fakeStore) GetPlan(ctx context.Context, planID string) (store.Plan, error) {
	plan, ok := f.plans[planID]
	if !ok {
		return store.Plan{}, sql.ErrNoRows
	}
	return plan, nil
}

func (f *fakeStore) ListPlans(ctx context.Context, ownerID string) ([]store.Plan, error) {
	var out []store.Plan
	for _, p := range f.plans {
		if ownerID == "" || p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdatePlan(ctx context.Context, planID, title, description string) (store.Plan, error) {
	plan, ok := f.plans[planID]
	if !ok {
		return store.Plan{}, sql.ErrNoRows
	}
	plan.Title = title
	plan.Description = description
	plan.UpdatedAt = plan.UpdatedAt.Add(time.Minute)
	f.plans[planID] = plan
	return plan, nil
}

func (f *fakeStore) CreateSection(ctx context.Context, planID, title, content string, sortOrder int) (store.PlanSection, error) {
	section := store.PlanSection{
		ID:        fmt.Sprintf("sec%d", len(f.sections[planID])+1),
		PlanID:    planID,
		Title:     title,
		Content:   content,
		SortOrder: sortOrder,
	}
	f.sections[planID] = append(f.sections[planID], section)
	return section, nil
}

func (f *fakeStore) ListSections(ctx context.Context, planID string) ([]store.PlanSection, error) {
	return f.sections[planID], nil
}

func (f *fakeStore) ListSectionsByIDs(ctx context.Context, planID string, sectionIDs []string) ([]store.PlanSection, error) {
	var out []store.PlanSection
	for _, sec := range f.sections[planID] {
		for _, id := range sectionIDs {
			if sec.ID == id {
				out = append(out, sec)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSectionContent(ctx context.Context, sectionID, content string) (store.PlanSection, error) {
	for planID, sections := range f.sections {
		for i, sec := range sections {
			if sec.ID == sectionID {
				sec.Content = content
				f.sections[planID][i] = sec
				return sec, nil
			}
		}
	}
	return store.PlanSection{}, sql.ErrNoRows
}

func (f *fakeStore) InsertActivity(ctx context.Context, userID, planID, actionType, description string) error {
	f.activity = append(f.activity, store.ActivityEntry{
		UserID: userID, PlanID: planID, ActionType: actionType, Description: description,
	})
	return nil
}

func (f *fakeStore) ListActivity(ctx context.Context, planID string, limit int) ([]store.ActivityEntry, error) {
	var out []store.ActivityEntry
	for _, e := range f.activity {
		if e.PlanID == planID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubExporter struct {
	calls    int
	lastOpts export.Options
	result   *export.Result
	err      error
}

func (s *stubExporter) Export(ctx context.Context, planID string, opts export.Options) (*export.Result, error) {
	s.calls++
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &export.Result{
		Data:     []byte("rendered"),
		Filename: "plan_2026-03-14." + string(opts.Format),
		MimeType: "text/plain; charset=utf-8",
	}, nil
}

type fakeSearcher struct {
	lastQuery search.Query
	plans     []search.PlanRecord
	sections  []search.SectionRecord
	response  search.Response
}

func (f *fakeSearcher) Search(q search.Query) search.Response {
	f.lastQuery = q
	return f.response
}

func (f *fakeSearcher) IndexPlan(p search.PlanRecord)       { f.plans = append(f.plans, p) }
func (f *fakeSearcher) IndexSection(s search.SectionRecord) { f.sections = append(f.sections, s) }

type fakeCache struct {
	entries map[string]*export.Result
	gets    int
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*export.Result)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (*export.Result, error) {
	f.gets++
	return f.entries[key], nil
}

func (f *fakeCache) Put(ctx context.Context, key string, result *export.Result) error {
	f.puts++
	f.entries[key] = result
	return nil
}

type fakeArchiver struct {
	saved []string
}

func (f *fakeArchiver) SaveAsync(planID string, result *export.Result) {
	f.saved = append(f.saved, planID)
}

type fakeSnapshots struct {
	payloads []snapshot.Payload
	messages []string
	err      error
}

func (f *fakeSnapshots) Save(planID string, payload snapshot.Payload, author, message string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, payload)
	f.messages = append(f.messages, message)
	return "abc123", nil
}

func (f *fakeSnapshots) History(planID string, limit int) ([]snapshot.CommitInfo, error) {
	return nil, nil
}

func seedPlan(t *testing.T, fs *fakeStore) store.Plan {
	t.Helper()
	plan, err := fs.CreatePlan(context.Background(), "usr1", "Acme Plan", "Our plan.")
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	if _, err := fs.CreateSection(context.Background(), plan.ID, "Summary", "<p>Hi</p>", 1); err != nil {
		t.Fatalf("seed section: %v", err)
	}
	return plan
}

func TestExportPlanCachesNonPDF(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	exp := &stubExporter{}
	cache := newFakeCache()
	svc := New(fs, exp, nil, cache, nil, nil)

	opts := export.Options{Format: export.FormatHTML}
	first, err := svc.ExportPlan(context.Background(), plan.ID, opts)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	if exp.calls != 1 {
		t.Fatalf("expected 1 exporter call, got %d", exp.calls)
	}
	if cache.puts != 1 {
		t.Fatalf("expected 1 cache put, got %d", cache.puts)
	}

	second, err := svc.ExportPlan(context.Background(), plan.ID, opts)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if exp.calls != 1 {
		t.Errorf("expected cached export, exporter called %d times", exp.calls)
	}
	if string(second.Data) != string(first.Data) {
		t.Errorf("cached result differs from rendered result")
	}
}

func TestExportPlanCacheInvalidatedByUpdate(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	exp := &stubExporter{}
	cache := newFakeCache()
	svc := New(fs, exp, nil, cache, nil, nil)

	opts := export.Options{Format: export.FormatTXT}
	if _, err := svc.ExportPlan(context.Background(), plan.ID, opts); err != nil {
		t.Fatalf("first export: %v", err)
	}
	if _, err := svc.UpdatePlan(context.Background(), plan.ID, "Acme Plan v2", ""); err != nil {
		t.Fatalf("update plan: %v", err)
	}
	if _, err := svc.ExportPlan(context.Background(), plan.ID, opts); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if exp.calls != 2 {
		t.Errorf("expected re-render after content change, exporter called %d times", exp.calls)
	}
}

func TestExportPlanPDFBypassesCache(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	exp := &stubExporter{}
	cache := newFakeCache()
	svc := New(fs, exp, nil, cache, nil, nil)

	opts := export.Options{Format: export.FormatPDF}
	for i := 0; i < 2; i++ {
		if _, err := svc.ExportPlan(context.Background(), plan.ID, opts); err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
	}
	if exp.calls != 2 {
		t.Errorf("expected 2 exporter calls for pdf, got %d", exp.calls)
	}
	if cache.gets != 0 || cache.puts != 0 {
		t.Errorf("pdf export touched the cache: gets=%d puts=%d", cache.gets, cache.puts)
	}
}

func TestExportPlanSnapshotsAndArchives(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	exp := &stubExporter{}
	snaps := &fakeSnapshots{}
	arch := &fakeArchiver{}
	svc := New(fs, exp, nil, nil, arch, snaps)

	if _, err := svc.ExportPlan(context.Background(), plan.ID, export.Options{Format: export.FormatTXT}); err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(snaps.payloads) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps.payloads))
	}
	payload := snaps.payloads[0]
	if payload.Title != "Acme Plan" || len(payload.Sections) != 1 {
		t.Errorf("unexpected snapshot payload: %+v", payload)
	}
	if snaps.messages[0] != "export as TXT" {
		t.Errorf("unexpected snapshot message %q", snaps.messages[0])
	}
	if len(arch.saved) != 1 || arch.saved[0] != plan.ID {
		t.Errorf("expected archive save for %s, got %v", plan.ID, arch.saved)
	}
}

func TestExportPlanSnapshotFailureIsNonFatal(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	exp := &stubExporter{}
	snaps := &fakeSnapshots{err: errors.New("disk full")}
	svc := New(fs, exp, nil, nil, nil, snaps)

	if _, err := svc.ExportPlan(context.Background(), plan.ID, export.Options{Format: export.FormatTXT}); err != nil {
		t.Fatalf("export should survive snapshot failure: %v", err)
	}
}

func TestExportPlanUnknownPlan(t *testing.T) {
	fs := newFakeStore()
	exp := &stubExporter{}
	svc := New(fs, exp, nil, nil, nil, nil)

	_, err := svc.ExportPlan(context.Background(), "nope", export.Options{Format: export.FormatTXT})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if exp.calls != 0 {
		t.Errorf("exporter should not run for unknown plan")
	}
}

func TestExportPlanInvalidFormat(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	exp := &stubExporter{}
	svc := New(fs, exp, nil, nil, nil, nil)

	_, err := svc.ExportPlan(context.Background(), plan.ID, export.Options{Format: "xlsx"})
	if !errors.Is(err, export.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if exp.calls != 0 {
		t.Errorf("exporter should not run for invalid format")
	}
}

func TestCreatePlanIndexesSearch(t *testing.T) {
	fs := newFakeStore()
	searcher := &fakeSearcher{}
	svc := New(fs, &stubExporter{}, searcher, nil, nil, nil)

	plan, err := svc.CreatePlan(context.Background(), "usr1", "Acme Plan", "Our plan.")
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if len(searcher.plans) != 1 || searcher.plans[0].ID != plan.ID {
		t.Errorf("expected plan indexed, got %+v", searcher.plans)
	}
}

func TestUpdateSectionContentIndexesSearch(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	searcher := &fakeSearcher{}
	svc := New(fs, &stubExporter{}, searcher, nil, nil, nil)

	section, err := svc.UpdateSectionContent(context.Background(), "sec1", "<p>Revised</p>")
	if err != nil {
		t.Fatalf("update section: %v", err)
	}
	if section.PlanID != plan.ID {
		t.Fatalf("unexpected section plan %q", section.PlanID)
	}
	if len(searcher.sections) != 1 || searcher.sections[0].Content != "<p>Revised</p>" {
		t.Errorf("expected section indexed with new content, got %+v", searcher.sections)
	}
}

func TestExportStoreAdapterSectionFilter(t *testing.T) {
	fs := newFakeStore()
	plan := seedPlan(t, fs)
	if _, err := fs.CreateSection(context.Background(), plan.ID, "Team", "", 2); err != nil {
		t.Fatalf("seed section: %v", err)
	}
	adapter := ExportStoreAdapter{Store: fs}

	all, err := adapter.ListSections(context.Background(), plan.ID, nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("nil filter should select every section, got %d", len(all))
	}

	none, err := adapter.ListSections(context.Background(), plan.ID, []string{})
	if err != nil {
		t.Fatalf("list none: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("empty filter should select no sections, got %d", len(none))
	}

	one, err := adapter.ListSections(context.Background(), plan.ID, []string{"sec2"})
	if err != nil {
		t.Fatalf("list one: %v", err)
	}
	if len(one) != 1 || one[0].Title != "Team" {
		t.Errorf("unexpected filtered sections %+v", one)
	}
}

func TestExportStoreAdapterNotFound(t *testing.T) {
	adapter := ExportStoreAdapter{Store: newFakeStore()}
	_, err := adapter.GetPlan(context.Background(), "nope")
	if !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
