package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fsawadogo/sqordia-sub000/internal/export"
	"github.com/fsawadogo/sqordia-sub000/internal/exportcache"
	"github.com/fsawadogo/sqordia-sub000/internal/search"
	"github.com/fsawadogo/sqordia-sub000/internal/snapshot"
	"github.com/fsawadogo/sqordia-sub000/internal/store"
)

// Store is the persistence surface the app layer needs. Satisfied by
// *store.PostgresStore.
type Store interface {
	Ping(ctx context.Context) error
	EnsureUserByEmail(ctx context.Context, displayName, email string) (store.User, error)
	CreatePlan(ctx context.Context, ownerID, title, description string) (store.Plan, error)
	GetPlan(ctx context.Context, planID string) (store.Plan, error)
	ListPlans(ctx context.Context, ownerID string) ([]store.Plan, error)
	UpdatePlan(ctx context.Context, planID, title, description string) (store.Plan, error)
	CreateSection(ctx context.Context, planID, title, content string, sortOrder int) (store.PlanSection, error)
	ListSections(ctx context.Context, planID string) ([]store.PlanSection, error)
	ListSectionsByIDs(ctx context.Context, planID string, sectionIDs []string) ([]store.PlanSection, error)
	UpdateSectionContent(ctx context.Context, sectionID, content string) (store.PlanSection, error)
	InsertActivity(ctx context.Context, userID, planID, actionType, description string) error
	ListActivity(ctx context.Context, planID string, limit int) ([]store.ActivityEntry, error)
}

// Exporter produces a rendered document for one plan.
type Exporter interface {
	Export(ctx context.Context, planID string, opts export.Options) (*export.Result, error)
}

// SearchIndex is the search facade. Satisfied by *search.Service.
type SearchIndex interface {
	Search(q search.Query) search.Response
	IndexPlan(p search.PlanRecord)
	IndexSection(s search.SectionRecord)
}

// ResultCache stores rendered exports keyed by plan content version.
// Satisfied by *exportcache.Store.
type ResultCache interface {
	Get(ctx context.Context, key string) (*export.Result, error)
	Put(ctx context.Context, key string, result *export.Result) error
}

// Archiver persists finished exports to object storage.
type Archiver interface {
	SaveAsync(planID string, result *export.Result)
}

// Snapshots records plan content at export time. Satisfied by
// *snapshot.Service.
type Snapshots interface {
	Save(planID string, payload snapshot.Payload, author, message string) (string, error)
	History(planID string, limit int) ([]snapshot.CommitInfo, error)
}

// Service wires the store, export engine, and the optional side services.
// searcher, cache, archive, and snapshots may each be nil when the backing
// infrastructure is not configured.
type Service struct {
	store     Store
	exporter  Exporter
	searcher  SearchIndex
	cache     ResultCache
	archive   Archiver
	snapshots Snapshots
}

func New(st Store, exporter Exporter, searcher SearchIndex, cache ResultCache, archive Archiver, snapshots Snapshots) *Service {
	return &Service{
		store:     st,
		exporter:  exporter,
		searcher:  searcher,
		cache:     cache,
		archive:   archive,
		snapshots: snapshots,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) EnsureUser(ctx context.Context, displayName, email string) (store.User, error) {
	if strings.TrimSpace(email) == "" {
		return store.User{}, domainError(422, "VALIDATION_ERROR", "email is required", nil)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = email
	}
	return s.store.EnsureUserByEmail(ctx, displayName, email)
}

func (s *Service) CreatePlan(ctx context.Context, ownerID, title, description string) (store.Plan, error) {
	if strings.TrimSpace(title) == "" {
		return store.Plan{}, domainError(422, "VALIDATION_ERROR", "title is required", nil)
	}
	if strings.TrimSpace(ownerID) == "" {
		return store.Plan{}, domainError(422, "VALIDATION_ERROR", "ownerId is required", nil)
	}
	plan, err := s.store.CreatePlan(ctx, ownerID, title, description)
	if err != nil {
		return store.Plan{}, fmt.Errorf("create plan: %w", err)
	}
	s.indexPlan(plan)
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, planID string) (store.Plan, error) {
	return s.store.GetPlan(ctx, planID)
}

func (s *Service) ListPlans(ctx context.Context, ownerID string) ([]store.Plan, error) {
	return s.store.ListPlans(ctx, ownerID)
}

func (s *Service) UpdatePlan(ctx context.Context, planID, title, description string) (store.Plan, error) {
	if strings.TrimSpace(title) == "" {
		return store.Plan{}, domainError(422, "VALIDATION_ERROR", "title is required", nil)
	}
	plan, err := s.store.UpdatePlan(ctx, planID, title, description)
	if err != nil {
		return store.Plan{}, err
	}
	s.indexPlan(plan)
	return plan, nil
}

func (s *Service) ListSections(ctx context.Context, planID string) ([]store.PlanSection, error) {
	return s.store.ListSections(ctx, planID)
}

func (s *Service) AddSection(ctx context.Context, planID, title, content string, sortOrder int) (store.PlanSection, error) {
	if strings.TrimSpace(title) == "" {
		return store.PlanSection{}, domainError(422, "VALIDATION_ERROR", "title is required", nil)
	}
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return store.PlanSection{}, err
	}
	section, err := s.store.CreateSection(ctx, planID, title, content, sortOrder)
	if err != nil {
		return store.PlanSection{}, fmt.Errorf("create section: %w", err)
	}
	s.indexSection(section)
	return section, nil
}

func (s *Service) UpdateSectionContent(ctx context.Context, sectionID, content string) (store.PlanSection, error) {
	section, err := s.store.UpdateSectionContent(ctx, sectionID, content)
	if err != nil {
		return store.PlanSection{}, err
	}
	s.indexSection(section)
	return section, nil
}

func (s *Service) Activity(ctx context.Context, planID string, limit int) ([]store.ActivityEntry, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.store.ListActivity(ctx, planID, limit)
}

func (s *Service) SnapshotHistory(ctx context.Context, planID string, limit int) ([]snapshot.CommitInfo, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	if s.snapshots == nil {
		return nil, nil
	}
	return s.snapshots.History(planID, limit)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.searcher == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.searcher.Search(q)
}

// ExportPlan renders a plan into the requested format. Non-PDF results are
// served from the cache when the plan content has not changed since they
// were rendered. Finished exports are snapshotted and archived best-effort.
func (s *Service) ExportPlan(ctx context.Context, planID string, opts export.Options) (*export.Result, error) {
	if !opts.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, opts.Format)
	}

	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if s.cache != nil && exportcache.Cacheable(opts.Format) {
		cacheKey = exportcache.Key(planID, opts, plan.UpdatedAt)
		cached, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			log.Printf("export cache get for plan %s: %v", planID, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := s.exporter.Export(ctx, planID, opts)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if err := s.cache.Put(ctx, cacheKey, result); err != nil {
			log.Printf("export cache put for plan %s: %v", planID, err)
		}
	}

	s.recordSnapshot(ctx, plan, opts)

	if s.archive != nil {
		s.archive.SaveAsync(planID, result)
	}

	return result, nil
}

// recordSnapshot commits the plan's full content to its snapshot repository.
// Failures are logged and never surface to the caller.
func (s *Service) recordSnapshot(ctx context.Context, plan store.Plan, opts export.Options) {
	if s.snapshots == nil {
		return
	}
	sections, err := s.store.ListSections(ctx, plan.ID)
	if err != nil {
		log.Printf("snapshot: list sections for plan %s: %v", plan.ID, err)
		return
	}
	payload := snapshot.Payload{
		Title:       plan.Title,
		Description: plan.Description,
		Sections:    make([]snapshot.SectionSnapshot, 0, len(sections)),
	}
	for _, sec := range sections {
		payload.Sections = append(payload.Sections, snapshot.SectionSnapshot{
			ID:      sec.ID,
			Title:   sec.Title,
			Content: sec.Content,
			Order:   sec.SortOrder,
		})
	}
	message := fmt.Sprintf("export as %s", strings.ToUpper(string(opts.Format)))
	hash, err := s.snapshots.Save(plan.ID, payload, plan.OwnerID, message)
	if err != nil {
		log.Printf("snapshot: save for plan %s: %v", plan.ID, err)
		return
	}
	log.Printf("snapshot: plan %s committed %s", plan.ID, hash)
}

func (s *Service) indexPlan(plan store.Plan) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexPlan(search.PlanRecord{
		ID:          plan.ID,
		Title:       plan.Title,
		Description: plan.Description,
	})
}

func (s *Service) indexSection(section store.PlanSection) {
	if s.searcher == nil {
		return
	}
	s.searcher.IndexSection(search.SectionRecord{
		ID:      section.ID,
		PlanID:  section.PlanID,
		Title:   section.Title,
		Content: section.Content,
	})
}

// ExportStoreAdapter exposes the Postgres store through the export engine's
// narrower Store interface. A nil section filter selects every section of
// the plan; a non-nil filter is applied literally, so an empty list yields
// an export with no sections.
type ExportStoreAdapter struct {
	Store Store
}

func (a ExportStoreAdapter) GetPlan(ctx context.Context, planID string) (export.Document, error) {
	plan, err := a.Store.GetPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return export.Document{}, fmt.Errorf("%w: %s", export.ErrNotFound, planID)
		}
		return export.Document{}, err
	}
	return export.Document{
		ID:          plan.ID,
		Title:       plan.Title,
		Description: plan.Description,
		OwnerID:     plan.OwnerID,
	}, nil
}

func (a ExportStoreAdapter) ListSections(ctx context.Context, planID string, sectionIDs []string) ([]export.Section, error) {
	var (
		rows []store.PlanSection
		err  error
	)
	if sectionIDs == nil {
		rows, err = a.Store.ListSections(ctx, planID)
	} else {
		rows, err = a.Store.ListSectionsByIDs(ctx, planID, sectionIDs)
	}
	if err != nil {
		return nil, err
	}
	sections := make([]export.Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, export.Section{
			ID:      row.ID,
			Title:   row.Title,
			Content: row.Content,
			Order:   row.SortOrder,
		})
	}
	return sections, nil
}

// ActivityAdapter lets the export engine append audit entries through the
// Postgres store.
type ActivityAdapter struct {
	Store Store
}

func (a ActivityAdapter) LogActivity(ctx context.Context, ownerID, planID, action, description string) error {
	return a.Store.InsertActivity(ctx, ownerID, planID, action, description)
}
