package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fsawadogo/sqordia-sub000/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureUserByEmail finds a user by email or creates one.
func (s *PostgresStore) EnsureUserByEmail(ctx context.Context, displayName, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, email, created_at FROM users WHERE email=$1`, email).
		Scan(&user.ID, &user.DisplayName, &user.Email, &user.CreatedAt)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	user = User{ID: util.NewID("usr"), DisplayName: displayName, Email: email}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, display_name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, user.ID, user.DisplayName, user.Email).Scan(&user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreatePlan(ctx context.Context, ownerID, title, description string) (Plan, error) {
	plan := Plan{ID: util.NewID("plan"), OwnerID: ownerID, Title: title, Description: description}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO plans (id, owner_id, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, plan.ID, plan.OwnerID, plan.Title, plan.Description).Scan(&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	return plan, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, planID string) (Plan, error) {
	var plan Plan
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, description, created_at, updated_at
		FROM plans WHERE id=$1
	`, planID).Scan(&plan.ID, &plan.OwnerID, &plan.Title, &description, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return Plan{}, err
	}
	plan.Description = description.String
	return plan, nil
}

func (s *PostgresStore) ListPlans(ctx context.Context, ownerID string) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, description, created_at, updated_at
		FROM plans WHERE owner_id=$1 ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var plan Plan
		var description sql.NullString
		if err := rows.Scan(&plan.ID, &plan.OwnerID, &plan.Title, &description, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plan.Description = description.String
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *PostgresStore) UpdatePlan(ctx context.Context, planID, title, description string) (Plan, error) {
	var plan Plan
	var desc sql.NullString
	err := s.db.QueryRowContext(ctx, `
		UPDATE plans SET title=$2, description=$3, updated_at=NOW()
		WHERE id=$1
		RETURNING id, owner_id, title, description, created_at, updated_at
	`, planID, title, description).Scan(&plan.ID, &plan.OwnerID, &plan.Title, &desc, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return Plan{}, err
	}
	plan.Description = desc.String
	return plan, nil
}

func (s *PostgresStore) CreateSection(ctx context.Context, planID, title, content string, sortOrder int) (PlanSection, error) {
	section := PlanSection{ID: util.NewID("sec"), PlanID: planID, Title: title, Content: content, SortOrder: sortOrder}
	var stored sql.NullString
	if content != "" {
		stored = sql.NullString{String: content, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO plan_sections (id, plan_id, title, content, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, section.ID, section.PlanID, section.Title, stored, section.SortOrder).Scan(&section.CreatedAt, &section.UpdatedAt)
	if err != nil {
		return PlanSection{}, fmt.Errorf("insert section: %w", err)
	}
	return section, nil
}

// ListSections returns every section of the plan in ascending sort order.
// Equal sort keys keep retrieval order.
func (s *PostgresStore) ListSections(ctx context.Context, planID string) ([]PlanSection, error) {
	return s.querySections(ctx, `
		SELECT id, plan_id, title, content, sort_order, created_at, updated_at
		FROM plan_sections WHERE plan_id=$1 ORDER BY sort_order ASC
	`, planID)
}

// ListSectionsByIDs returns only the named sections, still in sort order.
// Unknown ids are silently absent from the result.
func (s *PostgresStore) ListSectionsByIDs(ctx context.Context, planID string, sectionIDs []string) ([]PlanSection, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	return s.querySections(ctx, `
		SELECT id, plan_id, title, content, sort_order, created_at, updated_at
		FROM plan_sections WHERE plan_id=$1 AND id = ANY($2) ORDER BY sort_order ASC
	`, planID, sectionIDs)
}

func (s *PostgresStore) querySections(ctx context.Context, query string, args ...any) ([]PlanSection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []PlanSection
	for rows.Next() {
		var section PlanSection
		var content sql.NullString
		if err := rows.Scan(&section.ID, &section.PlanID, &section.Title, &content,
			&section.SortOrder, &section.CreatedAt, &section.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		section.Content = content.String
		sections = append(sections, section)
	}
	return sections, rows.Err()
}

func (s *PostgresStore) UpdateSectionContent(ctx context.Context, sectionID, content string) (PlanSection, error) {
	var stored sql.NullString
	if content != "" {
		stored = sql.NullString{String: content, Valid: true}
	}
	var section PlanSection
	var scanned sql.NullString
	err := s.db.QueryRowContext(ctx, `
		UPDATE plan_sections SET content=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING id, plan_id, title, content, sort_order, created_at, updated_at
	`, sectionID, stored).Scan(&section.ID, &section.PlanID, &section.Title, &scanned,
		&section.SortOrder, &section.CreatedAt, &section.UpdatedAt)
	if err != nil {
		return PlanSection{}, err
	}
	section.Content = scanned.String

	if _, err := s.db.ExecContext(ctx, `UPDATE plans SET updated_at=NOW() WHERE id=$1`, section.PlanID); err != nil {
		return PlanSection{}, fmt.Errorf("touch plan: %w", err)
	}
	return section, nil
}

// InsertActivity appends one audit record. Callers treat failures as
// best-effort; the store itself just reports them.
func (s *PostgresStore) InsertActivity(ctx context.Context, userID, planID, actionType, description string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, plan_id, action_type, description)
		VALUES ($1, $2, $3, $4, $5)
	`, util.NewID("act"), userID, planID, actionType, description)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivity(ctx context.Context, planID string, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plan_id, action_type, description, created_at
		FROM activity_logs WHERE plan_id=$1 ORDER BY created_at DESC LIMIT $2
	`, planID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var entry ActivityEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.PlanID, &entry.ActionType, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
