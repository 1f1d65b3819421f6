package store

import "time"

type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

// Plan is one business plan owned by a user.
type Plan struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PlanSection is one ordered content block of a plan. Content is NULL in
// the database until the user authors the section.
type PlanSection struct {
	ID        string
	PlanID    string
	Title     string
	Content   string // "" when unauthored
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActivityEntry is one append-only audit record for a plan.
type ActivityEntry struct {
	ID          string
	UserID      string
	PlanID      string
	ActionType  string
	Description string
	CreatedAt   time.Time
}
