package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across plans and plan_sections using
// plainto_tsquery and ts_rank, with ts_headline for snippets. The tsvector
// expressions match the GIN indexes created by the migrations, so these
// scans stay indexed.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Plans sub-query
	if q.FilterType == "" || q.FilterType == ResultPlan {
		planVec := "to_tsvector('english', p.title || ' ' || coalesce(p.description, ''))"
		planWhere := planVec + " @@ " + tsQuery
		if q.FilterPlanID != "" {
			planWhere += fmt.Sprintf(" AND p.id = $%d", argN)
			args = append(args, q.FilterPlanID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'plan'::text AS type, p.id, p.title,
				ts_headline('english', coalesce(p.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS plan_id,
				ts_rank(%s, %s) AS rank
			FROM plans p
			WHERE %s`, tsQuery, planVec, tsQuery, planWhere))
	}

	// Sections sub-query
	if q.FilterType == "" || q.FilterType == ResultSection {
		secVec := "to_tsvector('english', s.title || ' ' || coalesce(s.content, ''))"
		secWhere := secVec + " @@ " + tsQuery
		if q.FilterPlanID != "" {
			secWhere += fmt.Sprintf(" AND s.plan_id = $%d", argN)
			args = append(args, q.FilterPlanID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'section'::text AS type, s.id, s.title,
				ts_headline('english', coalesce(s.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				s.plan_id,
				ts_rank(%s, %s) AS rank
			FROM plan_sections s
			WHERE %s`, tsQuery, secVec, tsQuery, secWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, plan_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.PlanID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PlanRecord, []SectionRecord, error) {
	planRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, coalesce(description, '')
		FROM plans
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load plans: %w", err)
	}
	defer planRows.Close()

	plans := make([]PlanRecord, 0)
	for planRows.Next() {
		var r PlanRecord
		if err := planRows.Scan(&r.ID, &r.Title, &r.Description); err != nil {
			return nil, nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, r)
	}
	if err := planRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate plans: %w", err)
	}

	sectionRows, err := p.db.QueryContext(ctx, `
		SELECT id, plan_id, title, coalesce(content, '')
		FROM plan_sections
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load sections: %w", err)
	}
	defer sectionRows.Close()

	sections := make([]SectionRecord, 0)
	for sectionRows.Next() {
		var r SectionRecord
		if err := sectionRows.Scan(&r.ID, &r.PlanID, &r.Title, &r.Content); err != nil {
			return nil, nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, r)
	}
	if err := sectionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sections: %w", err)
	}

	return plans, sections, nil
}
