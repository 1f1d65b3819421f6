package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPlan    ResultType = "plan"
	ResultSection ResultType = "section"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	PlanID  string     `json:"planId"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterType   ResultType // empty = all types
	FilterPlanID string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexPlan(p PlanRecord) error
	IndexSection(s SectionRecord) error
	DeletePlan(id string) error
	DeleteSection(id string) error
}

// PlanRecord is the data we index for a business plan.
type PlanRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SectionRecord is the data we index for a plan section. Content is the
// raw HTML body; Meilisearch tokenizes through the tags well enough.
type SectionRecord struct {
	ID      string `json:"id"`
	PlanID  string `json:"planId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
