package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Query describes a search request. OwnerID is empty for the local
// device scope and set to the user ID when signed in.
type Query struct {
	Text    string
	OwnerID string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over decision records.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push decision records into a search index.
type Indexer interface {
	IndexRecord(rec RecordDoc) error
	DeleteRecord(id string) error
}

// RecordDoc is the flattened decision record pushed into the index.
type RecordDoc struct {
	ID             string `json:"id"`
	OwnerID        string `json:"ownerId"`
	Title          string `json:"title"`
	Question       string `json:"question"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
	Options        string `json:"options"`
}
