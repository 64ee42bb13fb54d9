package search

import (
	"sort"
	"strings"
	"sync"
)

// Memory is a substring matcher over the in-memory working set. It
// backs search for the local device scope, where no Postgres or
// Meilisearch instance is in play.
type Memory struct {
	mu      sync.RWMutex
	records map[string]RecordDoc
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]RecordDoc)}
}

func (m *Memory) Healthy() bool {
	return true
}

// IndexRecord adds or replaces one record.
func (m *Memory) IndexRecord(rec RecordDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

// DeleteRecord drops a record; unknown IDs are a no-op.
func (m *Memory) DeleteRecord(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Reset replaces the whole working set, used when the scope switches.
func (m *Memory) Reset(records []RecordDoc) {
	next := make(map[string]RecordDoc, len(records))
	for _, rec := range records {
		next[rec.ID] = rec
	}
	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
}

// Search matches the query text case-insensitively against every
// indexed field and returns title-sorted hits.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}

	m.mu.RLock()
	var matched []RecordDoc
	for _, rec := range m.records {
		haystack := strings.ToLower(strings.Join([]string{
			rec.Title, rec.Question, rec.Summary, rec.Recommendation, rec.Options,
		}, "\n"))
		if strings.Contains(haystack, needle) {
			matched = append(matched, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	results := make([]Result, 0, end-offset)
	for _, rec := range matched[offset:end] {
		results = append(results, Result{
			ID:      rec.ID,
			Title:   rec.Title,
			Snippet: snippetAround(rec.Summary, needle),
		})
	}
	return results, total, nil
}

// snippetAround trims the summary to a short window around the first
// match, falling back to the summary head.
func snippetAround(summary, needle string) string {
	const window = 120
	lower := strings.ToLower(summary)
	idx := strings.Index(lower, needle)
	if idx < 0 {
		if len(summary) <= window {
			return summary
		}
		return summary[:window]
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(summary) {
		end = len(summary)
	}
	return summary[start:end]
}
