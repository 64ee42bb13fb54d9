package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the
// stored decision documents. It serves signed-in users when
// Meilisearch is down.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, remote storage is
// down with it and search is the least of the caller's problems.
func (p *PgFTS) Healthy() bool {
	return true
}

const decisionTSVector = `to_tsvector('english',
	coalesce(doc->>'title', '') || ' ' ||
	coalesce(doc->'input'->>'question', '') || ' ' ||
	coalesce(doc->'analysis'->>'summary', '') || ' ' ||
	coalesce(doc->'analysis'->'recommendation'->>'suggestedOption', ''))`

// Search ranks a user's decisions with plainto_tsquery and ts_rank,
// using ts_headline on the summary for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	if q.OwnerID == "" {
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

	where := fmt.Sprintf("user_id = $2 AND %s @@ plainto_tsquery('english', $1)", decisionTSVector)
	args := []any{q.Text, q.OwnerID}

	ctx := context.Background()

	var total int
	countSQL := fmt.Sprintf("SELECT count(*) FROM decisions WHERE %s", where)
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, coalesce(doc->>'title', '') AS title,
			ts_headline('english', coalesce(doc->'analysis'->>'summary', ''),
				plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM decisions
		WHERE %s
		ORDER BY ts_rank(%s, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, decisionTSVector, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every stored decision flattened for full
// reindexing into Meilisearch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]RecordDoc, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id,
			coalesce(doc->>'title', ''),
			coalesce(doc->'input'->>'question', ''),
			coalesce(doc->'analysis'->>'summary', ''),
			coalesce(doc->'analysis'->'recommendation'->>'suggestedOption', '')
		FROM decisions
	`)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}
	defer rows.Close()

	records := make([]RecordDoc, 0)
	for rows.Next() {
		var rec RecordDoc
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Question, &rec.Summary, &rec.Recommendation); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return records, nil
}
