package search

import (
	"context"
	"log"
	"strings"

	"decisio/api/internal/decision"
	"decisio/api/internal/store"
)

// Service is the facade in front of the available backends. Signed-in
// queries try Meilisearch first and fall back to Postgres FTS; local
// scope queries hit the in-memory working set.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	memory *Memory
}

// NewService creates a search service. meili and pgfts may be nil when
// the corresponding backend is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts, memory: NewMemory()}
}

// Search routes the query to the best available backend.
func (s *Service) Search(q Query) Response {
	if q.OwnerID == "" {
		results, total, err := s.memory.Search(q)
		if err != nil {
			log.Printf("search: memory error: %v", err)
			return Response{Results: []Result{}, Query: q.Text}
		}
		return Response{Results: nonNil(results), Total: total, Query: q.Text}
	}

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexRecord pushes one decision record to every index. Meilisearch
// writes are fire-and-forget.
func (s *Service) IndexRecord(ownerID string, rec decision.Record) {
	doc := Flatten(ownerID, rec)
	if ownerID == "" {
		if err := s.memory.IndexRecord(doc); err != nil {
			log.Printf("search: index record %s: %v", doc.ID, err)
		}
		return
	}
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRecord(doc); err != nil {
			log.Printf("search: index record %s: %v", doc.ID, err)
		}
	}()
}

// DeleteRecord removes a decision record from every index.
func (s *Service) DeleteRecord(ownerID, id string) {
	if ownerID == "" {
		if err := s.memory.DeleteRecord(id); err != nil {
			log.Printf("search: delete record %s: %v", id, err)
		}
		return
	}
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteRecord(id); err != nil {
			log.Printf("search: delete record %s: %v", id, err)
		}
	}()
}

// ReplaceAll reseeds the in-memory index whenever the working set is
// replaced wholesale. The memory index only serves the device scope, so
// a switch to a user scope empties it.
func (s *Service) ReplaceAll(scope store.Scope, records []decision.Record) {
	if scope == store.ScopeLocal {
		s.ResetLocal("", records)
		return
	}
	s.memory.Reset(nil)
}

// ResetLocal replaces the in-memory index with the given working set,
// called after a scope switch or bulk delete.
func (s *Service) ResetLocal(ownerID string, records []decision.Record) {
	docs := make([]RecordDoc, 0, len(records))
	for _, rec := range records {
		docs = append(docs, Flatten(ownerID, rec))
	}
	s.memory.Reset(docs)
}

// ReindexAllFromPG pushes every stored decision from PostgreSQL into
// Meilisearch, called at startup when both backends are configured.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexRecords(records); err != nil {
		log.Printf("search: reindex records: %v", err)
	}
}

// Flatten turns a decision record into its indexable form.
func Flatten(ownerID string, rec decision.Record) RecordDoc {
	names := make([]string, 0, len(rec.Analysis.OptionsAnalysis))
	for _, opt := range rec.Analysis.OptionsAnalysis {
		names = append(names, opt.Name)
	}
	return RecordDoc{
		ID:             rec.ID,
		OwnerID:        ownerID,
		Title:          rec.Title,
		Question:       rec.Input.Question,
		Summary:        rec.Analysis.Summary,
		Recommendation: rec.Analysis.Recommendation.SuggestedOption,
		Options:        strings.Join(names, "\n"),
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
