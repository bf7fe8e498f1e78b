package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/triplet-classifier/internal/model"
)

// MemoryStore is an in-memory VectorStore guarded by a RWMutex.
//
// The vector dimension is established by the first record; later records
// with a different dimension are rejected with a DimensionMismatchError.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*LabeledRecord
	dim     int
	seq     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*LabeledRecord),
	}
}

// Upsert inserts or replaces a record by ID.
func (s *MemoryStore) Upsert(_ context.Context, record *LabeledRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(record.Vector)
	} else if len(record.Vector) != s.dim {
		return &DimensionMismatchError{Want: s.dim, Got: len(record.Vector)}
	}

	stored := cloneRecord(record)
	if existing, ok := s.records[record.ID]; ok {
		// A replacement keeps the position the original held in insertion
		// order.
		stored.InsertedAt = existing.InsertedAt
	} else {
		s.seq++
		stored.InsertedAt = s.seq
	}
	s.records[record.ID] = stored
	return nil
}

// Query returns up to topK records most similar to the vector, ordered by
// similarity descending with deterministic tie-breaks.
func (s *MemoryStore) Query(_ context.Context, vector []float64, topK int) ([]QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.records) == 0 {
		return nil, nil
	}
	if s.dim != 0 && len(vector) != s.dim {
		return nil, &DimensionMismatchError{Want: s.dim, Got: len(vector)}
	}

	results := make([]QueryResult, 0, len(s.records))
	for _, rec := range s.records {
		results = append(results, QueryResult{
			Record:     cloneRecord(rec),
			Similarity: CosineSimilarity(vector, rec.Vector),
		})
	}

	sortResults(results)

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes a record by ID. Absent IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

// sortResults orders results by similarity descending, then InsertedAt
// ascending, then ID ascending.
func sortResults(results []QueryResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Record.InsertedAt != results[j].Record.InsertedAt {
			return results[i].Record.InsertedAt < results[j].Record.InsertedAt
		}
		return results[i].Record.ID < results[j].Record.ID
	})
}

// cloneRecord copies a record so callers cannot mutate stored state.
func cloneRecord(r *LabeledRecord) *LabeledRecord {
	vec := make([]float64, len(r.Vector))
	copy(vec, r.Vector)

	triplets := make(model.TripletSet, len(r.Triplets))
	copy(triplets, r.Triplets)

	return &LabeledRecord{
		ID:         r.ID,
		Triplets:   triplets,
		Vector:     vec,
		DocType:    r.DocType,
		DocCode:    r.DocCode,
		InsertedAt: r.InsertedAt,
	}
}

var _ VectorStore = (*MemoryStore)(nil)
