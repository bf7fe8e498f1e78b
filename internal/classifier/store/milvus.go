package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/triplet-classifier/internal/model"
	"github.com/kart-io/triplet-classifier/pkg/component/milvus"
	"github.com/kart-io/triplet-classifier/pkg/utils/json"
)

var milvusOutputFields = []string{"id", "doc_type", "doc_code", "triplets", "inserted_at"}

// MilvusStore persists labeled records in a Milvus collection.
//
// InsertedAt is assigned from a process-local monotonic counter seeded
// with the current time, so ordering holds across restarts as long as
// clocks do not run backwards.
type MilvusStore struct {
	client     *milvus.Client
	collection string
	dim        int
	seq        atomic.Int64
}

// NewMilvusStore creates the collection if needed and returns the store.
func NewMilvusStore(ctx context.Context, client *milvus.Client, collection string, dim int) (*MilvusStore, error) {
	schema := &milvus.CollectionSchema{
		Name:        collection,
		Description: "labeled triplet vectors for document-summary classification",
		Dimension:   dim,
		MetaFields: []milvus.MetaField{
			{Name: "doc_type", DataType: entity.FieldTypeVarChar, MaxLen: 128},
			{Name: "doc_code", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "triplets", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "inserted_at", DataType: entity.FieldTypeInt64},
		},
	}
	if err := client.EnsureCollection(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure collection %q: %w", collection, err)
	}

	s := &MilvusStore{
		client:     client,
		collection: collection,
		dim:        dim,
	}
	s.seq.Store(time.Now().UnixNano())
	return s, nil
}

// Upsert inserts or replaces a record by ID. A replaced record keeps its
// original InsertedAt.
func (s *MilvusStore) Upsert(ctx context.Context, record *LabeledRecord) error {
	if len(record.Vector) != s.dim {
		return &DimensionMismatchError{Want: s.dim, Got: len(record.Vector)}
	}

	insertedAt := s.seq.Add(1)
	existing, err := s.client.Query(ctx, s.collection,
		fmt.Sprintf("id == %q", record.ID), []string{"id", "inserted_at"})
	if err != nil {
		return fmt.Errorf("lookup record %q: %w", record.ID, err)
	}
	if len(existing) > 0 {
		if prev, ok := existing[0]["inserted_at"].(int64); ok {
			insertedAt = prev
		}
		if err := s.client.DeleteByIDs(ctx, s.collection, []string{record.ID}); err != nil {
			return fmt.Errorf("replace record %q: %w", record.ID, err)
		}
	}

	tripletsJSON, err := json.Marshal(record.Triplets)
	if err != nil {
		return fmt.Errorf("marshal triplets: %w", err)
	}

	vec := make([]float32, len(record.Vector))
	for i, f := range record.Vector {
		vec[i] = float32(f)
	}

	data := &milvus.InsertData{
		IDs:        []string{record.ID},
		Embeddings: [][]float32{vec},
		Metadata: map[string][]any{
			"doc_type":    {record.DocType},
			"doc_code":    {record.DocCode},
			"triplets":    {string(tripletsJSON)},
			"inserted_at": {insertedAt},
		},
	}
	if err := s.client.Insert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("insert record %q: %w", record.ID, err)
	}
	return nil
}

// Query returns up to topK records most similar to the vector. Milvus
// returns cosine scores; results are re-sorted client side so tie-breaks
// stay deterministic.
func (s *MilvusStore) Query(ctx context.Context, vector []float64, topK int) ([]QueryResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, &DimensionMismatchError{Want: s.dim, Got: len(vector)}
	}

	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	vec := make([]float32, len(vector))
	for i, f := range vector {
		vec[i] = float32(f)
	}

	hits, err := s.client.Search(ctx, s.collection, vec, topK, milvusOutputFields)
	if err != nil {
		return nil, fmt.Errorf("search collection %q: %w", s.collection, err)
	}

	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := recordFromMetadata(hit.ID, hit.Metadata)
		if err != nil {
			return nil, err
		}

		sim := float64(hit.Score)
		if sim < 0 {
			sim = 0
		}
		if sim > 1 {
			sim = 1
		}
		results = append(results, QueryResult{Record: rec, Similarity: sim})
	}

	sortResults(results)
	return results, nil
}

// Delete removes a record by ID. Absent IDs are ignored.
func (s *MilvusStore) Delete(ctx context.Context, id string) error {
	return s.client.DeleteByIDs(ctx, s.collection, []string{id})
}

// Count returns the number of stored records.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, s.collection)
}

// Close closes the underlying client.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func recordFromMetadata(id string, metadata map[string]any) (*LabeledRecord, error) {
	rec := &LabeledRecord{ID: id}

	if v, ok := metadata["doc_type"].(string); ok {
		rec.DocType = v
	}
	if v, ok := metadata["doc_code"].(string); ok {
		rec.DocCode = v
	}
	if v, ok := metadata["inserted_at"].(int64); ok {
		rec.InsertedAt = v
	}
	if v, ok := metadata["triplets"].(string); ok && v != "" {
		var triplets model.TripletSet
		if err := json.Unmarshal([]byte(v), &triplets); err != nil {
			return nil, fmt.Errorf("unmarshal triplets for record %q: %w", id, err)
		}
		rec.Triplets = triplets
	}

	return rec, nil
}

var _ VectorStore = (*MilvusStore)(nil)
