// Package docstore is the document-collection abstraction every repository
// writes through. Collections are slash separated paths, so nested
// collections such as "locations/L1/users" are addressed the same way as
// top-level ones.
package docstore

import (
	"context"
	"fmt"
)

// MaxBatchOps keeps batches below Firestore's 500 write limit.
const MaxBatchOps = 400

// Doc is a schemaless document body.
type Doc map[string]interface{}

// Snapshot is a document together with its id.
type Snapshot struct {
	ID   string
	Data Doc
}

// Query operators understood by every Store.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

type Filter struct {
	Field string
	Op    string
	Value interface{}
}

// Eq is shorthand for an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// Union is a field value that adds its elements to the stored array instead
// of replacing it. Stores apply it atomically, so concurrent writers never
// drop each other's elements.
type Union struct {
	Values []interface{}
}

// ArrayUnion builds a Union of strings.
func ArrayUnion(values ...string) Union {
	u := Union{Values: make([]interface{}, 0, len(values))}
	for _, v := range values {
		u.Values = append(u.Values, v)
	}
	return u
}

// Contains is shorthand for an array-contains filter.
func Contains(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

// Store is implemented by the Firestore adapter and the in-memory fake.
type Store interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, collection, id string) (Doc, error)
	// Query returns documents matching all filters. limit <= 0 means no limit.
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Snapshot, error)
	// QueryPage returns up to limit matching documents ordered by id, starting
	// after afterID. An empty afterID starts from the beginning.
	QueryPage(ctx context.Context, collection string, filters []Filter, afterID string, limit int) ([]Snapshot, error)
	// Set replaces the whole document.
	Set(ctx context.Context, collection, id string, data Doc) error
	// Merge writes only the given fields, creating the document if needed.
	Merge(ctx context.Context, collection, id string, data Doc) error
	// Add creates a document with a generated id.
	Add(ctx context.Context, collection string, data Doc) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Batch() Batch
}

// Batch groups writes that commit together.
type Batch interface {
	Set(collection, id string, data Doc)
	Merge(collection, id string, data Doc)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}

// BatchWriter commits and opens a fresh batch whenever MaxBatchOps is reached.
type BatchWriter struct {
	store     Store
	batch     Batch
	limit     int
	committed int
}

func NewBatchWriter(store Store) *BatchWriter {
	return &BatchWriter{store: store, batch: store.Batch(), limit: MaxBatchOps}
}

func (w *BatchWriter) Set(ctx context.Context, collection, id string, data Doc) error {
	w.batch.Set(collection, id, data)
	return w.flushIfFull(ctx)
}

func (w *BatchWriter) Merge(ctx context.Context, collection, id string, data Doc) error {
	w.batch.Merge(collection, id, data)
	return w.flushIfFull(ctx)
}

func (w *BatchWriter) Delete(ctx context.Context, collection, id string) error {
	w.batch.Delete(collection, id)
	return w.flushIfFull(ctx)
}

// Flush commits pending writes. It must be called once after the last write.
func (w *BatchWriter) Flush(ctx context.Context) error {
	if w.batch.Len() == 0 {
		return nil
	}
	n := w.batch.Len()
	if err := w.batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch of %d: %w", n, err)
	}
	w.committed += n
	w.batch = w.store.Batch()
	return nil
}

// Committed reports how many writes have been committed so far.
func (w *BatchWriter) Committed() int {
	return w.committed
}

func (w *BatchWriter) flushIfFull(ctx context.Context) error {
	if w.batch.Len() < w.limit {
		return nil
	}
	return w.Flush(ctx)
}
