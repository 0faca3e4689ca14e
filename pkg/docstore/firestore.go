package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreStore struct {
	client *firestore.Client
}

// NewFirestore adapts a Firestore client to Store.
func NewFirestore(client *firestore.Client) Store {
	return &firestoreStore{client: client}
}

func (s *firestoreStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return snap.Data(), nil
}

func (s *firestoreStore) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Snapshot, error) {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.collect(ctx, collection, q)
}

func (s *firestoreStore) QueryPage(ctx context.Context, collection string, filters []Filter, afterID string, limit int) ([]Snapshot, error) {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	q = q.OrderBy(firestore.DocumentID, firestore.Asc)
	if afterID != "" {
		q = q.StartAfter(afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.collect(ctx, collection, q)
}

func (s *firestoreStore) collect(ctx context.Context, collection string, q firestore.Query) ([]Snapshot, error) {
	it := q.Documents(ctx)
	defer it.Stop()

	var out []Snapshot
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		out = append(out, Snapshot{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return out, nil
}

func (s *firestoreStore) Set(ctx context.Context, collection, id string, data Doc) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, toFirestore(data)); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *firestoreStore) Merge(ctx context.Context, collection, id string, data Doc) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, toFirestore(data), firestore.MergeAll); err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *firestoreStore) Add(ctx context.Context, collection string, data Doc) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, map[string]interface{}(data))
	if err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *firestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *firestoreStore) Batch() Batch {
	return &firestoreBatch{client: s.client, wb: s.client.Batch()}
}

type firestoreBatch struct {
	client *firestore.Client
	wb     *firestore.WriteBatch
	n      int
}

func (b *firestoreBatch) Set(collection, id string, data Doc) {
	b.wb.Set(b.client.Collection(collection).Doc(id), toFirestore(data))
	b.n++
}

func (b *firestoreBatch) Merge(collection, id string, data Doc) {
	b.wb.Set(b.client.Collection(collection).Doc(id), toFirestore(data), firestore.MergeAll)
	b.n++
}

func (b *firestoreBatch) Delete(collection, id string) {
	b.wb.Delete(b.client.Collection(collection).Doc(id))
	b.n++
}

func (b *firestoreBatch) Len() int { return b.n }

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.n == 0 {
		return nil
	}
	_, err := b.wb.Commit(ctx)
	return err
}

// toFirestore turns Union values into server-side array transforms.
func toFirestore(data Doc) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if u, ok := v.(Union); ok {
			out[k] = firestore.ArrayUnion(u.Values...)
			continue
		}
		out[k] = v
	}
	return out
}
