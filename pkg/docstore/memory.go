package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and STORE_DRIVER=memory.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Doc
	commits     int
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Doc)}
}

func (m *Memory) Get(_ context.Context, collection, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return copyDoc(d), nil
}

func (m *Memory) Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Snapshot, error) {
	return m.QueryPage(ctx, collection, filters, "", limit)
}

func (m *Memory) QueryPage(_ context.Context, collection string, filters []Filter, afterID string, limit int) ([]Snapshot, error) {
	for _, f := range filters {
		if f.Op != OpEqual && f.Op != OpArrayContains {
			return nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Snapshot
	for _, id := range ids {
		if afterID != "" && id <= afterID {
			continue
		}
		if !matches(docs[id], filters) {
			continue
		}
		out = append(out, Snapshot{ID: id, Data: copyDoc(docs[id])})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(collection, id, data)
	return nil
}

func (m *Memory) Merge(_ context.Context, collection, id string, data Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merge(collection, id, data)
	return nil
}

func (m *Memory) Add(_ context.Context, collection string, data Doc) (string, error) {
	id := uuid.New().String()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(collection, id, data)
	return id, nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) Batch() Batch {
	return &memoryBatch{store: m}
}

// Count returns the number of documents in a collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Commits returns how many batches have been committed.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

func (m *Memory) set(collection, id string, data Doc) {
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]Doc)
	}
	m.collections[collection][id] = resolveUnions(nil, copyDoc(data))
}

func (m *Memory) merge(collection, id string, data Doc) {
	existing, ok := m.collections[collection][id]
	if !ok {
		m.set(collection, id, data)
		return
	}
	for k, v := range resolveUnions(existing, copyDoc(data)) {
		existing[k] = v
	}
}

// resolveUnions replaces Union values in data with the union of the stored
// array and the new elements. Callers hold the write lock.
func resolveUnions(existing, data Doc) Doc {
	for k, v := range data {
		u, ok := v.(Union)
		if !ok {
			continue
		}
		data[k] = unionArray(existing[k], u.Values)
	}
	return data
}

func unionArray(stored interface{}, values []interface{}) interface{} {
	var items []interface{}
	switch a := stored.(type) {
	case []string:
		for _, s := range a {
			items = append(items, s)
		}
	case []interface{}:
		items = append(items, a...)
	}
	for _, v := range values {
		if !arrayContains(items, v) {
			items = append(items, v)
		}
	}

	strs := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return items
		}
		strs = append(strs, s)
	}
	return strs
}

type memoryOp struct {
	kind       string
	collection string
	id         string
	data       Doc
}

type memoryBatch struct {
	store *Memory
	ops   []memoryOp
}

func (b *memoryBatch) Set(collection, id string, data Doc) {
	b.ops = append(b.ops, memoryOp{kind: "set", collection: collection, id: id, data: copyDoc(data)})
}

func (b *memoryBatch) Merge(collection, id string, data Doc) {
	b.ops = append(b.ops, memoryOp{kind: "merge", collection: collection, id: id, data: copyDoc(data)})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, memoryOp{kind: "delete", collection: collection, id: id})
}

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Commit(_ context.Context) error {
	if len(b.ops) > MaxBatchOps {
		return fmt.Errorf("batch of %d exceeds %d operations", len(b.ops), MaxBatchOps)
	}

	m := b.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range b.ops {
		switch op.kind {
		case "set":
			m.set(op.collection, op.id, op.data)
		case "merge":
			m.merge(op.collection, op.id, op.data)
		case "delete":
			delete(m.collections[op.collection], op.id)
		}
	}
	m.commits++
	b.ops = nil
	return nil
}

func matches(d Doc, filters []Filter) bool {
	for _, f := range filters {
		v, ok := d[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if !reflect.DeepEqual(v, f.Value) {
				return false
			}
		case OpArrayContains:
			if !arrayContains(v, f.Value) {
				return false
			}
		}
	}
	return true
}

func arrayContains(arr, want interface{}) bool {
	switch a := arr.(type) {
	case []string:
		for _, s := range a {
			if s == want {
				return true
			}
		}
	case []interface{}:
		for _, item := range a {
			if reflect.DeepEqual(item, want) {
				return true
			}
		}
	}
	return false
}

func copyDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		switch t := v.(type) {
		case []string:
			out[k] = append([]string(nil), t...)
		case []interface{}:
			out[k] = append([]interface{}(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}
