package docstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetMissingReturnsNil(t *testing.T) {
	m := NewMemory()
	d, err := m.Get(context.Background(), "tokens", "nope")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestMemory_MergeKeepsUnspecifiedFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "companies", "C1", Doc{"companyName": "Acme", "planId": "p1"}))
	require.NoError(t, m.Merge(ctx, "companies", "C1", Doc{"planId": "p2"}))

	d, err := m.Get(ctx, "companies", "C1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", d["companyName"])
	assert.Equal(t, "p2", d["planId"])

	require.NoError(t, m.Set(ctx, "companies", "C1", Doc{"planId": "p3"}))
	d, _ = m.Get(ctx, "companies", "C1")
	assert.NotContains(t, d, "companyName")
}

func TestMemory_QueryFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "users", "u1", Doc{"companyId": "C1", "locationIds": []string{"L1", "L2"}}))
	require.NoError(t, m.Set(ctx, "users", "u2", Doc{"companyId": "C1", "locationIds": []interface{}{"L2"}}))
	require.NoError(t, m.Set(ctx, "users", "u3", Doc{"companyId": "C2", "locationIds": []string{"L1"}}))

	snaps, err := m.Query(ctx, "users", []Filter{Contains("locationIds", "L1")}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, ids(snaps))

	snaps, err = m.Query(ctx, "users", []Filter{Eq("companyId", "C1"), Contains("locationIds", "L2")}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids(snaps))

	snaps, err = m.Query(ctx, "users", []Filter{Eq("companyId", "C1")}, 1)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	_, err = m.Query(ctx, "users", []Filter{{Field: "x", Op: ">", Value: 1}}, 0)
	assert.Error(t, err)
}

func TestMemory_ReturnedDocsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "c", "1", Doc{"tags": []string{"a"}}))

	d, _ := m.Get(ctx, "c", "1")
	d["tags"].([]string)[0] = "mutated"

	d2, _ := m.Get(ctx, "c", "1")
	assert.Equal(t, []string{"a"}, d2["tags"])
}

func TestBatchWriter_CommitsAtCap(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	w := NewBatchWriter(m)

	total := MaxBatchOps*2 + 17
	for i := 0; i < total; i++ {
		require.NoError(t, w.Set(ctx, "contacts", fmt.Sprintf("c%04d", i), Doc{"n": i}))
	}
	require.NoError(t, w.Flush(ctx))

	assert.Equal(t, 3, m.Commits())
	assert.Equal(t, total, w.Committed())
	assert.Equal(t, total, m.Count("contacts"))

	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, 3, m.Commits())
}

func TestBatchWriter_MixedOps(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "users", "u1", Doc{"name": "a", "role": "admin"}))
	require.NoError(t, m.Set(ctx, "users", "u2", Doc{"name": "b"}))

	w := NewBatchWriter(m)
	require.NoError(t, w.Merge(ctx, "users", "u1", Doc{"name": "a2"}))
	require.NoError(t, w.Delete(ctx, "users", "u2"))
	require.NoError(t, w.Flush(ctx))

	d, _ := m.Get(ctx, "users", "u1")
	assert.Equal(t, "a2", d["name"])
	assert.Equal(t, "admin", d["role"])
	assert.Equal(t, 1, m.Count("users"))
}

func TestMemory_ArrayUnion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Merge(ctx, "users", "u1", Doc{"locationIds": ArrayUnion("L1")}))
	require.NoError(t, m.Merge(ctx, "users", "u1", Doc{"locationIds": ArrayUnion("L2", "L1")}))
	d, _ := m.Get(ctx, "users", "u1")
	assert.Equal(t, []string{"L1", "L2"}, d["locationIds"])

	require.NoError(t, m.Set(ctx, "users", "u2", Doc{"locationIds": []interface{}{"L3"}}))
	w := NewBatchWriter(m)
	require.NoError(t, w.Merge(ctx, "users", "u2", Doc{"locationIds": ArrayUnion("L4")}))
	require.NoError(t, w.Flush(ctx))
	d, _ = m.Get(ctx, "users", "u2")
	assert.Equal(t, []string{"L3", "L4"}, Strings(d, "locationIds"))

	snaps, err := m.Query(ctx, "users", []Filter{Contains("locationIds", "L4")}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, ids(snaps))
}

func TestMemory_ConcurrentArrayUnionKeepsEveryElement(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Merge(ctx, "users", "u1", Doc{"locationIds": ArrayUnion(fmt.Sprintf("L%02d", i))})
		}(i)
	}
	wg.Wait()

	d, _ := m.Get(ctx, "users", "u1")
	assert.Len(t, Strings(d, "locationIds"), 20)
}

func TestValues(t *testing.T) {
	d := Doc{
		"s":    "x",
		"i":    int64(5),
		"f":    float64(7),
		"arr":  []interface{}{"a", 1, "b"},
		"bool": true,
	}
	assert.Equal(t, "x", String(d, "s"))
	assert.Equal(t, "", String(d, "i"))
	assert.Equal(t, int64(5), Int64(d, "i"))
	assert.Equal(t, int64(7), Int64(d, "f"))
	assert.Equal(t, []string{"a", "b"}, Strings(d, "arr"))
	assert.True(t, Bool(d, "bool"))
	assert.True(t, Time(d, "missing").IsZero())
}

func ids(snaps []Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.ID)
	}
	return out
}
