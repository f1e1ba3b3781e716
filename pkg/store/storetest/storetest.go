// Package storetest is the conformance suite for store.Store implementations.
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) store.Store { return memstore.New() })
//	}
//
// Numbers are compared by their decimal text, since JSON-backed stores return
// them as json.Number while memstore returns the values it was given.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes every conformance case against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"DuplicateAdd", testDuplicateAdd},
		{"AddRequiresID", testAddRequiresID},
		{"ViewSortInvariant", testViewSort},
		{"ByIDAndRemove", testByIDAndRemove},
		{"RemoveKeepsArrivalView", testRemoveKeepsArrivalView},
		{"ChangeMeta", testChangeMeta},
		{"RetentionComposition", testRetentionComposition},
		{"RangeFilteringAdded", testRangeAdded},
		{"RangeFilteringIDs", testRangeIDs},
		{"LastAdded", testLastAdded},
		{"Watermarks", testWatermarks},
		{"Pagination", testPagination},
		{"ReturnedEntriesAreCopies", testCopies},
		{"PayloadRoundTrip", testPayloadRoundTrip},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, newStore(t))
		})
	}
}

func mkID(ms int64, node string, seq uint64) id.ID { return id.ID{Ms: ms, Node: node, Seq: seq} }

func add(t *testing.T, s store.Store, typ string, eid id.ID, reasons ...string) *store.Meta {
	t.Helper()
	m := &store.Meta{ID: eid, Time: eid.Ms, Reasons: reasons}
	ok, err := s.Add(context.Background(), store.Action{"type": typ}, m)
	require.NoError(t, err)
	require.True(t, ok, "add %v", eid)
	return m
}

// All walks a whole view following cursors with the given page size hint.
func All(t *testing.T, s store.Store, order store.Order, limit int) []store.Entry {
	t.Helper()
	var out []store.Entry
	opts := store.GetOptions{Order: order, Limit: limit}
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "pagination does not terminate")
		page, err := s.Get(context.Background(), opts)
		require.NoError(t, err)
		out = append(out, page.Entries...)
		if page.Next.Done() {
			return out
		}
		opts.Cursor = page.Next
	}
}

func ids(entries []store.Entry) []id.ID {
	out := make([]id.ID, len(entries))
	for i, e := range entries {
		out[i] = e.Meta.ID
	}
	return out
}

func testDuplicateAdd(t *testing.T, s store.Store) {
	ctx := context.Background()
	m1 := &store.Meta{ID: mkID(1, "a", 0), Time: 1}
	ok, err := s.Add(ctx, store.Action{"type": "A"}, m1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), m1.Added)

	m2 := &store.Meta{ID: mkID(1, "a", 0), Time: 1}
	ok, err = s.Add(ctx, store.Action{"type": "B"}, m2)
	require.NoError(t, err)
	assert.False(t, ok)

	e, found, err := s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "A", e.Action["type"])
	assert.Len(t, All(t, s, store.OrderCreated, 0), 1)
}

func testAddRequiresID(t *testing.T, s store.Store) {
	_, err := s.Add(context.Background(), store.Action{"type": "A"}, &store.Meta{})
	assert.ErrorIs(t, err, store.ErrMissingID)
}

func testViewSort(t *testing.T, s store.Store) {
	// Arrival order deliberately differs from causal order.
	input := []id.ID{
		mkID(5, "a", 0),
		mkID(1, "b", 0),
		mkID(3, "a", 1),
		mkID(3, "a", 0),
		mkID(3, "b", 0),
		mkID(9, "a", 0),
		mkID(2, "z", 4),
	}
	for _, eid := range input {
		add(t, s, "T", eid)
	}

	created := All(t, s, store.OrderCreated, 0)
	require.Len(t, created, len(input))
	for i := 1; i < len(created); i++ {
		assert.True(t, id.IsFirstOlder(created[i].Meta.ID, created[i-1].Meta.ID),
			"created view not newest first at %d: %v", i, ids(created))
	}

	added := All(t, s, store.OrderAdded, 0)
	require.Len(t, added, len(input))
	for i := 1; i < len(added); i++ {
		assert.Less(t, added[i].Meta.Added, added[i-1].Meta.Added)
	}
	for i, e := range added {
		assert.Equal(t, input[len(input)-1-i], e.Meta.ID)
	}
	assert.NotEqual(t, ids(created), ids(added))
}

func testByIDAndRemove(t *testing.T, s store.Store) {
	ctx := context.Background()
	add(t, s, "A", mkID(1, "a", 0))
	add(t, s, "B", mkID(2, "a", 0), "r")

	e, found, err := s.ByID(ctx, mkID(2, "a", 0))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "B", e.Action["type"])
	assert.Equal(t, []string{"r"}, e.Meta.Reasons)
	assert.Equal(t, uint64(2), e.Meta.Added)

	_, found, err = s.ByID(ctx, mkID(3, "a", 0))
	require.NoError(t, err)
	assert.False(t, found)

	removed, found, err := s.Remove(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "A", removed.Action["type"])

	_, found, err = s.Remove(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, []id.ID{mkID(2, "a", 0)}, ids(All(t, s, store.OrderCreated, 0)))
	assert.Equal(t, []id.ID{mkID(2, "a", 0)}, ids(All(t, s, store.OrderAdded, 0)))
}

func testRemoveKeepsArrivalView(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 6; i++ {
		add(t, s, "T", mkID(10-i, "n", 0))
	}
	_, found, err := s.Remove(ctx, mkID(6, "n", 0)) // fourth arrival
	require.NoError(t, err)
	require.True(t, found)

	added := All(t, s, store.OrderAdded, 0)
	var counters []uint64
	for _, e := range added {
		counters = append(counters, e.Meta.Added)
	}
	assert.Equal(t, []uint64{6, 5, 3, 2, 1}, counters)
}

func testChangeMeta(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := add(t, s, "A", mkID(1, "a", 0))

	ok, err := s.ChangeMeta(ctx, mkID(1, "a", 0), store.MetaPatch{
		Time:    store.Int64(77),
		Reasons: []string{"sync"},
		Extra:   map[string]any{"subprotocol": "1.0.0"},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	e, _, err := s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	assert.Equal(t, int64(77), e.Meta.Time)
	assert.Equal(t, []string{"sync"}, e.Meta.Reasons)
	assert.Equal(t, "1.0.0", e.Meta.Extra["subprotocol"])
	assert.Equal(t, m.Added, e.Meta.Added)
	assert.Equal(t, mkID(1, "a", 0), e.Meta.ID)

	ok, err = s.ChangeMeta(ctx, mkID(5, "a", 0), store.MetaPatch{Time: store.Int64(1)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testRetentionComposition(t *testing.T, s store.Store) {
	ctx := context.Background()
	add(t, s, "A", mkID(1, "a", 0), "r1", "r2")

	var calls []id.ID
	onRemoved := func(_ store.Action, m store.Meta) { calls = append(calls, m.ID) }

	require.NoError(t, s.RemoveReason(ctx, "r1", store.Criteria{}, onRemoved))
	assert.Empty(t, calls)
	e, found, err := s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"r2"}, e.Meta.Reasons)

	require.NoError(t, s.RemoveReason(ctx, "r2", store.Criteria{}, onRemoved))
	assert.Equal(t, []id.ID{mkID(1, "a", 0)}, calls)
	_, found, err = s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, All(t, s, store.OrderAdded, 0))
}

func testRangeAdded(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 8; i++ {
		add(t, s, "T", mkID(i, "n", 0), "r")
	}
	var removed []uint64
	err := s.RemoveReason(ctx, "r", store.Criteria{MinAdded: store.Uint64(5), MaxAdded: store.Uint64(7)},
		func(_ store.Action, m store.Meta) { removed = append(removed, m.Added) })
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{5, 6, 7}, removed)

	var left []uint64
	for _, e := range All(t, s, store.OrderAdded, 0) {
		left = append(left, e.Meta.Added)
	}
	assert.Equal(t, []uint64{8, 4, 3, 2, 1}, left)
}

func testRangeIDs(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		add(t, s, "T", mkID(i, "n", 0), "r")
	}
	older := mkID(3, "n", 0)
	require.NoError(t, s.RemoveReason(ctx, "r", store.Criteria{OlderThan: &older}, nil))
	assert.Equal(t, []id.ID{mkID(5, "n", 0), mkID(4, "n", 0), mkID(3, "n", 0)}, ids(All(t, s, store.OrderCreated, 0)))

	younger := mkID(4, "n", 0)
	require.NoError(t, s.RemoveReason(ctx, "r", store.Criteria{YoungerThan: &younger}, nil))
	assert.Equal(t, []id.ID{mkID(4, "n", 0), mkID(3, "n", 0)}, ids(All(t, s, store.OrderCreated, 0)))

	// entries without the reason are untouched
	add(t, s, "T", mkID(10, "n", 0))
	require.NoError(t, s.RemoveReason(ctx, "r", store.Criteria{}, nil))
	assert.Equal(t, []id.ID{mkID(10, "n", 0)}, ids(All(t, s, store.OrderCreated, 0)))
}

func testLastAdded(t *testing.T, s store.Store) {
	ctx := context.Background()
	n, err := s.GetLastAdded(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	add(t, s, "A", mkID(1, "a", 0))
	add(t, s, "B", mkID(2, "a", 0))
	_, _, err = s.Remove(ctx, mkID(2, "a", 0))
	require.NoError(t, err)

	n, err = s.GetLastAdded(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	m := add(t, s, "C", mkID(3, "a", 0))
	assert.Equal(t, uint64(3), m.Added)
}

func testWatermarks(t *testing.T, s store.Store) {
	ctx := context.Background()
	synced, err := s.GetLastSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Synced{}, synced)

	require.NoError(t, s.SetLastSynced(ctx, store.SyncedPatch{Sent: store.Uint64(5)}))
	require.NoError(t, s.SetLastSynced(ctx, store.SyncedPatch{Received: store.Uint64(2)}))
	require.NoError(t, s.SetLastSynced(ctx, store.SyncedPatch{}))

	synced, err = s.GetLastSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Synced{Received: 2, Sent: 5}, synced)
}

func testPagination(t *testing.T, s store.Store) {
	const n = 11
	for i := int64(1); i <= n; i++ {
		add(t, s, "T", mkID(i, "n", 0))
	}
	for _, order := range []store.Order{store.OrderCreated, store.OrderAdded} {
		for _, limit := range []int{1, 2, 3, 5, 11, 50} {
			got := All(t, s, order, limit)
			require.Len(t, got, n, "order=%v limit=%d", order, limit)
			for i, e := range got {
				assert.Equal(t, mkID(n-int64(i), "n", 0), e.Meta.ID, "order=%v limit=%d", order, limit)
			}
		}
	}
}

func testCopies(t *testing.T, s store.Store) {
	ctx := context.Background()
	m := &store.Meta{ID: mkID(1, "a", 0), Time: 1, Reasons: []string{"keep"}, Extra: map[string]any{
		"tags": []any{"x"},
	}}
	action := store.Action{"type": "A", "user": map[string]any{"name": "Ann"}}
	ok, err := s.Add(ctx, action, m)
	require.NoError(t, err)
	require.True(t, ok)
	action["user"].(map[string]any)["name"] = "changed before read"

	e, _, err := s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	e.Meta.Reasons[0] = "mutated"
	e.Action["type"] = "mutated"
	e.Action["user"].(map[string]any)["name"] = "mutated"
	e.Meta.Extra["tags"].([]any)[0] = "mutated"

	again, _, err := s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, again.Meta.Reasons)
	assert.Equal(t, "A", again.Action["type"])
	assert.Equal(t, "Ann", again.Action["user"].(map[string]any)["name"])
	assert.Equal(t, "x", again.Meta.Extra["tags"].([]any)[0])
}

func testPayloadRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	const big = int64(1<<53 + 1)
	action := store.Action{
		"type":   "A",
		"n":      5,
		"big":    big,
		"nested": map[string]any{"big": big},
		"list":   []any{int64(-7), "s"},
		"ok":     true,
	}
	m := &store.Meta{ID: mkID(1, "a", 0), Time: 1, Extra: map[string]any{"n": 42, "big": big}}
	ok, err := s.Add(ctx, action, m)
	require.NoError(t, err)
	require.True(t, ok)

	e, found, err := s.ByID(ctx, mkID(1, "a", 0))
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "A", e.Action["type"])
	assert.Equal(t, true, e.Action["ok"])
	assert.Equal(t, "5", numberText(t, e.Action["n"]))
	assert.Equal(t, "9007199254740993", numberText(t, e.Action["big"]))
	assert.Equal(t, "9007199254740993", numberText(t, e.Action["nested"].(map[string]any)["big"]))
	list := e.Action["list"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "-7", numberText(t, list[0]))
	assert.Equal(t, "s", list[1])
	assert.Equal(t, "42", numberText(t, e.Meta.Extra["n"]))
	assert.Equal(t, "9007199254740993", numberText(t, e.Meta.Extra["big"]))

	page, err := s.Get(ctx, store.GetOptions{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "9007199254740993", numberText(t, page.Entries[0].Action["big"]))
}

// numberText returns the exact decimal form of an integer payload value.
func numberText(t *testing.T, v any) string {
	t.Helper()
	switch v := v.(type) {
	case json.Number:
		return v.String()
	case int, int64, int32, uint64:
		return fmt.Sprint(v)
	}
	t.Fatalf("value %v has lossy type %T", v, v)
	return ""
}
