package diskstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pebblestore "github.com/gazay/logux-core/internal/storage/pebble"
	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/store"
	"github.com/gazay/logux-core/pkg/store/storetest"
)

func openDB(t *testing.T, dir string) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T, pageSize int) *Store {
	t.Helper()
	db := openDB(t, t.TempDir())
	t.Cleanup(func() { _ = db.Close() })
	s, err := New(db, Options{Namespace: "main", PageSize: pageSize})
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t, 0) })
}

func TestConformanceSmallPages(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t, 2) })
}

func TestNewValidatesNamespace(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	for _, ns := range []string{"", "a/b"} {
		_, err := New(db, Options{Namespace: ns})
		assert.ErrorIs(t, err, ErrInvalidNamespace, "namespace %q", ns)
	}
}

func TestAddRejectsNulInNode(t *testing.T) {
	s := newTestStore(t, 0)
	_, err := s.Add(context.Background(), store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: 1, Node: "a\x00b", Seq: 0}})
	assert.ErrorIs(t, err, id.ErrNodeNotKeyable)
}

func TestReopenKeepsEntriesAndCounters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db := openDB(t, dir)
	s, err := New(db, Options{Namespace: "main"})
	require.NoError(t, err)
	for i := uint64(0); i < 3; i++ {
		ok, err := s.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: 10, Node: "n", Seq: i}, Reasons: []string{"r"}})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, s.SetLastSynced(ctx, store.SyncedPatch{Received: store.Uint64(7), Sent: store.Uint64(2)}))
	require.NoError(t, db.Close())

	db = openDB(t, dir)
	defer db.Close()
	s, err = New(db, Options{Namespace: "main"})
	require.NoError(t, err)

	last, err := s.GetLastAdded(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)

	synced, err := s.GetLastSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Synced{Received: 7, Sent: 2}, synced)

	entries := storetest.All(t, s, store.OrderCreated, 0)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(2), entries[0].Meta.ID.Seq)

	meta := &store.Meta{ID: id.ID{Ms: 11, Node: "n", Seq: 0}}
	ok, err := s.Add(ctx, store.Action{"type": "B"}, meta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(4), meta.Added)
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, t.TempDir())
	defer db.Close()

	a, err := New(db, Options{Namespace: "a"})
	require.NoError(t, err)
	ab, err := New(db, Options{Namespace: "ab"})
	require.NoError(t, err)

	_, err = a.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: 1, Node: "n"}})
	require.NoError(t, err)

	assert.Empty(t, storetest.All(t, ab, store.OrderCreated, 0))
	assert.Empty(t, storetest.All(t, ab, store.OrderAdded, 0))
	last, err := ab.GetLastAdded(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestGetRejectsForeignCursor(t *testing.T) {
	s := newTestStore(t, 1)
	ctx := context.Background()
	for i := uint64(0); i < 2; i++ {
		_, err := s.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: 1, Node: "n", Seq: i}})
		require.NoError(t, err)
	}
	page, err := s.Get(ctx, store.GetOptions{Order: store.OrderCreated})
	require.NoError(t, err)
	require.False(t, page.Next.Done())

	_, err = s.Get(ctx, store.GetOptions{Order: store.OrderAdded, Cursor: page.Next})
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestRemoveReasonUsesIDBounds(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()
	for ms := int64(1); ms <= 5; ms++ {
		_, err := s.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: ms, Node: "n"}, Reasons: []string{"r"}})
		require.NoError(t, err)
	}
	var removed []int64
	err := s.RemoveReason(ctx, "r", store.Criteria{
		YoungerThan: &id.ID{Ms: 1, Node: "n"},
		OlderThan:   &id.ID{Ms: 5, Node: "n"},
	}, func(_ store.Action, m store.Meta) { removed = append(removed, m.ID.Ms) })
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, removed)

	left := storetest.All(t, s, store.OrderCreated, 0)
	require.Len(t, left, 2)
	assert.Equal(t, int64(5), left[0].Meta.ID.Ms)
	assert.Equal(t, int64(1), left[1].Meta.ID.Ms)
}

func TestRecordChecksum(t *testing.T) {
	rec, err := encodeRecord(store.Entry{Action: store.Action{"type": "A"}, Meta: store.Meta{ID: id.ID{Ms: 1, Node: "n"}}})
	require.NoError(t, err)

	e, err := decodeRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "A", e.Action["type"])

	rec[len(rec)-5] ^= 0xff
	_, err = decodeRecord(rec)
	assert.ErrorIs(t, err, ErrCorruptRecord)

	_, err = decodeRecord(rec[:3])
	assert.ErrorIs(t, err, ErrCorruptRecord)
}
