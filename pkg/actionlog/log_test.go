package actionlog

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/store"
	"github.com/gazay/logux-core/pkg/store/memstore"
)

// pagedStore serves memstore views in fixed-size pages and counts fetches.
type pagedStore struct {
	*memstore.Store
	size  int
	pages int
}

func (p *pagedStore) Get(ctx context.Context, opts store.GetOptions) (store.Page, error) {
	p.pages++
	all, err := p.Store.Get(ctx, store.GetOptions{Order: opts.Order})
	if err != nil {
		return store.Page{}, err
	}
	// The cursor is the Added or id key of the last entry served.
	start := 0
	if !opts.Cursor.Done() {
		start = len(all.Entries)
		for i, e := range all.Entries {
			if cursorBefore(opts.Order, e.Meta, opts.Cursor) {
				start = i
				break
			}
		}
	}
	end := min(start+p.size, len(all.Entries))
	page := store.Page{Entries: all.Entries[start:end]}
	if end < len(all.Entries) {
		page.Next = cursorOf(opts.Order, all.Entries[end-1].Meta)
	}
	return page, nil
}

func cursorOf(order store.Order, m store.Meta) store.Cursor {
	if order == store.OrderAdded {
		return binary.BigEndian.AppendUint64(nil, m.Added)
	}
	return id.AppendKey(nil, m.ID)
}

func cursorBefore(order store.Order, m store.Meta, c store.Cursor) bool {
	if order == store.OrderAdded {
		return m.Added < binary.BigEndian.Uint64(c)
	}
	cid, _ := id.DecodeKey(c)
	return id.IsFirstOlder(m.ID, cid)
}

func newTestLog(t *testing.T, s store.Store) *Log {
	t.Helper()
	l, err := New(Options{Store: s, Timer: id.NewTestTimer("test")})
	require.NoError(t, err)
	return l
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Timer: id.NewTestTimer("n")})
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = New(Options{Store: memstore.New()})
	assert.ErrorIs(t, err, ErrNoTimer)

	var nilTimer *id.Timer
	_, err = New(Options{Store: memstore.New(), Timer: nilTimer})
	assert.ErrorIs(t, err, ErrNoTimer)
	var nilFunc id.TimerFunc
	_, err = New(Options{Store: memstore.New(), Timer: nilFunc})
	assert.ErrorIs(t, err, ErrNoTimer)
}

func TestAddFillsMeta(t *testing.T) {
	l := newTestLog(t, memstore.New())
	ctx := context.Background()

	var got []store.Meta
	l.OnAdd(func(_ store.Action, m store.Meta) { got = append(got, m) })

	ok, err := l.Add(ctx, store.Action{"type": "A"}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	meta := &store.Meta{Reasons: []string{"test"}}
	ok, err = l.Add(ctx, store.Action{"type": "B"}, meta)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id.ID{Ms: 2, Node: "test", Seq: 0}, meta.ID)
	assert.Equal(t, int64(2), meta.Time)
	assert.Equal(t, uint64(2), meta.Added)

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID.Ms)
	assert.Equal(t, uint64(1), got[0].Added)
	assert.Equal(t, uint64(2), l.LastAdded())
}

func TestAddKeepsExplicitTime(t *testing.T) {
	l := newTestLog(t, memstore.New())
	meta := &store.Meta{ID: id.ID{Ms: 50, Node: "x"}, Time: 10}
	_, err := l.Add(context.Background(), store.Action{"type": "A"}, meta)
	require.NoError(t, err)
	assert.Equal(t, int64(10), meta.Time)
}

func TestAddDuplicateEmitsOnce(t *testing.T) {
	l := newTestLog(t, memstore.New())
	ctx := context.Background()
	calls := 0
	l.OnAdd(func(store.Action, store.Meta) { calls++ })

	eid := id.ID{Ms: 1, Node: "a"}
	ok, err := l.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: eid})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: eid})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestAddRequiresType(t *testing.T) {
	l := newTestLog(t, memstore.New())
	for _, a := range []store.Action{{}, {"type": nil}, {"name": "x"}} {
		_, err := l.Add(context.Background(), a, nil)
		assert.ErrorIs(t, err, ErrMissingType)
	}
}

func TestOnceAddAndUnregister(t *testing.T) {
	l := newTestLog(t, memstore.New())
	ctx := context.Background()

	once, every := 0, 0
	l.OnceAdd(func(store.Action, store.Meta) { once++ })
	unregister := l.OnAdd(func(store.Action, store.Meta) { every++ })

	for i := 0; i < 3; i++ {
		_, err := l.Add(ctx, store.Action{"type": "A"}, nil)
		require.NoError(t, err)
	}
	unregister()
	unregister()
	_, err := l.Add(ctx, store.Action{"type": "A"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, once)
	assert.Equal(t, 3, every)
}

func TestListenerMayUnregisterItself(t *testing.T) {
	l := newTestLog(t, memstore.New())
	calls := 0
	var unregister func()
	unregister = l.OnAdd(func(store.Action, store.Meta) {
		calls++
		unregister()
	})
	for i := 0; i < 2; i++ {
		_, err := l.Add(context.Background(), store.Action{"type": "A"}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestLastAddedFollowsStore(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for i := int64(1); i <= 3; i++ {
		_, err := s.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: i, Node: "other"}})
		require.NoError(t, err)
	}
	l := newTestLog(t, s)
	meta := &store.Meta{}
	_, err := l.Add(ctx, store.Action{"type": "A"}, meta)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), meta.Added)
	assert.Equal(t, uint64(4), l.LastAdded())
}

func TestCleanRemovesUnkeptEntries(t *testing.T) {
	for _, size := range []int{0, 1, 2} {
		t.Run(fmt.Sprintf("page%d", size), func(t *testing.T) {
			ctx := context.Background()
			var s store.Store = memstore.New()
			if size > 0 {
				s = &pagedStore{Store: memstore.New(), size: size}
			}
			l := newTestLog(t, s)
			l.Keep(func(a store.Action, _ store.Meta) bool { return a["type"] == "A" })

			a := &store.Meta{}
			b := &store.Meta{}
			r := &store.Meta{Reasons: []string{"sync"}}
			for _, add := range []struct {
				typ  string
				meta *store.Meta
			}{{"A", a}, {"B", b}, {"C", r}} {
				_, err := l.Add(ctx, store.Action{"type": add.typ}, add.meta)
				require.NoError(t, err)
			}

			require.NoError(t, l.Clean(ctx))

			_, found, err := l.ByID(ctx, a.ID)
			require.NoError(t, err)
			assert.True(t, found, "kept entry removed")
			_, found, err = l.ByID(ctx, b.ID)
			require.NoError(t, err)
			assert.False(t, found, "unkept entry survived")
			_, found, err = l.ByID(ctx, r.ID)
			require.NoError(t, err)
			assert.True(t, found, "entry with reasons removed")
		})
	}
}

func TestCleanNotifiesBeforeSweep(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t, memstore.New())
	meta := &store.Meta{}
	_, err := l.Add(ctx, store.Action{"type": "A"}, meta)
	require.NoError(t, err)

	cleans := 0
	l.OnClean(func() {
		cleans++
		l.Keep(func(store.Action, store.Meta) bool { return true })
	})
	require.NoError(t, l.Clean(ctx))
	assert.Equal(t, 1, cleans)

	_, found, err := l.ByID(ctx, meta.ID)
	require.NoError(t, err)
	assert.True(t, found, "keeper registered by clean listener was ignored")
}

func TestCleanSkipsEntriesAddedDuringSweep(t *testing.T) {
	ctx := context.Background()
	ps := &pagedStore{Store: memstore.New(), size: 1}
	l := newTestLog(t, ps)
	for i := 0; i < 3; i++ {
		_, err := l.Add(ctx, store.Action{"type": "A"}, nil)
		require.NoError(t, err)
	}

	late := id.ID{Ms: 0, Node: "late", Seq: 0}
	added := false
	l.Keep(func(store.Action, store.Meta) bool {
		if !added {
			added = true
			_, err := l.Add(ctx, store.Action{"type": "late"}, &store.Meta{ID: late, Time: 1})
			require.NoError(t, err)
		}
		return false
	})
	require.NoError(t, l.Clean(ctx))

	assert.Equal(t, 1, ps.Len())
	_, found, err := l.ByID(ctx, late)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestEachStopsEarly(t *testing.T) {
	for _, size := range []int{0, 1, 2, 3, 10} {
		t.Run(fmt.Sprintf("page%d", size), func(t *testing.T) {
			ctx := context.Background()
			var s store.Store = memstore.New()
			if size > 0 {
				s = &pagedStore{Store: memstore.New(), size: size}
			}
			l := newTestLog(t, s)
			for i := 0; i < 5; i++ {
				_, err := l.Add(ctx, store.Action{"type": "A"}, nil)
				require.NoError(t, err)
			}
			calls := 0
			err := l.Each(ctx, EachOptions{}, func(store.Action, store.Meta) bool {
				calls++
				return calls < 2
			})
			require.NoError(t, err)
			assert.Equal(t, 2, calls)
		})
	}
}

func TestEachWalksPagesInOrder(t *testing.T) {
	ctx := context.Background()
	ps := &pagedStore{Store: memstore.New(), size: 2}
	l := newTestLog(t, ps)
	ids := []id.ID{{Ms: 3, Node: "n"}, {Ms: 1, Node: "n"}, {Ms: 2, Node: "n"}, {Ms: 5, Node: "n"}, {Ms: 4, Node: "n"}}
	for _, eid := range ids {
		_, err := l.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: eid})
		require.NoError(t, err)
	}

	var created []int64
	require.NoError(t, l.Each(ctx, EachOptions{}, func(_ store.Action, m store.Meta) bool {
		created = append(created, m.ID.Ms)
		return true
	}))
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, created)
	assert.Equal(t, 3, ps.pages)

	var arrival []int64
	require.NoError(t, l.Each(ctx, EachOptions{Order: store.OrderAdded}, func(_ store.Action, m store.Meta) bool {
		arrival = append(arrival, m.ID.Ms)
		return true
	}))
	assert.Equal(t, []int64{4, 5, 2, 1, 3}, arrival)
}

func TestEachHonorsCancellationBetweenPages(t *testing.T) {
	ps := &pagedStore{Store: memstore.New(), size: 1}
	l := newTestLog(t, ps)
	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		_, err := l.Add(ctx, store.Action{"type": "A"}, nil)
		require.NoError(t, err)
	}
	err := l.Each(ctx, EachOptions{}, func(store.Action, store.Meta) bool {
		cancel()
		return true
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ps.pages)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics("test")
	l, err := New(Options{Store: memstore.New(), Timer: id.NewTestTimer("n"), Metrics: m})
	require.NoError(t, err)

	meta := &store.Meta{}
	_, err = l.Add(ctx, store.Action{"type": "A"}, meta)
	require.NoError(t, err)
	_, err = l.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: meta.ID})
	require.NoError(t, err)
	_, err = l.Add(ctx, store.Action{"type": "B"}, nil)
	require.NoError(t, err)
	require.NoError(t, l.Clean(ctx))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.added))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicates))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cleaned))
	assert.Len(t, m.Collectors(), 4)
	assert.Nil(t, (*Metrics)(nil).Collectors())
}

func TestLoadLastAdded(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for i := int64(1); i <= 2; i++ {
		_, err := s.Add(ctx, store.Action{"type": "A"}, &store.Meta{ID: id.ID{Ms: i, Node: "n"}})
		require.NoError(t, err)
	}
	l := newTestLog(t, s)
	assert.Zero(t, l.LastAdded())
	v, err := l.LoadLastAdded(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v)
	assert.Equal(t, uint64(2), l.LastAdded())
}
