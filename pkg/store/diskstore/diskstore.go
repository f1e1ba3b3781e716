// Package diskstore is a persistent Store on Pebble.
//
// Each namespace owns a key prefix. Entries are kept once under their causal
// key and referenced from an arrival index, so both views are plain reverse
// range scans. Writers are serialised per Store; readers work on snapshots.
package diskstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/gazay/logux-core/internal/storage/pebble"
	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/log"
	"github.com/gazay/logux-core/pkg/store"
)

// DefaultPageSize is the Get page size when GetOptions.Limit is zero.
const DefaultPageSize = 256

var (
	// ErrInvalidNamespace is returned by New for empty names or names with '/'.
	ErrInvalidNamespace = errors.New("diskstore: invalid namespace")
	// ErrInvalidCursor is returned by Get for cursors from another view.
	ErrInvalidCursor = errors.New("diskstore: invalid cursor")
)

// Options configures New.
type Options struct {
	Namespace string
	PageSize  int
	Logger    log.Logger
}

// Store is a namespace-scoped Store over a shared Pebble handle. It does not
// own the handle.
type Store struct {
	db       *pebblestore.DB
	keys     keyspace
	pageSize int
	logger   log.Logger

	// mu serialises writers so read-check-write sequences stay atomic.
	mu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New binds a Store to opts.Namespace inside db.
func New(db *pebblestore.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("diskstore: nil db")
	}
	if opts.Namespace == "" || strings.ContainsRune(opts.Namespace, '/') {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, opts.Namespace)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	return &Store{
		db:       db,
		keys:     newKeyspace(opts.Namespace),
		pageSize: opts.PageSize,
		logger:   opts.Logger.With(log.Component("diskstore"), log.Str("namespace", opts.Namespace)),
	}, nil
}

// Add writes the record, its arrival index and the bumped counter in one batch.
func (s *Store) Add(ctx context.Context, action store.Action, meta *store.Meta) (bool, error) {
	if meta == nil || meta.ID.IsZero() {
		return false, store.ErrMissingID
	}
	if err := id.ValidateKeyable(meta.ID); err != nil {
		return false, err
	}
	key := s.keys.entry(meta.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.db.Has(key)
	if err != nil {
		return false, fmt.Errorf("diskstore: add: %w", err)
	}
	if exists {
		return false, nil
	}
	last, err := s.counter(addedName)
	if err != nil {
		return false, err
	}

	e := store.Entry{Action: action, Meta: meta.Clone()}
	e.Meta.Added = last + 1
	rec, err := encodeRecord(e)
	if err != nil {
		return false, fmt.Errorf("diskstore: add: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set(key, rec, nil)
	_ = b.Set(s.keys.arrivalKey(e.Meta.Added), key[len(s.keys.created):], nil)
	_ = b.Set(s.keys.counter(addedName), appendBE8(nil, e.Meta.Added), nil)
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return false, fmt.Errorf("diskstore: add: %w", err)
	}
	meta.Added = e.Meta.Added
	s.logger.Debug("entry stored", log.Str("id", meta.ID.String()), log.Uint64("added", meta.Added))
	return true, nil
}

// ByID reads one record.
func (s *Store) ByID(_ context.Context, eid id.ID) (store.Entry, bool, error) {
	if id.ValidateKeyable(eid) != nil {
		return store.Entry{}, false, nil
	}
	return s.load(s.keys.entry(eid))
}

func (s *Store) load(key []byte) (store.Entry, bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, pebblestore.ErrNotFound) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, err
	}
	e, err := decodeRecord(raw)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("%w: key %x", err, key)
	}
	return e, true, nil
}

// Remove deletes the record and its arrival index entry.
func (s *Store) Remove(ctx context.Context, eid id.ID) (store.Entry, bool, error) {
	if id.ValidateKeyable(eid) != nil {
		return store.Entry{}, false, nil
	}
	key := s.keys.entry(eid)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok, err := s.load(key)
	if err != nil || !ok {
		return store.Entry{}, false, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Delete(key, nil)
	_ = b.Delete(s.keys.arrivalKey(e.Meta.Added), nil)
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return store.Entry{}, false, fmt.Errorf("diskstore: remove: %w", err)
	}
	return e, true, nil
}

// Get returns one page of a view. The cursor is the last key of the previous
// page; Next is nil once the view is exhausted.
func (s *Store) Get(ctx context.Context, opts store.GetOptions) (store.Page, error) {
	prefix := s.keys.created
	if opts.Order == store.OrderAdded {
		prefix = s.keys.arrival
	}
	upper := pebblestore.PrefixUpperBound(prefix)
	if !opts.Cursor.Done() {
		if !bytes.HasPrefix(opts.Cursor, prefix) {
			return store.Page{}, ErrInvalidCursor
		}
		upper = opts.Cursor
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	snap := s.db.NewSnapshot()
	defer snap.Close()
	it, err := snap.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return store.Page{}, err
	}
	defer it.Close()

	page := store.Page{Entries: make([]store.Entry, 0, min(limit, 64))}
	var lastKey []byte
	ok := it.Last()
	for ; ok && len(page.Entries) < limit; ok = it.Prev() {
		if err := ctx.Err(); err != nil {
			return store.Page{}, err
		}
		raw := it.Value()
		if opts.Order == store.OrderAdded {
			raw, err = snapGet(snap, join(s.keys.created, it.Value()))
			if err != nil {
				return store.Page{}, err
			}
		}
		e, err := decodeRecord(raw)
		if err != nil {
			return store.Page{}, fmt.Errorf("%w: key %x", err, it.Key())
		}
		page.Entries = append(page.Entries, e)
		lastKey = append(lastKey[:0], it.Key()...)
	}
	if err := it.Error(); err != nil {
		return store.Page{}, err
	}
	if ok {
		page.Next = store.Cursor(lastKey)
	}
	return page, nil
}

func snapGet(snap *pebble.Snapshot, key []byte) ([]byte, error) {
	v, closer, err := snap.Get(key)
	if err != nil {
		return nil, fmt.Errorf("diskstore: dangling arrival index %x: %w", key, err)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// ChangeMeta rewrites the record with patch applied. The arrival index is
// untouched because Added is immutable.
func (s *Store) ChangeMeta(ctx context.Context, eid id.ID, patch store.MetaPatch) (bool, error) {
	if id.ValidateKeyable(eid) != nil {
		return false, nil
	}
	key := s.keys.entry(eid)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok, err := s.load(key)
	if err != nil || !ok {
		return false, err
	}
	patch.Apply(&e.Meta)
	rec, err := encodeRecord(e)
	if err != nil {
		return false, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set(key, rec, nil)
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return false, fmt.Errorf("diskstore: change meta: %w", err)
	}
	return true, nil
}

// RemoveReason scans a snapshot of the causal view and applies every update
// and deletion in one batch. onRemoved runs after the batch commits.
func (s *Store) RemoveReason(ctx context.Context, reason string, c store.Criteria, onRemoved store.RemovedFunc) error {
	s.mu.Lock()
	removed, err := s.removeReason(ctx, reason, c)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if onRemoved != nil {
		for _, e := range removed {
			onRemoved(e.Action, e.Meta)
		}
	}
	return nil
}

func (s *Store) removeReason(ctx context.Context, reason string, c store.Criteria) ([]store.Entry, error) {
	snap := s.db.NewSnapshot()
	defer snap.Close()
	it, err := snap.NewIter(s.criteriaBounds(c))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	b := s.db.NewBatch()
	defer b.Close()
	var removed []store.Entry
	updated := 0
	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := decodeRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("%w: key %x", err, it.Key())
		}
		if !e.Meta.HasReason(reason) || !c.Match(e.Meta) {
			continue
		}
		e.Meta.Reasons = e.Meta.WithoutReason(reason)
		if len(e.Meta.Reasons) == 0 {
			_ = b.Delete(it.Key(), nil)
			_ = b.Delete(s.keys.arrivalKey(e.Meta.Added), nil)
			removed = append(removed, e)
			continue
		}
		rec, err := encodeRecord(e)
		if err != nil {
			return nil, err
		}
		_ = b.Set(it.Key(), rec, nil)
		updated++
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	if b.Empty() {
		return nil, nil
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, fmt.Errorf("diskstore: remove reason: %w", err)
	}
	s.logger.Debug("reason removed", log.Str("reason", reason), log.Int("removed", len(removed)), log.Int("updated", updated))
	return removed, nil
}

// criteriaBounds narrows the causal scan to the id range of c.
func (s *Store) criteriaBounds(c store.Criteria) *pebble.IterOptions {
	opts := pebblestore.PrefixIterOptions(s.keys.created)
	if c.YoungerThan != nil && id.ValidateKeyable(*c.YoungerThan) == nil {
		// Smallest key strictly after the bound.
		opts.LowerBound = append(s.keys.entry(*c.YoungerThan), 0)
	}
	if c.OlderThan != nil && id.ValidateKeyable(*c.OlderThan) == nil {
		opts.UpperBound = s.keys.entry(*c.OlderThan)
	}
	return opts
}

func (s *Store) GetLastAdded(context.Context) (uint64, error) {
	return s.counter(addedName)
}

func (s *Store) GetLastSynced(context.Context) (store.Synced, error) {
	received, err := s.counter(receiveName)
	if err != nil {
		return store.Synced{}, err
	}
	sent, err := s.counter(sentName)
	if err != nil {
		return store.Synced{}, err
	}
	return store.Synced{Received: received, Sent: sent}, nil
}

func (s *Store) SetLastSynced(ctx context.Context, p store.SyncedPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewBatch()
	defer b.Close()
	if p.Received != nil {
		_ = b.Set(s.keys.counter(receiveName), appendBE8(nil, *p.Received), nil)
	}
	if p.Sent != nil {
		_ = b.Set(s.keys.counter(sentName), appendBE8(nil, *p.Sent), nil)
	}
	if b.Empty() {
		return nil
	}
	return s.db.CommitBatch(ctx, b)
}

func (s *Store) counter(name string) (uint64, error) {
	raw, err := s.db.Get(s.keys.counter(name))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("diskstore: read counter %s: %w", name, err)
	}
	return decodeBE8(raw), nil
}
