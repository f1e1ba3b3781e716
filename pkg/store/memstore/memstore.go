// Package memstore is the reference in-memory Store.
//
// It keeps everything in two slices and scans linearly on insert, which is
// fine for tests and small deployments but not for large logs. Get returns
// the whole view as a single page.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/store"
)

// Store keeps the created and added views in memory.
type Store struct {
	mu sync.Mutex
	// created is sorted by id.Compare, newest first.
	created []*store.Entry
	// added is sorted by Meta.Added, newest first. It shares pointers with created.
	added []*store.Entry

	lastAdded    uint64
	lastReceived uint64
	lastSent     uint64
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store { return &Store{} }

// Add inserts the entry unless its ID is already present.
func (s *Store) Add(_ context.Context, action store.Action, meta *store.Meta) (bool, error) {
	if meta == nil || meta.ID.IsZero() {
		return false, store.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := len(s.created)
	for i, other := range s.created {
		c := id.Compare(other.Meta.ID, meta.ID)
		if c == 0 {
			return false, nil
		}
		if c < 0 {
			pos = i
			break
		}
	}

	s.lastAdded++
	meta.Added = s.lastAdded
	e := &store.Entry{Action: action.Clone(), Meta: meta.Clone()}

	s.created = append(s.created, nil)
	copy(s.created[pos+1:], s.created[pos:])
	s.created[pos] = e

	s.added = append([]*store.Entry{e}, s.added...)
	return true, nil
}

// ByID returns a copy of the entry.
func (s *Store) ByID(_ context.Context, eid id.ID) (store.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(eid)
	if i < 0 {
		return store.Entry{}, false, nil
	}
	return s.created[i].Clone(), true, nil
}

// Remove deletes the entry from both views.
func (s *Store) Remove(_ context.Context, eid id.ID) (store.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(eid)
	if i < 0 {
		return store.Entry{}, false, nil
	}
	e := s.created[i]
	s.created = append(s.created[:i], s.created[i+1:]...)

	// added is strictly descending by Added.
	j := sort.Search(len(s.added), func(k int) bool { return s.added[k].Meta.Added <= e.Meta.Added })
	if j < len(s.added) && s.added[j].Meta.Added == e.Meta.Added {
		s.added = append(s.added[:j], s.added[j+1:]...)
	}
	return *e, true, nil
}

// Get returns the full view as a single page with no continuation.
func (s *Store) Get(_ context.Context, opts store.GetOptions) (store.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.created
	if opts.Order == store.OrderAdded {
		src = s.added
	}
	entries := make([]store.Entry, len(src))
	for i, e := range src {
		entries[i] = e.Clone()
	}
	return store.Page{Entries: entries}, nil
}

// ChangeMeta merges patch into the stored metadata.
func (s *Store) ChangeMeta(_ context.Context, eid id.ID, patch store.MetaPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(eid)
	if i < 0 {
		return false, nil
	}
	patch.Apply(&s.created[i].Meta)
	return true, nil
}

// RemoveReason filters created once, then drops the collected counters from
// added. onRemoved runs after the lock is released.
func (s *Store) RemoveReason(_ context.Context, reason string, c store.Criteria, onRemoved store.RemovedFunc) error {
	removed := s.removeReason(reason, c)
	if onRemoved != nil {
		for _, e := range removed {
			onRemoved(e.Action, e.Meta)
		}
	}
	return nil
}

func (s *Store) removeReason(reason string, c store.Criteria) []*store.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*store.Entry
	gone := make(map[uint64]struct{})
	kept := s.created[:0]
	for _, e := range s.created {
		if !e.Meta.HasReason(reason) || !c.Match(e.Meta) {
			kept = append(kept, e)
			continue
		}
		e.Meta.Reasons = e.Meta.WithoutReason(reason)
		if len(e.Meta.Reasons) > 0 {
			kept = append(kept, e)
			continue
		}
		gone[e.Meta.Added] = struct{}{}
		removed = append(removed, e)
	}
	for i := len(kept); i < len(s.created); i++ {
		s.created[i] = nil
	}
	s.created = kept

	if len(gone) == 0 {
		return nil
	}
	keptAdded := s.added[:0]
	for _, e := range s.added {
		if _, ok := gone[e.Meta.Added]; !ok {
			keptAdded = append(keptAdded, e)
		}
	}
	for i := len(keptAdded); i < len(s.added); i++ {
		s.added[i] = nil
	}
	s.added = keptAdded
	return removed
}

func (s *Store) GetLastAdded(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAdded, nil
}

func (s *Store) GetLastSynced(context.Context) (store.Synced, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.Synced{Received: s.lastReceived, Sent: s.lastSent}, nil
}

func (s *Store) SetLastSynced(_ context.Context, p store.SyncedPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Received != nil {
		s.lastReceived = *p.Received
	}
	if p.Sent != nil {
		s.lastSent = *p.Sent
	}
	return nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

func (s *Store) find(eid id.ID) int {
	for i, e := range s.created {
		if e.Meta.ID == eid {
			return i
		}
	}
	return -1
}
