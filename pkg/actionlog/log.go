package actionlog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/log"
	"github.com/gazay/logux-core/pkg/store"
)

var (
	// ErrNoStore is returned by New without a Store.
	ErrNoStore = errors.New("actionlog: store is required")
	// ErrNoTimer is returned by New without a Timer.
	ErrNoTimer = errors.New("actionlog: timer is required")
	// ErrMissingType is returned by Add for actions without a non-nil "type".
	ErrMissingType = errors.New(`actionlog: expected "type" in action`)
)

// Timer issues identifiers for new actions. *id.Timer and id.TimerFunc
// implement it.
type Timer interface {
	Next() id.ID
}

// Keeper reports whether an entry must survive Clean.
type Keeper func(action store.Action, meta store.Meta) bool

// AddListener is notified after an action is accepted by the store.
type AddListener func(action store.Action, meta store.Meta)

// CleanListener is notified right before a sweep starts.
type CleanListener func()

// Options configures New.
type Options struct {
	Store   store.Store
	Timer   Timer
	Logger  log.Logger
	Metrics *Metrics
}

// Log stamps actions with identifiers, stores them, notifies listeners and
// sweeps entries nothing keeps.
type Log struct {
	store   store.Store
	timer   Timer
	logger  log.Logger
	metrics *Metrics

	lastAdded atomic.Uint64

	onAdd   registry[AddListener]
	onClean registry[CleanListener]
	keepers registry[Keeper]
}

// New returns a Log over opts.Store. A nil Timer, including a nil *id.Timer
// or id.TimerFunc, is rejected with ErrNoTimer.
func New(opts Options) (*Log, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	if isNilTimer(opts.Timer) {
		return nil, ErrNoTimer
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Log{
		store:   opts.Store,
		timer:   opts.Timer,
		logger:  logger.WithComponent("actionlog"),
		metrics: opts.Metrics,
	}, nil
}

func isNilTimer(t Timer) bool {
	switch t := t.(type) {
	case nil:
		return true
	case *id.Timer:
		return t == nil
	case id.TimerFunc:
		return t == nil
	}
	return false
}

// OnAdd registers fn for every accepted action.
func (l *Log) OnAdd(fn AddListener) (unregister func()) { return l.onAdd.add(fn, false) }

// OnceAdd registers fn for the next accepted action only.
func (l *Log) OnceAdd(fn AddListener) (unregister func()) { return l.onAdd.add(fn, true) }

// OnClean registers fn for every sweep.
func (l *Log) OnClean(fn CleanListener) (unregister func()) { return l.onClean.add(fn, false) }

// OnceClean registers fn for the next sweep only.
func (l *Log) OnceClean(fn CleanListener) (unregister func()) { return l.onClean.add(fn, true) }

// Keep registers a retention predicate.
func (l *Log) Keep(k Keeper) (unregister func()) { return l.keepers.add(k, false) }

// LastAdded returns the highest arrival counter this Log has seen.
func (l *Log) LastAdded() uint64 { return l.lastAdded.Load() }

// LoadLastAdded reads the store's arrival counter and raises the local
// mirror to it.
func (l *Log) LoadLastAdded(ctx context.Context) (uint64, error) {
	v, err := l.store.GetLastAdded(ctx)
	if err != nil {
		return 0, err
	}
	l.raiseLastAdded(v)
	return l.LastAdded(), nil
}

// Add stamps and stores action. meta may be nil; missing ID and Time are
// filled in and Added is assigned. It returns false when the ID was already
// stored, in which case no listener is called.
func (l *Log) Add(ctx context.Context, action store.Action, meta *store.Meta) (bool, error) {
	if _, ok := action.Type(); !ok {
		return false, ErrMissingType
	}
	if meta == nil {
		meta = &store.Meta{}
	}
	if meta.ID.IsZero() {
		meta.ID = l.timer.Next()
	}
	if meta.Time == 0 {
		meta.Time = meta.ID.Ms
	}
	meta.Added = l.lastAdded.Add(1)

	ok, err := l.store.Add(ctx, action, meta)
	if err != nil {
		return false, fmt.Errorf("actionlog: add %s: %w", meta.ID, err)
	}
	l.metrics.observeAdd(ok)
	if !ok {
		l.logger.Debug("duplicate action ignored", log.Str("id", meta.ID.String()))
		return false, nil
	}
	l.raiseLastAdded(meta.Added)
	l.logger.Debug("action added", log.Str("id", meta.ID.String()), log.Uint64("added", meta.Added))

	for _, fn := range l.onAdd.claim() {
		fn(action, *meta)
	}
	return true, nil
}

func (l *Log) raiseLastAdded(v uint64) {
	for {
		cur := l.lastAdded.Load()
		if v <= cur || l.lastAdded.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Clean notifies clean listeners, then removes every entry that has no
// reasons and that no keeper retains. Entries stored after the sweep started
// are left alone.
func (l *Log) Clean(ctx context.Context) error {
	start := time.Now()
	for _, fn := range l.onClean.claim() {
		fn()
	}

	watermark, err := l.store.GetLastAdded(ctx)
	if err != nil {
		return fmt.Errorf("actionlog: clean: %w", err)
	}

	removed, kept := 0, 0
	var removeErr error
	err = l.Each(ctx, EachOptions{}, func(action store.Action, meta store.Meta) bool {
		if meta.Added > watermark || len(meta.Reasons) > 0 || l.kept(action, meta) {
			kept++
			return true
		}
		if _, _, err := l.store.Remove(ctx, meta.ID); err != nil {
			removeErr = fmt.Errorf("actionlog: clean: remove %s: %w", meta.ID, err)
			return false
		}
		removed++
		return true
	})
	if removeErr != nil {
		return removeErr
	}
	if err != nil {
		return fmt.Errorf("actionlog: clean: %w", err)
	}
	elapsed := time.Since(start)
	l.metrics.observeClean(removed, elapsed.Seconds())
	l.logger.Info("clean finished", log.Int("removed", removed), log.Int("kept", kept), log.Duration("took", elapsed))
	return nil
}

func (l *Log) kept(action store.Action, meta store.Meta) bool {
	for _, k := range l.keepers.claim() {
		if k(action, meta) {
			return true
		}
	}
	return false
}

// EachOptions selects the view walked by Each.
type EachOptions struct {
	Order store.Order
	// PageSize is passed to the store as a page size hint.
	PageSize int
}

// Each calls fn for every entry, newest first, until fn returns false or the
// view is exhausted. Pages are fetched one at a time.
func (l *Log) Each(ctx context.Context, opts EachOptions, fn func(store.Action, store.Meta) bool) error {
	get := store.GetOptions{Order: opts.Order, Limit: opts.PageSize}
	for {
		page, err := l.store.Get(ctx, get)
		if err != nil {
			return err
		}
		for _, e := range page.Entries {
			if !fn(e.Action, e.Meta) {
				return nil
			}
		}
		if page.Next.Done() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		get.Cursor = page.Next
	}
}

// ByID looks up one entry.
func (l *Log) ByID(ctx context.Context, eid id.ID) (store.Entry, bool, error) {
	return l.store.ByID(ctx, eid)
}

// Remove deletes one entry.
func (l *Log) Remove(ctx context.Context, eid id.ID) (store.Entry, bool, error) {
	return l.store.Remove(ctx, eid)
}

// ChangeMeta patches the metadata of one entry.
func (l *Log) ChangeMeta(ctx context.Context, eid id.ID, patch store.MetaPatch) (bool, error) {
	return l.store.ChangeMeta(ctx, eid, patch)
}

// RemoveReason drops reason from matching entries and deletes the ones left
// without reasons.
func (l *Log) RemoveReason(ctx context.Context, reason string, c store.Criteria, onRemoved store.RemovedFunc) error {
	return l.store.RemoveReason(ctx, reason, c, onRemoved)
}

// LastSynced returns the replication watermarks.
func (l *Log) LastSynced(ctx context.Context) (store.Synced, error) {
	return l.store.GetLastSynced(ctx)
}

// SetLastSynced updates the supplied watermarks.
func (l *Log) SetLastSynced(ctx context.Context, p store.SyncedPatch) error {
	return l.store.SetLastSynced(ctx, p)
}
