package store

import (
	"context"
	"errors"

	"github.com/gazay/logux-core/pkg/id"
)

// ErrMissingID is returned by Add when Meta.ID is zero.
var ErrMissingID = errors.New("store: meta id is required")

// RemovedFunc is invoked once per entry deleted by RemoveReason.
type RemovedFunc func(action Action, meta Meta)

// Store is the persistence contract of the action log. Every method may block
// on I/O and honours ctx where the backend can.
type Store interface {
	// Add inserts the entry keyed by meta.ID. It returns false without error
	// when the ID already exists. On insert it assigns meta.Added from the
	// store's arrival counter.
	Add(ctx context.Context, action Action, meta *Meta) (bool, error)

	// ByID looks up one entry.
	ByID(ctx context.Context, id id.ID) (Entry, bool, error)

	// Remove deletes one entry from both views and returns it.
	Remove(ctx context.Context, id id.ID) (Entry, bool, error)

	// Get returns one page of the requested view, newest first.
	Get(ctx context.Context, opts GetOptions) (Page, error)

	// ChangeMeta merges patch into an existing entry's metadata.
	ChangeMeta(ctx context.Context, id id.ID, patch MetaPatch) (bool, error)

	// RemoveReason drops reason from every entry matching criteria and
	// deletes entries left without reasons, calling onRemoved for each.
	RemoveReason(ctx context.Context, reason string, criteria Criteria, onRemoved RemovedFunc) error

	// GetLastAdded returns the highest arrival counter assigned so far.
	GetLastAdded(ctx context.Context) (uint64, error)

	// GetLastSynced returns the replication watermarks.
	GetLastSynced(ctx context.Context) (Synced, error)

	// SetLastSynced updates only the watermarks present in patch.
	SetLastSynced(ctx context.Context, patch SyncedPatch) error
}

// Closer is implemented by backends holding external resources.
type Closer interface {
	Close() error
}
