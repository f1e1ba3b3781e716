package store

import (
	"github.com/gazay/logux-core/pkg/id"
)

// Action is a caller-defined record. The log only requires a "type" key.
//
// Stores hand values back as they were given, except that backends which
// persist through JSON (diskstore, sqlstore) return every number as a
// json.Number holding its exact decimal text, and nested objects and arrays as
// map[string]any and []any.
type Action map[string]any

// Type returns the action's "type" value and whether it is present and non-nil.
func (a Action) Type() (any, bool) {
	v, ok := a["type"]
	return v, ok && v != nil
}

// Clone deep-copies the action. Nested map[string]any, Action and []any
// values are copied; other values are shared.
func (a Action) Clone() Action {
	if a == nil {
		return nil
	}
	return Action(cloneMap(a))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		if v == nil {
			return v
		}
		return cloneMap(v)
	case Action:
		return v.Clone()
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// Meta is the metadata attached one-to-one to an Action.
type Meta struct {
	ID      id.ID          `json:"id"`
	Time    int64          `json:"time"`
	Added   uint64         `json:"added"`
	Reasons []string       `json:"reasons,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Clone deep-copies reasons and the extension map, nested values included.
func (m Meta) Clone() Meta {
	out := m
	if m.Reasons != nil {
		out.Reasons = append([]string(nil), m.Reasons...)
	}
	if m.Extra != nil {
		out.Extra = cloneMap(m.Extra)
	}
	return out
}

// HasReason reports whether reason is attached.
func (m Meta) HasReason(reason string) bool {
	for _, r := range m.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

// WithoutReason returns reasons minus the first occurrence of reason.
func (m Meta) WithoutReason(reason string) []string {
	out := make([]string, 0, len(m.Reasons))
	dropped := false
	for _, r := range m.Reasons {
		if !dropped && r == reason {
			dropped = true
			continue
		}
		out = append(out, r)
	}
	return out
}

// Entry is an (Action, Meta) pair, unique by Meta.ID.
type Entry struct {
	Action Action `json:"action"`
	Meta   Meta   `json:"meta"`
}

// Clone deep-copies the entry so callers cannot mutate backend state through
// nested maps and slices.
func (e Entry) Clone() Entry {
	return Entry{Action: e.Action.Clone(), Meta: e.Meta.Clone()}
}

// Order selects a view.
type Order int

const (
	// OrderCreated walks the causal view (id order), newest first.
	OrderCreated Order = iota
	// OrderAdded walks the arrival view (Added order), newest first.
	OrderAdded
)

func (o Order) String() string {
	if o == OrderAdded {
		return "added"
	}
	return "created"
}

// ParseOrder accepts "created" (or empty) and "added".
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "", "created":
		return OrderCreated, true
	case "added":
		return OrderAdded, true
	}
	return OrderCreated, false
}

// Cursor is an opaque continuation returned by Get. Empty means exhausted.
type Cursor []byte

// Done reports whether there is nothing left to fetch.
func (c Cursor) Done() bool { return len(c) == 0 }

// GetOptions selects the view, the continuation and a page size hint.
type GetOptions struct {
	Order  Order
	Cursor Cursor
	// Limit is a page size hint; zero lets the backend choose.
	Limit int
}

// Page is one finite slice of a view.
type Page struct {
	Entries []Entry
	Next    Cursor
}

// Criteria bounds a RemoveReason sweep. Nil fields are unbounded.
type Criteria struct {
	// OlderThan matches entries strictly older than this ID.
	OlderThan *id.ID
	// YoungerThan matches entries strictly younger than this ID.
	YoungerThan *id.ID
	// MinAdded and MaxAdded are inclusive bounds on Meta.Added.
	MinAdded *uint64
	MaxAdded *uint64
}

// Match reports whether m falls inside the criteria.
func (c Criteria) Match(m Meta) bool {
	if c.OlderThan != nil && !id.IsFirstOlder(m.ID, *c.OlderThan) {
		return false
	}
	if c.YoungerThan != nil && !id.IsFirstOlder(*c.YoungerThan, m.ID) {
		return false
	}
	if c.MinAdded != nil && m.Added < *c.MinAdded {
		return false
	}
	if c.MaxAdded != nil && m.Added > *c.MaxAdded {
		return false
	}
	return true
}

// MetaPatch is a partial update for ChangeMeta. ID and Added are immutable.
type MetaPatch struct {
	Time *int64
	// Reasons replaces the reason set when non-nil.
	Reasons []string
	// Extra is merged key by key.
	Extra map[string]any
}

// Apply merges the patch into m.
func (p MetaPatch) Apply(m *Meta) {
	if p.Time != nil {
		m.Time = *p.Time
	}
	if p.Reasons != nil {
		m.Reasons = append([]string(nil), p.Reasons...)
	}
	if len(p.Extra) > 0 {
		if m.Extra == nil {
			m.Extra = make(map[string]any, len(p.Extra))
		}
		for k, v := range p.Extra {
			m.Extra[k] = cloneValue(v)
		}
	}
}

// Synced holds the replication watermarks exchanged with a remote peer.
type Synced struct {
	Received uint64 `json:"received"`
	Sent     uint64 `json:"sent"`
}

// SyncedPatch updates only the non-nil watermarks.
type SyncedPatch struct {
	Received *uint64
	Sent     *uint64
}

// Apply merges the patch into s.
func (p SyncedPatch) Apply(s *Synced) {
	if p.Received != nil {
		s.Received = *p.Received
	}
	if p.Sent != nil {
		s.Sent = *p.Sent
	}
}

// Uint64 returns a pointer to v, handy for Criteria and SyncedPatch literals.
func Uint64(v uint64) *uint64 { return &v }

// Int64 returns a pointer to v, handy for MetaPatch literals.
func Int64(v int64) *int64 { return &v }
