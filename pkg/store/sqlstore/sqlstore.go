// Package sqlstore is a Store on SQLite.
//
// All namespaces share the entries and counters tables. Views are keyset
// paginated over the primary key and the (ns, added) index.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/log"
	"github.com/gazay/logux-core/pkg/store"
)

// DefaultPageSize is the Get page size when GetOptions.Limit is zero.
const DefaultPageSize = 256

var (
	// ErrInvalidNamespace is returned by New for an empty namespace.
	ErrInvalidNamespace = errors.New("sqlstore: invalid namespace")
	// ErrInvalidCursor is returned by Get for malformed or foreign cursors.
	ErrInvalidCursor = errors.New("sqlstore: invalid cursor")
)

const (
	counterAdded    = "added"
	counterReceived = "received"
	counterSent     = "sent"
)

// Options configures New.
type Options struct {
	Namespace string
	PageSize  int
	Logger    log.Logger
}

// Store is one namespace inside a DB.
type Store struct {
	db       *sql.DB
	ns       string
	pageSize int
	logger   log.Logger
}

var _ store.Store = (*Store)(nil)

// New binds a Store to opts.Namespace.
func New(db *DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	if opts.Namespace == "" {
		return nil, ErrInvalidNamespace
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	return &Store{
		db:       db.db,
		ns:       opts.Namespace,
		pageSize: opts.PageSize,
		logger:   opts.Logger.With(log.Component("sqlstore"), log.Str("namespace", opts.Namespace)),
	}, nil
}

// seqCol maps a sequence onto a signed column without changing its order.
func seqCol(seq uint64) int64 { return int64(seq ^ (1 << 63)) }

// Add inserts the row and bumps the arrival counter in one transaction.
func (s *Store) Add(ctx context.Context, action store.Action, meta *store.Meta) (bool, error) {
	if meta == nil || meta.ID.IsZero() {
		return false, store.ErrMissingID
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlstore: add: %w", err)
	}
	defer tx.Rollback()

	last, err := readCounter(ctx, tx, s.ns, counterAdded)
	if err != nil {
		return false, err
	}
	m := meta.Clone()
	m.Added = last + 1
	actionJSON, metaJSON, err := marshalEntry(action, m)
	if err != nil {
		return false, fmt.Errorf("sqlstore: add: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (ns, id_ms, id_node, id_seq, added, time, action, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		s.ns, m.ID.Ms, m.ID.Node, seqCol(m.ID.Seq), int64(m.Added), m.Time, actionJSON, metaJSON)
	if err != nil {
		return false, fmt.Errorf("sqlstore: add: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}
	if err := writeCounter(ctx, tx, s.ns, counterAdded, m.Added); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlstore: add: %w", err)
	}
	meta.Added = m.Added
	s.logger.Debug("entry stored", log.Str("id", meta.ID.String()), log.Uint64("added", meta.Added))
	return true, nil
}

// ByID reads one row.
func (s *Store) ByID(ctx context.Context, eid id.ID) (store.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT action, meta FROM entries
		WHERE ns = ? AND id_ms = ? AND id_node = ? AND id_seq = ?`,
		s.ns, eid.Ms, eid.Node, seqCol(eid.Seq))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, err
	}
	return e, true, nil
}

// Remove deletes one row and returns it.
func (s *Store) Remove(ctx context.Context, eid id.ID) (store.Entry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Entry{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		DELETE FROM entries
		WHERE ns = ? AND id_ms = ? AND id_node = ? AND id_seq = ?
		RETURNING action, meta`,
		s.ns, eid.Ms, eid.Node, seqCol(eid.Seq))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("sqlstore: remove: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return store.Entry{}, false, fmt.Errorf("sqlstore: remove: %w", err)
	}
	return e, true, nil
}

// Get returns one page of a view using keyset pagination.
func (s *Store) Get(ctx context.Context, opts store.GetOptions) (store.Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.pageSize
	}

	var (
		query strings.Builder
		args  = []any{s.ns}
	)
	query.WriteString("SELECT action, meta FROM entries WHERE ns = ?")
	if !opts.Cursor.Done() {
		cond, cargs, err := cursorCondition(opts.Order, opts.Cursor)
		if err != nil {
			return store.Page{}, err
		}
		query.WriteString(" AND " + cond)
		args = append(args, cargs...)
	}
	if opts.Order == store.OrderAdded {
		query.WriteString(" ORDER BY added DESC")
	} else {
		query.WriteString(" ORDER BY id_ms DESC, id_node DESC, id_seq DESC")
	}
	query.WriteString(" LIMIT ?")
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return store.Page{}, fmt.Errorf("sqlstore: get: %w", err)
	}
	defer rows.Close()

	page := store.Page{Entries: make([]store.Entry, 0, min(limit, 64))}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return store.Page{}, err
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, err
	}
	if len(page.Entries) > limit {
		page.Entries = page.Entries[:limit]
		page.Next = encodeCursor(opts.Order, page.Entries[limit-1].Meta)
	}
	return page, nil
}

// ChangeMeta rewrites the meta column with patch applied.
func (s *Store) ChangeMeta(ctx context.Context, eid id.ID, patch store.MetaPatch) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT action, meta FROM entries
		WHERE ns = ? AND id_ms = ? AND id_node = ? AND id_seq = ?`,
		s.ns, eid.Ms, eid.Node, seqCol(eid.Seq))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	patch.Apply(&e.Meta)
	if err := s.updateMeta(ctx, tx, e.Meta); err != nil {
		return false, fmt.Errorf("sqlstore: change meta: %w", err)
	}
	return true, tx.Commit()
}

func (s *Store) updateMeta(ctx context.Context, tx *sql.Tx, m store.Meta) error {
	metaJSON, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE entries SET meta = ?, time = ?
		WHERE ns = ? AND id_ms = ? AND id_node = ? AND id_seq = ?`,
		string(metaJSON), m.Time, s.ns, m.ID.Ms, m.ID.Node, seqCol(m.ID.Seq))
	return err
}

// RemoveReason runs the whole sweep in one transaction. onRemoved runs after
// the commit.
func (s *Store) RemoveReason(ctx context.Context, reason string, c store.Criteria, onRemoved store.RemovedFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	where, args := criteriaCondition(s.ns, c)
	rows, err := tx.QueryContext(ctx, "SELECT action, meta FROM entries WHERE "+where+" ORDER BY id_ms, id_node, id_seq", args...)
	if err != nil {
		return fmt.Errorf("sqlstore: remove reason: %w", err)
	}
	var matched []store.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return err
		}
		if e.Meta.HasReason(reason) && c.Match(e.Meta) {
			matched = append(matched, e)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	var removed []store.Entry
	for _, e := range matched {
		e.Meta.Reasons = e.Meta.WithoutReason(reason)
		if len(e.Meta.Reasons) > 0 {
			if err := s.updateMeta(ctx, tx, e.Meta); err != nil {
				return fmt.Errorf("sqlstore: remove reason: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM entries WHERE ns = ? AND id_ms = ? AND id_node = ? AND id_seq = ?`,
			s.ns, e.Meta.ID.Ms, e.Meta.ID.Node, seqCol(e.Meta.ID.Seq)); err != nil {
			return fmt.Errorf("sqlstore: remove reason: %w", err)
		}
		removed = append(removed, e)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: remove reason: %w", err)
	}
	if len(matched) > 0 {
		s.logger.Debug("reason removed", log.Str("reason", reason), log.Int("removed", len(removed)), log.Int("updated", len(matched)-len(removed)))
	}
	if onRemoved != nil {
		for _, e := range removed {
			onRemoved(e.Action, e.Meta)
		}
	}
	return nil
}

func (s *Store) GetLastAdded(ctx context.Context) (uint64, error) {
	return readCounter(ctx, s.db, s.ns, counterAdded)
}

func (s *Store) GetLastSynced(ctx context.Context) (store.Synced, error) {
	received, err := readCounter(ctx, s.db, s.ns, counterReceived)
	if err != nil {
		return store.Synced{}, err
	}
	sent, err := readCounter(ctx, s.db, s.ns, counterSent)
	if err != nil {
		return store.Synced{}, err
	}
	return store.Synced{Received: received, Sent: sent}, nil
}

func (s *Store) SetLastSynced(ctx context.Context, p store.SyncedPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if p.Received != nil {
		if err := writeCounter(ctx, tx, s.ns, counterReceived, *p.Received); err != nil {
			return err
		}
	}
	if p.Sent != nil {
		if err := writeCounter(ctx, tx, s.ns, counterSent, *p.Sent); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readCounter(ctx context.Context, q queryer, ns, name string) (uint64, error) {
	var v int64
	err := q.QueryRowContext(ctx, "SELECT value FROM counters WHERE ns = ? AND name = ?", ns, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlstore: read counter %s: %w", name, err)
	}
	return uint64(v), nil
}

func writeCounter(ctx context.Context, tx *sql.Tx, ns, name string, v uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO counters (ns, name, value) VALUES (?, ?, ?)
		ON CONFLICT (ns, name) DO UPDATE SET value = excluded.value`,
		ns, name, int64(v))
	if err != nil {
		return fmt.Errorf("sqlstore: write counter %s: %w", name, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (store.Entry, error) {
	var actionJSON, metaJSON string
	if err := row.Scan(&actionJSON, &metaJSON); err != nil {
		return store.Entry{}, err
	}
	var e store.Entry
	if err := store.DecodeJSON([]byte(actionJSON), &e.Action); err != nil {
		return store.Entry{}, fmt.Errorf("sqlstore: decode action: %w", err)
	}
	if err := store.DecodeJSON([]byte(metaJSON), &e.Meta); err != nil {
		return store.Entry{}, fmt.Errorf("sqlstore: decode meta: %w", err)
	}
	return e, nil
}

func marshalEntry(action store.Action, m store.Meta) (string, string, error) {
	a, err := json.Marshal(action)
	if err != nil {
		return "", "", err
	}
	mm, err := json.Marshal(m)
	if err != nil {
		return "", "", err
	}
	return string(a), string(mm), nil
}

// Cursor layout:
//   created: 'c' | BE8 ms | BE8 seq | node
//   added:   'a' | BE8 added

func encodeCursor(order store.Order, m store.Meta) store.Cursor {
	if order == store.OrderAdded {
		return binary.BigEndian.AppendUint64([]byte{'a'}, m.Added)
	}
	out := make([]byte, 0, 17+len(m.ID.Node))
	out = append(out, 'c')
	out = binary.BigEndian.AppendUint64(out, uint64(m.ID.Ms))
	out = binary.BigEndian.AppendUint64(out, m.ID.Seq)
	return append(out, m.ID.Node...)
}

func cursorCondition(order store.Order, c store.Cursor) (string, []any, error) {
	if order == store.OrderAdded {
		if len(c) != 9 || c[0] != 'a' {
			return "", nil, ErrInvalidCursor
		}
		return "added < ?", []any{int64(binary.BigEndian.Uint64(c[1:]))}, nil
	}
	if len(c) < 17 || c[0] != 'c' {
		return "", nil, ErrInvalidCursor
	}
	ms := int64(binary.BigEndian.Uint64(c[1:9]))
	seq := binary.BigEndian.Uint64(c[9:17])
	node := string(c[17:])
	return "(id_ms, id_node, id_seq) < (?, ?, ?)", []any{ms, node, seqCol(seq)}, nil
}

func criteriaCondition(ns string, c store.Criteria) (string, []any) {
	conds := []string{"ns = ?"}
	args := []any{ns}
	if c.OlderThan != nil {
		conds = append(conds, "(id_ms, id_node, id_seq) < (?, ?, ?)")
		args = append(args, c.OlderThan.Ms, c.OlderThan.Node, seqCol(c.OlderThan.Seq))
	}
	if c.YoungerThan != nil {
		conds = append(conds, "(id_ms, id_node, id_seq) > (?, ?, ?)")
		args = append(args, c.YoungerThan.Ms, c.YoungerThan.Node, seqCol(c.YoungerThan.Seq))
	}
	if c.MinAdded != nil {
		conds = append(conds, "added >= ?")
		args = append(args, int64(*c.MinAdded))
	}
	if c.MaxAdded != nil {
		conds = append(conds, "added <= ?")
		args = append(args, int64(*c.MaxAdded))
	}
	return strings.Join(conds, " AND "), args
}
