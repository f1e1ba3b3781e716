package namespace

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	pebblestore "github.com/gazay/logux-core/internal/storage/pebble"
)

// DefaultNameRegex accepts names usable as a storage key segment.
const DefaultNameRegex = "[a-z0-9][a-z0-9._:-]{0,63}"

// ErrInvalidName is returned for names rejected by a Validator.
var ErrInvalidName = errors.New("namespace: invalid name")

// Meta describes one named log.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
	NodeID      string `json:"nodeId"`
}

// Validator checks namespace names against an anchored pattern.
type Validator struct {
	re *regexp.Regexp
}

// NewValidator compiles pattern, anchored at both ends. An empty pattern
// means DefaultNameRegex.
func NewValidator(pattern string) (*Validator, error) {
	if pattern == "" {
		pattern = DefaultNameRegex
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("namespace: name regex: %w", err)
	}
	return &Validator{re: re}, nil
}

// Validate rejects names that do not match or that contain '/'.
func (v *Validator) Validate(name string) error {
	if !v.re.MatchString(name) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

var nsMetaPrefix = []byte("nsmeta/")

func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	return append(k, ns...)
}

// EnsureNamespace returns the stored meta for name, creating it when absent.
// A record that fails to decode is rewritten.
func EnsureNamespace(db *pebblestore.DB, name, nodeID string) (Meta, error) {
	key := nsMetaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
	} else if err != nil && !errors.Is(err, pebblestore.ErrNotFound) {
		return Meta{}, err
	}
	m := Meta{Name: name, CreatedAtMs: time.Now().UnixMilli(), NodeID: nodeID}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, b); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// List returns every namespace recorded in db in name order.
func List(db *pebblestore.DB) ([]Meta, error) {
	it, err := db.NewIter(pebblestore.PrefixIterOptions(nsMetaPrefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Meta
	for ok := it.First(); ok; ok = it.Next() {
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, fmt.Errorf("namespace: decode %q: %w", it.Key(), err)
		}
		out = append(out, m)
	}
	return out, it.Error()
}
