package id

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrTabInNodeID is returned by NewTimer when the node name holds a tab,
// which is reserved by the wire serialization of identifiers.
var ErrTabInNodeID = errors.New("id: tab symbol is prohibited in node id")

// Clock returns the current time in milliseconds since Unix epoch.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 { return time.Now().UnixMilli() }

// TimerOption configures a Timer.
type TimerOption func(*Timer)

// WithClock replaces the Timer's wall clock.
func WithClock(c Clock) TimerOption {
	return func(t *Timer) {
		if c != nil {
			t.now = c
		}
	}
}

// Timer produces locally unique, locally ordered IDs for one node.
type Timer struct {
	node string
	now  Clock

	mu       sync.Mutex
	lastMs   int64
	sequence uint64
}

// NewTimer creates a Timer for node.
func NewTimer(node string, opts ...TimerOption) (*Timer, error) {
	if strings.IndexByte(node, '\t') >= 0 {
		return nil, ErrTabInNodeID
	}
	t := &Timer{node: node, now: SystemClock}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// NodeFromInt formats a numeric node identifier.
func NodeFromInt(n int64) string { return strconv.FormatInt(n, 10) }

// Node returns the node name stamped into every ID.
func (t *Timer) Node() string { return t.node }

// Next returns a new ID. If clock goes backwards, it uses lastMs and increments sequence.
// If sequence overflows within the same millisecond, it waits for the next ms.
func (t *Timer) Next() ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	ms := t.now()
	if ms < t.lastMs {
		ms = t.lastMs
	}

	if ms == t.lastMs {
		if t.sequence == math.MaxUint64 {
			for {
				ms = t.now()
				if ms > t.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			t.sequence = 0
		} else {
			t.sequence++
		}
	} else {
		t.sequence = 0
	}

	t.lastMs = ms
	return ID{Ms: ms, Node: t.node, Seq: t.sequence}
}

// NewTestTimer returns a Timer whose clock advances by one millisecond on every
// call, starting at 1. IDs are deterministic which suits tests. It panics
// when node holds a tab.
func NewTestTimer(node string) *Timer {
	var ms int64
	t, err := NewTimer(node, WithClock(func() int64 { ms++; return ms }))
	if err != nil {
		panic(err)
	}
	return t
}

// TimerFunc adapts a plain function to the Next method set.
type TimerFunc func() ID

// Next calls f.
func (f TimerFunc) Next() ID { return f() }
