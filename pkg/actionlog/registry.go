package actionlog

import (
	"sync"
	"sync/atomic"
)

type listener[F any] struct {
	fn    F
	once  bool
	fired atomic.Bool
}

// registry is a listener list for one notification class. Emitters iterate a
// snapshot, so listeners may register or unregister while being called.
type registry[F any] struct {
	mu    sync.Mutex
	items []*listener[F]
}

func (r *registry[F]) add(fn F, once bool) func() {
	l := &listener[F]{fn: fn, once: once}
	r.mu.Lock()
	r.items = append(r.items, l)
	r.mu.Unlock()

	var unregister sync.Once
	return func() { unregister.Do(func() { r.remove(l) }) }
}

func (r *registry[F]) remove(l *listener[F]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.items {
		if it == l {
			r.items = append(r.items[:i:i], r.items[i+1:]...)
			return
		}
	}
}

// claim returns the listeners to call for one emission. One-shot listeners
// are handed out at most once and dropped from the list.
func (r *registry[F]) claim() []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return nil
	}
	out := make([]F, 0, len(r.items))
	kept := r.items[:0:0]
	for _, l := range r.items {
		if l.once {
			if !l.fired.CompareAndSwap(false, true) {
				continue
			}
			out = append(out, l.fn)
			continue
		}
		out = append(out, l.fn)
		kept = append(kept, l)
	}
	r.items = kept
	return out
}

func (r *registry[F]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
