// Package actionlog is the action log: it assigns identifiers to actions,
// hands them to a store.Store, notifies listeners about additions and sweeps,
// and removes entries that no keeper retains.
//
//	l, err := actionlog.New(actionlog.Options{Store: memstore.New(), Timer: timer})
//	if err != nil {
//		return err
//	}
//	unkeep := l.Keep(func(a store.Action, m store.Meta) bool { return a["type"] == "user/rename" })
//	defer unkeep()
//
//	_, err = l.Add(ctx, store.Action{"type": "user/rename", "name": "Ann"}, nil)
//	err = l.Clean(ctx)
//
// A Log does no background work. Each fetches pages one at a time and Clean
// evaluates one entry at a time.
package actionlog
