// Package runtime opens the configured storage backend and hands out one
// action log per namespace.
//
//	cfg := config.Default()
//	rt, err := runtime.Open(runtime.Options{DataDir: dir, Config: cfg})
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//	l, _ := rt.OpenLog("default")
//	_, _ = l.Add(ctx, store.Action{"type": "ping"}, nil)
package runtime
