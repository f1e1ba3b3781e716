// Package pebblestore is the Pebble handle shared by the persistent log
// stores. It applies one fsync policy to every commit and reports
// latencies through a MetricsHook, which PromMetrics backs with Prometheus.
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	it, _ := db.NewIter(pebblestore.PrefixIterOptions([]byte("ns/main/c/")))
package pebblestore
