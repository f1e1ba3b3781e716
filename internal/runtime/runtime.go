package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	cfgpkg "github.com/gazay/logux-core/internal/config"
	"github.com/gazay/logux-core/internal/namespace"
	pebblestore "github.com/gazay/logux-core/internal/storage/pebble"
	"github.com/gazay/logux-core/pkg/actionlog"
	"github.com/gazay/logux-core/pkg/id"
	"github.com/gazay/logux-core/pkg/log"
	"github.com/gazay/logux-core/pkg/store"
	"github.com/gazay/logux-core/pkg/store/diskstore"
	"github.com/gazay/logux-core/pkg/store/memstore"
	"github.com/gazay/logux-core/pkg/store/sqlstore"
)

// ErrClosed is returned by OpenLog after Close.
var ErrClosed = errors.New("runtime: closed")

const (
	metricsNamespace = "logux"
	sqliteFile       = "logux.db"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	// Fsync overrides Config.Fsync when set.
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        log.Logger
	// Registerer receives storage and log metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Runtime owns the configured backend and one Log per namespace.
type Runtime struct {
	config    cfgpkg.Config
	logger    log.Logger
	timer     *id.Timer
	validator *namespace.Validator
	metrics   *actionlog.Metrics

	pebble *pebblestore.DB
	sqlite *sqlstore.DB

	logs   *xsync.MapOf[string, *actionlog.Log]
	closed atomic.Bool
}

// Open validates the configuration, opens the backend and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	cfg.EnsureNodeID()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	timer, err := id.NewTimer(cfg.NodeID)
	if err != nil {
		return nil, err
	}
	validator, err := namespace.NewValidator(cfg.NamespaceNameRegex)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		config:    cfg,
		logger:    logger.WithComponent("runtime"),
		timer:     timer,
		validator: validator,
		logs:      xsync.NewMapOf[string, *actionlog.Log](),
	}

	var storageMetrics pebblestore.MetricsHook
	if opts.Registerer != nil {
		rt.metrics = actionlog.NewMetrics(metricsNamespace)
		for _, c := range rt.metrics.Collectors() {
			if err := opts.Registerer.Register(c); err != nil {
				return nil, fmt.Errorf("runtime: register metrics: %w", err)
			}
		}
		if cfg.Backend == cfgpkg.BackendPebble {
			pm, err := pebblestore.NewPromMetrics(opts.Registerer, metricsNamespace)
			if err != nil {
				return nil, fmt.Errorf("runtime: register storage metrics: %w", err)
			}
			storageMetrics = pm
		}
	}

	switch cfg.Backend {
	case cfgpkg.BackendPebble:
		if opts.DataDir == "" {
			return nil, errors.New("runtime: data dir is required for the pebble backend")
		}
		fsync := opts.Fsync
		if fsync == pebblestore.FsyncModeUnspecified {
			fsync = pebblestore.ParseFsyncMode(cfg.Fsync)
		}
		rt.pebble, err = pebblestore.Open(pebblestore.Options{
			DataDir:       opts.DataDir,
			Fsync:         fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       storageMetrics,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
	case cfgpkg.BackendSQLite:
		if opts.DataDir == "" {
			return nil, errors.New("runtime: data dir is required for the sqlite backend")
		}
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, err
		}
		rt.sqlite, err = sqlstore.Open(filepath.Join(opts.DataDir, sqliteFile))
		if err != nil {
			return nil, err
		}
	}
	rt.logger.Debug("runtime opened",
		log.Str("backend", cfg.Backend), log.Str("node", cfg.NodeID), log.Str("dir", opts.DataDir))
	return rt, nil
}

// Close closes the backend. Logs obtained earlier must not be used afterwards.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.logs.Clear()
	var err error
	if r.pebble != nil {
		err = errors.Join(err, r.pebble.Close())
	}
	if r.sqlite != nil {
		err = errors.Join(err, r.sqlite.Close())
	}
	return err
}

// CheckHealth verifies the backend answers.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	switch {
	case r.pebble != nil:
		it, err := r.pebble.NewIter(nil)
		if err != nil {
			return err
		}
		return it.Close()
	case r.sqlite != nil:
		return r.sqlite.Ping(ctx)
	}
	return nil
}

// OpenLog returns the Log for ns, creating it on first use. An empty ns means
// the configured default namespace.
func (r *Runtime) OpenLog(ns string) (*actionlog.Log, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if ns == "" {
		ns = r.config.Namespace
	}
	if l, ok := r.logs.Load(ns); ok {
		return l, nil
	}
	if err := r.validator.Validate(ns); err != nil {
		return nil, err
	}
	s, err := r.openStore(ns)
	if err != nil {
		return nil, fmt.Errorf("runtime: open %s: %w", ns, err)
	}
	l, err := actionlog.New(actionlog.Options{
		Store:   s,
		Timer:   r.timer,
		Logger:  r.logger.With(log.Str("namespace", ns)),
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, err
	}
	actual, _ := r.logs.LoadOrStore(ns, l)
	return actual, nil
}

func (r *Runtime) openStore(ns string) (store.Store, error) {
	switch {
	case r.pebble != nil:
		if _, err := namespace.EnsureNamespace(r.pebble, ns, r.config.NodeID); err != nil {
			return nil, err
		}
		return diskstore.New(r.pebble, diskstore.Options{Namespace: ns, PageSize: r.config.PageSize, Logger: r.logger})
	case r.sqlite != nil:
		return sqlstore.New(r.sqlite, sqlstore.Options{Namespace: ns, PageSize: r.config.PageSize, Logger: r.logger})
	}
	return memstore.New(), nil
}

// Namespaces lists known namespaces: every recorded one for the pebble
// backend, the opened ones otherwise.
func (r *Runtime) Namespaces() ([]string, error) {
	if r.pebble != nil {
		metas, err := namespace.List(r.pebble)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(metas))
		for i, m := range metas {
			out[i] = m.Name
		}
		return out, nil
	}
	var out []string
	r.logs.Range(func(ns string, _ *actionlog.Log) bool {
		out = append(out, ns)
		return true
	})
	sort.Strings(out)
	return out, nil
}

// Timer returns the id source shared by all logs.
func (r *Runtime) Timer() *id.Timer { return r.timer }

// Config returns the effective configuration, including the resolved node id.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
