package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gazay/logux-core/internal/namespace"
	"github.com/gazay/logux-core/pkg/log"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration loaded from file and env.
type Config struct {
	// NodeID is the node part of every generated action id.
	NodeID             string    `json:"nodeId" yaml:"nodeId" env:"LOGUX_NODE_ID"`
	Backend            string    `json:"backend" yaml:"backend" env:"LOGUX_BACKEND"`
	Namespace          string    `json:"namespace" yaml:"namespace" env:"LOGUX_NAMESPACE"`
	NamespaceNameRegex string    `json:"namespaceNameRegex" yaml:"namespaceNameRegex" env:"LOGUX_NAMESPACE_NAME_REGEX"`
	PageSize           int       `json:"pageSize" yaml:"pageSize" env:"LOGUX_PAGE_SIZE"`
	Fsync              string    `json:"fsync" yaml:"fsync" env:"LOGUX_FSYNC"`
	Log                LogConfig `json:"log" yaml:"log"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOGUX_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOGUX_LOG_FORMAT"`
	// File, when set, sends logs to this path instead of stderr.
	File string `json:"file" yaml:"file" env:"LOGUX_LOG_FILE"`
}

// Default returns built-in defaults. NodeID is left empty; see EnsureNodeID.
func Default() Config {
	return Config{
		Backend:            BackendPebble,
		Namespace:          "default",
		NamespaceNameRegex: namespace.DefaultNameRegex,
		PageSize:           256,
		Fsync:              "interval",
		Log:                LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) over the
// defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return cfg, nil
}

// EnsureNodeID fills an empty NodeID with a random UUID.
func (c *Config) EnsureNodeID() {
	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
	}
}

// Validate checks field values that would otherwise fail deep in the runtime.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPebble, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if strings.ContainsRune(c.NodeID, '\t') {
		return fmt.Errorf("config: node id must not contain tabs")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("config: negative page size %d", c.PageSize)
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("config: unknown fsync mode %q", c.Fsync)
	}
	v, err := namespace.NewValidator(c.NamespaceNameRegex)
	if err != nil {
		return err
	}
	return v.Validate(c.Namespace)
}

// Logger builds the process logger.
func (c LogConfig) Logger() (log.Logger, error) {
	lc := &log.Config{Level: c.Level, Format: c.Format}
	if c.File != "" {
		lc.Outputs = []log.OutputConfig{{Type: "file", Path: c.File}}
	}
	return log.ApplyConfig(lc)
}
