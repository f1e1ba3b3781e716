package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != BackendPebble || cfg.Namespace != "default" || cfg.PageSize != 256 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.NodeID != "" {
		t.Fatalf("node id should be empty by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "logux.json", `{"nodeId":"10:server","backend":"sqlite","pageSize":32,"log":{"level":"debug"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != "10:server" || cfg.Backend != BackendSQLite || cfg.PageSize != 32 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("log config not merged over defaults: %+v", cfg.Log)
	}
	if cfg.Namespace != "default" {
		t.Fatalf("default namespace lost")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "logux.yaml", "nodeId: client-1\nbackend: memory\nnamespace: chat\nlog:\n  format: json\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != "client-1" || cfg.Backend != BackendMemory || cfg.Namespace != "chat" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "bad.yml", "backend: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
	cfg, err := Load("")
	if err != nil || cfg.Backend != BackendPebble {
		t.Fatalf("empty path should return defaults: %+v %v", cfg, err)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("LOGUX_BACKEND", "sqlite")
	t.Setenv("LOGUX_NAMESPACE", "staging")
	t.Setenv("LOGUX_PAGE_SIZE", "16")
	t.Setenv("LOGUX_LOG_LEVEL", "warn")
	if err := FromEnv(&cfg); err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Backend != BackendSQLite || cfg.Namespace != "staging" || cfg.PageSize != 16 || cfg.Log.Level != "warn" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Fsync != "interval" || cfg.Log.Format != "text" {
		t.Fatalf("unset variables changed fields: %+v", cfg)
	}
}

func TestFromEnvBadValue(t *testing.T) {
	cfg := Default()
	t.Setenv("LOGUX_PAGE_SIZE", "many")
	if err := FromEnv(&cfg); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnsureNodeID(t *testing.T) {
	cfg := Default()
	cfg.EnsureNodeID()
	if len(cfg.NodeID) != 36 {
		t.Fatalf("expected uuid, got %q", cfg.NodeID)
	}
	prev := cfg.NodeID
	cfg.EnsureNodeID()
	if cfg.NodeID != prev {
		t.Fatalf("node id regenerated")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":   func(c *Config) { c.Backend = "redis" },
		"tab":       func(c *Config) { c.NodeID = "a\tb" },
		"page size": func(c *Config) { c.PageSize = -1 },
		"fsync":     func(c *Config) { c.Fsync = "sometimes" },
		"namespace": func(c *Config) { c.Namespace = "a/b" },
		"regex":     func(c *Config) { c.NamespaceNameRegex = "(" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoggerFromConfig(t *testing.T) {
	if _, err := (LogConfig{Level: "loud"}).Logger(); err == nil {
		t.Fatalf("expected level error")
	}
	l, err := (LogConfig{Level: "debug", Format: "json"}).Logger()
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if l == nil {
		t.Fatalf("nil logger")
	}
}

func TestEnvHelp(t *testing.T) {
	if help := EnvHelp(); !strings.Contains(help, "LOGUX_BACKEND") {
		t.Fatalf("help misses variables: %q", help)
	}
}
