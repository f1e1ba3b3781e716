package config

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides DefaultDataDir when set.
const DataDirEnv = "LOGUX_DATA_DIR"

// DefaultDataDir picks the data directory for the host: LOGUX_DATA_DIR, then
// XDG_DATA_HOME, /var/lib, the macOS and Windows application dirs, and
// finally ~/.logux. Without a home directory it returns ./data.
func DefaultDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "logux")
	}
	if isWritableDir("/var/lib") {
		return "/var/lib/logux"
	}
	if isDir(filepath.Join(home, "Library")) {
		return filepath.Join(home, "Library", "Application Support", "Logux")
	}
	if isDir(filepath.Join(home, "AppData")) {
		return filepath.Join(home, "AppData", "Local", "Logux")
	}
	return filepath.Join(home, ".logux")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// isWritableDir reports whether the process may create entries in path.
func isWritableDir(path string) bool {
	if !isDir(path) {
		return false
	}
	f, err := os.CreateTemp(path, ".logux-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
