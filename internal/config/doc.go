// Package config loads logux configuration: built-in defaults, an optional
// JSON or YAML file, then LOGUX_* environment variables.
//
//	cfg, err := config.Load(path)
//	if err != nil {
//		return err
//	}
//	if err := config.FromEnv(&cfg); err != nil {
//		return err
//	}
//	cfg.EnsureNodeID()
package config
