package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// FromEnv overlays the LOGUX_* variables named in the env tags onto cfg.
// Unset variables leave fields untouched.
func FromEnv(cfg *Config) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}
	return nil
}

// EnvHelp describes every supported variable, for CLI help output.
func EnvHelp() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
