package log

import (
	"fmt"
	"strings"
)

// OutputConfig selects one output sink.
type OutputConfig struct {
	Type string `json:"type" yaml:"type"` // console|file|null
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config declares a logger.
type Config struct {
	Level            string         `json:"level" yaml:"level"`
	Format           string         `json:"format" yaml:"format"` // text|json
	Outputs          []OutputConfig `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	ShowCaller       bool           `json:"showCaller,omitempty" yaml:"showCaller,omitempty"`
	RedactKeys       []string       `json:"redactKeys,omitempty" yaml:"redactKeys,omitempty"`
	SampleInitial    int            `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty"`
	SampleThereafter int            `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty"`
}

// ParseLevel maps debug|info|warn|error|fatal (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("log: unknown level %q", s)
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{ShowCaller: cfg.ShowCaller}
	case "json":
		formatter = &JSONFormatter{ShowCaller: cfg.ShowCaller}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	for _, oc := range cfg.Outputs {
		switch strings.ToLower(oc.Type) {
		case "", "console":
			opts = append(opts, WithOutput(NewConsoleOutput()))
		case "file":
			fo, err := NewFileOutput(oc.Path)
			if err != nil {
				return nil, fmt.Errorf("log: file output: %w", err)
			}
			opts = append(opts, WithOutput(fo))
		case "null":
			opts = append(opts, WithOutput(NullOutput{}))
		default:
			return nil, fmt.Errorf("log: unknown output %q", oc.Type)
		}
	}

	l := NewLogger(opts...).(*BaseLogger)
	if len(cfg.RedactKeys) > 0 {
		l.h.redact = make(map[string]bool, len(cfg.RedactKeys))
		for _, k := range cfg.RedactKeys {
			l.h.redact[k] = true
		}
	}
	if cfg.SampleThereafter > 0 {
		l.h.sampler = newSampler(cfg.SampleInitial, cfg.SampleThereafter)
	}
	return l, nil
}
