// Package log is the structured logger shared by the action log, the storage
// backends and the CLI.
//
// Records go through a log/slog handler that renders them with a Formatter
// (text or JSON) and writes them to one or more Outputs.
//
//	l := log.NewLogger(
//		log.WithLevel(log.DebugLevel),
//		log.WithFormatter(&log.TextFormatter{}),
//		log.WithOutput(log.NewConsoleOutput()),
//	)
//	l.WithComponent("diskstore").Debug("batch committed", log.Int("ops", 3))
//
// ApplyConfig builds the same thing from a Config, with optional key
// redaction and per-message sampling. ContextWith stores fields on a context
// for WithContext. RedirectStdLog routes the standard library logger, which
// Pebble writes to, through a Logger.
package log
