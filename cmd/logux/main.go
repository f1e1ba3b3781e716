package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/gazay/logux-core/internal/cmd/client"
	logpkg "github.com/gazay/logux-core/pkg/log"
)

func main() {
	// Respect LOGUX_LOG_LEVEL before the config is loaded
	level := os.Getenv("LOGUX_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Pebble logs through the standard library logger
	logpkg.RedirectStdLog(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := clientcmd.NewRoot(logger).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "logux:", err)
		stop()
		os.Exit(1)
	}
}
