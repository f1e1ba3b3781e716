package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/gazay/logux-core/internal/config"
	"github.com/gazay/logux-core/internal/runtime"
	"github.com/gazay/logux-core/pkg/actionlog"
	"github.com/gazay/logux-core/pkg/log"
)

// app carries the state shared by one command invocation.
type app struct {
	logger log.Logger
	rt     *runtime.Runtime
}

// NewRoot constructs the `logux` root command. Subcommands open the
// configured runtime before running and close it afterwards.
func NewRoot(logger log.Logger) *cobra.Command {
	a := &app{logger: logger}
	if a.logger == nil {
		a.logger = log.NewNopLogger()
	}

	root := &cobra.Command{
		Use:           "logux",
		Short:         "Inspect and maintain a local action log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (.json, .yaml or .yml)")
	flags.String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	flags.String("backend", "", "Storage backend: memory|pebble|sqlite")
	flags.StringP("namespace", "n", "", "Log namespace")
	flags.String("node", "", "Node id used for new action ids")
	flags.String("fsync", "", "Pebble fsync mode: always|interval|never")
	flags.String("log-level", "", "Log level: debug|info|warn|error")
	flags.String("log-format", "", "Log format: text|json")

	root.AddCommand(
		a.newAddCommand(),
		a.newListCommand(),
		a.newGetCommand(),
		a.newRemoveCommand(),
		a.newCleanCommand(),
		a.newRemoveReasonCommand(),
		a.newChangeMetaCommand(),
		a.newSyncedCommand(),
		a.newLastAddedCommand(),
		a.newNamespacesCommand(),
		newConfigCommand(),
	)
	return root
}

// loadConfig resolves defaults, file, env and flags, in that order.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, "", err
	}
	if err := cfgpkg.FromEnv(&cfg); err != nil {
		return cfgpkg.Config{}, "", err
	}
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"backend", &cfg.Backend},
		{"namespace", &cfg.Namespace},
		{"node", &cfg.NodeID},
		{"fsync", &cfg.Fsync},
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
	}
	for _, o := range overrides {
		if v, _ := cmd.Flags().GetString(o.flag); v != "" {
			*o.dst = v
		}
	}
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	return cfg, dataDir, nil
}

// open builds the logger and runtime for a subcommand.
func (a *app) open(cmd *cobra.Command) error {
	cfg, dataDir, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Log.Level != "" || cfg.Log.Format != "" || cfg.Log.File != "" {
		logger, err := cfg.Log.Logger()
		if err != nil {
			return err
		}
		a.logger = logger
		log.RedirectStdLog(logger)
	}
	a.rt, err = runtime.Open(runtime.Options{
		DataDir: dataDir,
		Config:  cfg,
		Logger:  a.logger,
	})
	return err
}

func (a *app) close() error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

// withRuntime opens the runtime around fn and closes it afterwards.
func (a *app) withRuntime(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd); err != nil {
			return err
		}
		defer func() { err = errors.Join(err, a.close()) }()
		return fn(cmd, args)
	}
}

// withLog runs fn against the namespace selected by flags and config.
func (a *app) withLog(fn func(cmd *cobra.Command, args []string, l *actionlog.Log) error) func(*cobra.Command, []string) error {
	return a.withRuntime(func(cmd *cobra.Command, args []string) error {
		l, err := a.rt.OpenLog("")
		if err != nil {
			return err
		}
		return fn(cmd, args, l)
	})
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and supported environment variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, dataDir, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, map[string]any{"config": cfg, "dataDir": dataDir}); err != nil {
				return err
			}
			if env, _ := cmd.Flags().GetBool("env"); env {
				fmt.Fprintln(cmd.OutOrStdout(), cfgpkg.EnvHelp())
			}
			return nil
		},
	}
	cmd.Flags().Bool("env", false, "Also list supported environment variables")
	return cmd
}
