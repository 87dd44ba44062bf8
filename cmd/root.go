// Package cmd implements the modelver command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/modelver/internal/config"
	"github.com/zjrosen/modelver/internal/history"
	"github.com/zjrosen/modelver/internal/log"
	"github.com/zjrosen/modelver/internal/manager"
	"github.com/zjrosen/modelver/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "modelver",
	Short:   "Model version registry and migration tooling",
	Long:    `Tracks versions of AI model artifacts: semantic versioning, content hashing for drift detection, compatibility queries, and an audit history of registry mutations.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/modelver/config.yaml)")
	rootCmd.PersistentFlags().String("storage-root", "",
		"directory holding the registry document")

	// Bind flags to viper
	_ = viper.BindPFlag("storage_root", rootCmd.PersistentFlags().Lookup("storage-root"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("storage_root", defaults.StorageRoot)
	viper.SetDefault("registry_filename", defaults.RegistryFilename)
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.ttl_minutes", defaults.Cache.TTLMinutes)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .modelver/config.yaml (current directory)
		// 2. ~/.config/modelver/config.yaml (user config)
		if _, err := os.Stat(".modelver/config.yaml"); err == nil {
			viper.SetConfigFile(".modelver/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "modelver"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine - defaults apply
	_ = viper.ReadInConfig()

	_ = viper.Unmarshal(&cfg)

	if cfg.Logging.Enabled {
		if cleanup, err := log.Init(cfg.LogPath()); err == nil {
			cobra.OnFinalize(cleanup)
			log.SetMinLevel(cfg.LogLevel())
		}
	}
}

// openManager builds a Manager from the active config, wiring in the
// audit recorder when history is enabled. The returned cleanup closes
// the history store.
func openManager(opts ...manager.Option) (*manager.Manager, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}
	opts = append(opts, manager.WithRegistryFilename(cfg.RegistryFilename))

	if cfg.Tracing.Enabled {
		tcfg := cfg.Tracing
		if tcfg.Exporter == "file" && tcfg.FilePath == "" {
			tcfg.FilePath = filepath.Join(cfg.StorageRoot, "traces", "traces.jsonl")
		}
		provider, err := tracing.NewProvider(tcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("start tracing: %w", err)
		}
		opts = append(opts, manager.WithTracer(provider.Tracer()))
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		})
	}
	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.HistoryPath())
		if err != nil {
			// Audit history is best-effort; the registry stays usable
			log.ErrorErr(log.CatHistory, "open history store", err, "path", cfg.HistoryPath())
		} else {
			opts = append(opts, manager.WithRecorder(store))
			closers = append(closers, func() { _ = store.Close() })
		}
	}
	if cfg.Cache.Enabled {
		opts = append(opts, manager.WithHandleCache(time.Duration(cfg.Cache.TTLMinutes)*time.Minute))
	}

	mgr, err := manager.New(cfg.StorageRoot, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return mgr, cleanup, nil
}

// openHistory opens the audit store for read queries.
func openHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled in configuration")
	}
	return history.NewStore(cfg.HistoryPath())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
