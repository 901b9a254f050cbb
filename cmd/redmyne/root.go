package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vrognas/redmyne/internal/adapters/remote/redmine"
	diskvstore "github.com/vrognas/redmyne/internal/adapters/storage/diskv"
	"github.com/vrognas/redmyne/internal/adapters/storage/sqlite"
	"github.com/vrognas/redmyne/internal/app"
	"github.com/vrognas/redmyne/internal/config"
	"github.com/vrognas/redmyne/internal/platform"
)

// appName is the prefix for runtime logs and config/data path resolution.
const appName = "redmyne"

// cliSource and serveSource tag queue mutations with the surface that made
// them, so change subscribers can tell their own edits from everyone else's.
const (
	cliSource   = "cli"
	serveSource = "serve"
)

// App carries the persistent flag values shared by every subcommand.
type App struct {
	ConfigPath string
	DBPath     string
	DevMode    bool
}

// NewRootCmd builds the redmyne command tree.
func NewRootCmd() *cobra.Command {
	a := &App{}

	cmd := &cobra.Command{
		Use:          "redmyne",
		Short:        "Offline weekly timesheet editor for Redmine-compatible servers",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Print this week's grid
  redmyne week

  # Inspect queued edits, then apply them in one pass
  redmyne pending
  redmyne commit

  # Serve the local bridge and MCP endpoints
  redmyne serve
`),
	}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("REDMYNE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}

	cmd.PersistentFlags().StringVar(&a.ConfigPath, "config", "", "path to config TOML")
	cmd.PersistentFlags().StringVar(&a.DBPath, "db", "", "path to the local store (sqlite file or diskv directory)")
	cmd.PersistentFlags().BoolVar(&a.DevMode, "dev", defaultDevMode, "use dev mode paths (redmyne-dev)")

	cmd.AddCommand(newWeekCmd(a))
	cmd.AddCommand(newPendingCmd(a))
	cmd.AddCommand(newCommitCmd(a))
	cmd.AddCommand(newDiscardCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newPathsCmd(a))

	return cmd
}

// runtime bundles the resolved state a command body works with.
type runtime struct {
	cfg        config.Config
	logger     *charmLog.Logger
	queue      *app.DraftQueue
	service    *app.Service
	remoteErr  error
	closeStore func() error
}

// bootstrap resolves paths and configuration, opens the local store, and
// wires the application service. Queued operations persisted by earlier runs
// are restored before the command body sees the service, so a failed restore
// aborts the command instead of silently overwriting drafts later.
//
// Resolution order for config and store paths is flag, then environment
// (REDMYNE_CONFIG, REDMYNE_DB_PATH), then platform defaults. REDMYNE_API_KEY
// overrides the configured remote key.
func (a *App) bootstrap(ctx context.Context, source string) (*runtime, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: a.DevMode,
	})
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(a.ConfigPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("REDMYNE_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	if configPath == paths.ConfigPath {
		// First run on a fresh machine: make sure the managed config location
		// exists so users have somewhere to drop a config file.
		if err := config.EnsureConfigDir(configPath); err != nil {
			return nil, fmt.Errorf("ensure config dir: %w", err)
		}
	}

	dbPath := strings.TrimSpace(a.DBPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("REDMYNE_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	defaultCfg := config.Default(dbPath)
	cfg, err := config.Load(configPath, defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Storage.Path = dbPath
	}
	if !dbOverridden && cfg.Storage.Backend == config.BackendDiskv && cfg.Storage.Path == defaultCfg.Storage.Path {
		// The seeded default is a sqlite file path; a diskv backend with no
		// explicit path gets the platform store directory instead.
		cfg.Storage.Path = paths.StoreDir
	}
	if envKey := strings.TrimSpace(os.Getenv("REDMYNE_API_KEY")); envKey != "" {
		cfg.Remote.APIKey = envKey
	}

	logger, err := newRuntimeLogger(os.Stderr, cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "store_path", cfg.Storage.Path)

	var (
		kv         app.KeyValueStore
		closeStore func() error
	)
	switch cfg.Storage.Backend {
	case config.BackendDiskv:
		store, err := diskvstore.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open diskv store: %w", err)
		}
		kv = store
	default:
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		kv = store
		closeStore = store.Close
	}
	logger.Debug("local store ready", "backend", string(cfg.Storage.Backend), "path", cfg.Storage.Path)

	remote, remoteErr := newRemoteClient(cfg.Remote, configPath, logger)

	queue := app.NewDraftQueue()
	svc := app.NewService(queue, remote, kv, uuid.NewString, nil, app.ServiceConfig{Source: source})

	restored, err := svc.RestoreQueue(ctx)
	if err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		return nil, fmt.Errorf("restore queued operations: %w", err)
	}
	if restored > 0 {
		logger.Debug("queued operations restored", "count", restored)
	}

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		queue:      queue,
		service:    svc,
		remoteErr:  remoteErr,
		closeStore: closeStore,
	}, nil
}

// newRemoteClient builds the Redmine client, or explains what is missing.
// Commands that never touch the server run fine without one.
func newRemoteClient(cfg config.RemoteConfig, configPath string, logger *charmLog.Logger) (app.RemoteClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("remote.base_url is not set; add a [remote] section to %s", configPath)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("remote.api_key is not set; add it to %s or export REDMYNE_API_KEY", configPath)
	}
	client, err := redmine.NewClient(redmine.Config{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		UserID:   cfg.UserID,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		PageSize: cfg.PageSize,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configure remote client: %w", err)
	}
	return client, nil
}

// requireRemote reports why the remote client is unavailable, if it is.
func (rt *runtime) requireRemote() error {
	return rt.remoteErr
}

// shutdown persists the queue and closes the store. Command bodies defer it,
// so every invocation leaves the queue state on disk. The save runs on a
// fresh context because the command context may already be canceled here.
func (rt *runtime) shutdown() {
	if err := rt.service.SaveQueue(context.Background()); err != nil {
		rt.logger.Error("save queued operations failed", "err", err)
	}
	if rt.closeStore != nil {
		if err := rt.closeStore(); err != nil {
			rt.logger.Warn("close store failed", "err", err)
		}
	}
}

// newRuntimeLogger configures the console log sink from config state.
func newRuntimeLogger(stderr io.Writer, cfg config.LoggingConfig) (*charmLog.Logger, error) {
	raw := strings.TrimSpace(cfg.Level)
	if raw == "" {
		raw = "info"
	}
	level, err := charmLog.ParseLevel(raw)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	}), nil
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
