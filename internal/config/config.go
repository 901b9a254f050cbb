package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendDiskv  Backend = "diskv"
)

type Config struct {
	Remote  RemoteConfig  `toml:"remote"`
	Storage StorageConfig `toml:"storage"`
	Week    WeekConfig    `toml:"week"`
	Logging LoggingConfig `toml:"logging"`
	Server  ServerConfig  `toml:"server"`
}

type RemoteConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	UserID         string `toml:"user_id"` // numeric id or "me"
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PageSize       int    `toml:"page_size"`
}

type StorageConfig struct {
	Backend Backend `toml:"backend"`
	Path    string  `toml:"path"`
}

type WeekConfig struct {
	TargetHours float64 `toml:"target_hours"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

func Default(storagePath string) Config {
	return Config{
		Remote: RemoteConfig{
			UserID:         "me",
			TimeoutSeconds: 15,
			PageSize:       100,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    storagePath,
		},
		Week: WeekConfig{
			TargetHours: 40,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Bind:        "127.0.0.1:7920",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage path is required")
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendDiskv:
	default:
		return fmt.Errorf("invalid storage.backend: %q", c.Storage.Backend)
	}

	if base := strings.TrimSpace(c.Remote.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	}
	if c.Remote.TimeoutSeconds < 0 {
		return errors.New("remote.timeout_seconds must be >= 0")
	}
	if c.Remote.PageSize < 0 {
		return errors.New("remote.page_size must be >= 0")
	}

	if c.Week.TargetHours < 0 {
		return errors.New("week.target_hours must be >= 0")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
