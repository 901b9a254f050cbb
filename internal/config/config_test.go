package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/redmyne.db")
	if cfg.Storage.Path != "/tmp/redmyne.db" {
		t.Fatalf("unexpected storage path %q", cfg.Storage.Path)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Fatalf("unexpected backend %q", cfg.Storage.Backend)
	}
	if cfg.Remote.UserID != "me" || cfg.Remote.TimeoutSeconds != 15 || cfg.Remote.PageSize != 100 {
		t.Fatalf("unexpected remote defaults %+v", cfg.Remote)
	}
	if cfg.Week.TargetHours != 40 {
		t.Fatalf("unexpected target hours %v", cfg.Week.TargetHours)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/redmyne.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Path != defaults.Storage.Path {
		t.Fatalf("expected default storage path, got %q", cfg.Storage.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[remote]
base_url = "https://redmine.example.com"
api_key = "secret"
user_id = "42"
timeout_seconds = 30

[storage]
backend = "diskv"
path = "/custom/redmyne-store"

[week]
target_hours = 37.5

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Remote.BaseURL != "https://redmine.example.com" || cfg.Remote.APIKey != "secret" {
		t.Fatalf("unexpected remote config %+v", cfg.Remote)
	}
	if cfg.Remote.UserID != "42" || cfg.Remote.TimeoutSeconds != 30 {
		t.Fatalf("unexpected remote config %+v", cfg.Remote)
	}
	if cfg.Storage.Backend != BackendDiskv || cfg.Storage.Path != "/custom/redmyne-store" {
		t.Fatalf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Week.TargetHours != 37.5 {
		t.Fatalf("unexpected target hours %v", cfg.Week.TargetHours)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging level %q", cfg.Logging.Level)
	}
	if cfg.Server.Bind != "127.0.0.1:7920" {
		t.Fatalf("expected server defaults to survive partial config, got %q", cfg.Server.Bind)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad backend",
			content: `
[storage]
backend = "redis"
path = "/tmp/x"
`,
		},
		{
			name: "bad base url",
			content: `
[remote]
base_url = "redmine.example.com"

[storage]
backend = "sqlite"
path = "/tmp/x"
`,
		},
		{
			name: "bad level",
			content: `
[storage]
backend = "sqlite"
path = "/tmp/x"

[logging]
level = "loud"
`,
		},
		{
			name: "negative timeout",
			content: `
[remote]
timeout_seconds = -1

[storage]
backend = "sqlite"
path = "/tmp/x"
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path, Default("/tmp/default.db")); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
