package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Client.PageSize != 20 {
		t.Errorf("PageSize = %d, want 20", cfg.Client.PageSize)
	}
	if cfg.Client.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.Client.PollInterval)
	}
	if !cfg.Notifications.Desktop {
		t.Error("desktop notifications should default on")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
base_url = "https://api.example.com/"

[client]
page_size = 50
poll_interval = "5s"

[notifications]
desktop = false
slack_webhook = "https://hooks.slack.com/x"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.Backend.BaseURL)
	}
	if cfg.Client.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Client.PageSize)
	}
	if cfg.Client.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Client.PollInterval)
	}
	if cfg.Notifications.Desktop {
		t.Error("desktop should be disabled by file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("BATCHCTL_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Backend.APIKey)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandPath(~/x) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %q", got)
	}
}
