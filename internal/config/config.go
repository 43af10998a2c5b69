package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Backend       BackendConfig       `toml:"backend"`
	Client        ClientConfig        `toml:"client"`
	Watch         WatchConfig         `toml:"watch"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// BackendConfig holds the execution backend settings
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// ClientConfig holds local client behavior settings
type ClientConfig struct {
	PageSize     int           `toml:"page_size"`
	PollInterval time.Duration `toml:"poll_interval"`
	DownloadDir  string        `toml:"download_dir"`
	SchedulePath string        `toml:"schedule_path"`
}

// WatchConfig holds manifest drop-directory settings
type WatchConfig struct {
	Dir      string        `toml:"dir"`
	Debounce time.Duration `toml:"debounce"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080",
		},
		Client: ClientConfig{
			PageSize:     20,
			PollInterval: 10 * time.Second,
			DownloadDir:  filepath.Join(home, "Downloads"),
			SchedulePath: filepath.Join(home, ".config", "batchctl", "schedules.toml"),
		},
		Watch: WatchConfig{
			Dir:      filepath.Join(home, ".config", "batchctl", "inbox"),
			Debounce: 500 * time.Millisecond,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults.
// BATCHCTL_API_KEY and BATCHCTL_BASE_URL override the file (a .env file in
// the working directory is honored when present).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	godotenv.Load()
	if v := os.Getenv("BATCHCTL_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("BATCHCTL_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}

	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	cfg.Client.DownloadDir = ExpandPath(cfg.Client.DownloadDir)
	cfg.Client.SchedulePath = ExpandPath(cfg.Client.SchedulePath)
	cfg.Watch.Dir = ExpandPath(cfg.Watch.Dir)

	if cfg.Client.PageSize <= 0 {
		cfg.Client.PageSize = 20
	}
	if cfg.Client.PollInterval <= 0 {
		cfg.Client.PollInterval = 10 * time.Second
	}

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "batchctl", "config.toml")
}
