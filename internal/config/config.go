package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DataConfig describes where the events document comes from. When both
// are set, Path wins; the URL form uses a disk-backed conditional GET
// cache under CacheDir.
type DataConfig struct {
	// URL is an HTTP endpoint serving the events JSON document.
	URL string `yaml:"url" json:"url"`
	// Path is a local events JSON file.
	Path string `yaml:"path" json:"path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the board.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SnapshotConfig controls the headless-browser PNG capture of the
// board page.
type SnapshotConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `yaml:"listen" json:"listen"`

	// Data locates the events document.
	Data DataConfig `yaml:"data" json:"data"`

	// Timezone is the IANA timezone used when displaying feed
	// timestamps (e.g. "Asia/Taipei").
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron expression for re-fetching the events
	// document while the server runs. Empty disables the refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir is where the HTTP source cache lives.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Snapshot controls -snapshot capture geometry.
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Data:        DataConfig{Path: "data/events.json"},
		Timezone:    "Asia/Taipei",
		RefreshCron: "",
		CacheDir:    "./var/source-cache",
		Snapshot:    SnapshotConfig{Width: 1280, Height: 800},
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Data.URL == "" && c.Data.Path == "" {
		c.Data.Path = "data/events.json"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Taipei"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/source-cache"
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1280
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 800
	}
}

// Load loads configuration from the given YAML path. If the file does
// not exist, a default config is written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with
// 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".racecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
