// Package config provides configuration loading and structs for the genomesearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WorkspaceConfig selects the object store. When LocalDir is set the service
// serves objects from a directory of JSON files instead of a remote workspace.
type WorkspaceConfig struct {
	URL            string `yaml:"url"`
	LocalDir       string `yaml:"local_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the workspace request timeout.
func (w *WorkspaceConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// AuthConfig holds token resolution settings. An empty URL disables auth.
type AuthConfig struct {
	URL                  string `yaml:"url"`
	TokenCacheSize       int    `yaml:"token_cache_size"`
	TokenCacheTTLSeconds int    `yaml:"token_cache_ttl_seconds"`
}

// TokenCacheTTL returns how long a resolved token stays cached.
func (a *AuthConfig) TokenCacheTTL() time.Duration {
	return time.Duration(a.TokenCacheTTLSeconds) * time.Second
}

// StorageConfig holds paths for the catalogue database and indices.
// An empty GenomeIndexDir keeps Bleve indexes in memory; an empty
// ObjectCachePath disables the object cache.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	GenomeIndexDir  string `yaml:"genome_index_dir"`
	ObjectCachePath string `yaml:"object_cache_path"`
}

// SearchConfig holds paging and result cache settings.
type SearchConfig struct {
	DefaultLimit    int `yaml:"default_limit"`
	MaxLimit        int `yaml:"max_limit"`
	ResultCacheSize int `yaml:"result_cache_size"`
}

// IndexConfig holds warm-up settings. WarmRefs are indexed at server start.
type IndexConfig struct {
	WarmRefs     []string `yaml:"warm_refs"`
	WarmPoolSize int      `yaml:"warm_pool_size"`
}

// WatchConfig holds settings for watching workspace.local_dir.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Debounce returns the watcher debounce interval.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.GenomeIndexDir = expandPath(cfg.Storage.GenomeIndexDir, configDir)
	cfg.Storage.ObjectCachePath = expandPath(cfg.Storage.ObjectCachePath, configDir)
	cfg.Workspace.LocalDir = expandPath(cfg.Workspace.LocalDir, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths and
// ":memory:" stay as they are.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
