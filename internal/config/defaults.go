package config

import "runtime"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Workspace.URL == "" && cfg.Workspace.LocalDir == "" {
		cfg.Workspace.URL = "https://kbase.us/services/ws"
	}
	if cfg.Workspace.TimeoutSeconds == 0 {
		cfg.Workspace.TimeoutSeconds = 300
	}
	if cfg.Auth.TokenCacheSize == 0 {
		cfg.Auth.TokenCacheSize = 1000
	}
	if cfg.Auth.TokenCacheTTLSeconds == 0 {
		cfg.Auth.TokenCacheTTLSeconds = 300
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/genomesearch/data/db/catalogue.db"
	}
	if cfg.Storage.GenomeIndexDir == "" {
		cfg.Storage.GenomeIndexDir = "/usr/local/var/genomesearch/data/indices"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 10000
	}
	if cfg.Search.ResultCacheSize == 0 {
		cfg.Search.ResultCacheSize = 1000
	}
	if cfg.Index.WarmPoolSize == 0 {
		cfg.Index.WarmPoolSize = max(1, runtime.NumCPU()/2)
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
