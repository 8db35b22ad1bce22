// Package config loads runtime configuration for the knowledge store from
// environment variables (optionally via a .env file), reading each setting
// from a single environment key and falling back to its default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"webmemcore/internal/webtypes"
)

// Config is the root configuration value constructed once at startup and
// threaded explicitly into every component; there is no global singleton.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Fetcher  FetcherConfig
	Embedder EmbedderConfig
	Sync     SyncConfig
	Blocklist BlocklistConfig
	KGQueue  KGQueueConfig
	Logging  LoggingConfig
}

// ServerConfig controls how the tool-facing front end is exposed.
type ServerConfig struct {
	Host     string
	Port     int
	IsServer bool // true=server mode, false=client-forwarding mode
	APIKey   string
	RateLimitPerMinute int
}

// StorageConfig names the two SQLite images and the flush policy inputs.
type StorageConfig struct {
	DBPath      string // durable on-disk image path
	UseMemoryDB bool
	ErrorJournalPath string
}

// FetcherConfig points at the external HTML/markdown rendering service.
type FetcherConfig struct {
	BaseURL string
	TimeoutSeconds int
}

// EmbedderConfig selects the fixed-384-dim local embedding model.
type EmbedderConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// SyncConfig holds Sync Manager timing values loaded from the environment
// and checked by Validate. The Sync Manager does not read them: it always
// uses a 1 s idle tick, a 5 s idle threshold and a 300 s periodic interval.
type SyncConfig struct {
	IdleTickInterval     int // seconds between idle-flush checks (default 1)
	IdleThresholdSeconds int // quiet period before an idle flush (default 5)
	PeriodicIntervalSeconds int // seconds between periodic flushes (default 300)
}

// BlocklistConfig holds the authorisation secret required to remove a
// blocklist pattern.
type BlocklistConfig struct {
	RemovalKeyword string
}

// KGQueueConfig holds the knowledge-graph settings. HealthURL is loaded
// from KG_HEALTH_URL, but nothing in the core probes it. NATSURL is the
// server the KG-queue notifier publishes to.
type KGQueueConfig struct {
	HealthURL string
	NATSURL   string
}

// LoggingConfig controls the ambient zerolog output format.
type LoggingConfig struct {
	Level string
	JSON  bool
}

// Default returns the configuration baseline before environment overlay.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			IsServer:           true,
			RateLimitPerMinute: 60,
		},
		Storage: StorageConfig{
			DBPath:           "./data/webmemory.db",
			UseMemoryDB:      true,
			ErrorJournalPath: "./data/error_journal.log",
		},
		Fetcher: FetcherConfig{
			BaseURL:        "http://localhost:11235",
			TimeoutSeconds: 30,
		},
		Embedder: EmbedderConfig{
			Model:     "BAAI/bge-small-en-v1.5",
			CacheDir:  "./data/models",
			MaxLength: 512,
		},
		Sync: SyncConfig{
			IdleTickInterval:        1,
			IdleThresholdSeconds:    5,
			PeriodicIntervalSeconds: 300,
		},
		Logging: LoggingConfig{Level: "info", JSON: true},
	}
}

// Load reads a .env file if present, then overlays environment variables
// onto Default(). A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	loadServerConfig(cfg)
	loadStorageConfig(cfg)
	loadFetcherConfig(cfg)
	loadEmbedderConfig(cfg)
	loadSyncConfig(cfg)
	loadBlocklistConfig(cfg)
	loadKGQueueConfig(cfg)
	loadLoggingConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadServerConfig(c *Config) {
	c.Server.Host = getStringEnvWithDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getIntEnvWithDefault("SERVER_PORT", c.Server.Port)
	c.Server.IsServer = getBoolEnvWithDefault("IS_SERVER", c.Server.IsServer)
	c.Server.APIKey = getStringEnvWithDefault("LOCAL_API_KEY", c.Server.APIKey)
	c.Server.RateLimitPerMinute = getIntEnvWithDefault("RATE_LIMIT_PER_MINUTE", c.Server.RateLimitPerMinute)
}

func loadStorageConfig(c *Config) {
	c.Storage.DBPath = getStringEnvWithDefault("DB_PATH", c.Storage.DBPath)
	c.Storage.UseMemoryDB = getBoolEnvWithDefault("USE_MEMORY_DB", c.Storage.UseMemoryDB)
	c.Storage.ErrorJournalPath = getStringEnvWithDefault("ERROR_JOURNAL_PATH", c.Storage.ErrorJournalPath)
}

func loadFetcherConfig(c *Config) {
	c.Fetcher.BaseURL = getStringEnvWithDefault("CRAWL4AI_URL", c.Fetcher.BaseURL)
	c.Fetcher.TimeoutSeconds = getIntEnvWithDefault("FETCHER_TIMEOUT_SECONDS", c.Fetcher.TimeoutSeconds)
}

func loadEmbedderConfig(c *Config) {
	c.Embedder.Model = getStringEnvWithDefault("EMBEDDING_MODEL", c.Embedder.Model)
	c.Embedder.CacheDir = getStringEnvWithDefault("EMBEDDING_CACHE_DIR", c.Embedder.CacheDir)
	c.Embedder.MaxLength = getIntEnvWithDefault("EMBEDDING_MAX_LENGTH", c.Embedder.MaxLength)
}

func loadSyncConfig(c *Config) {
	c.Sync.IdleTickInterval = getIntEnvWithDefault("SYNC_IDLE_TICK_SECONDS", c.Sync.IdleTickInterval)
	c.Sync.IdleThresholdSeconds = getIntEnvWithDefault("SYNC_IDLE_THRESHOLD_SECONDS", c.Sync.IdleThresholdSeconds)
	c.Sync.PeriodicIntervalSeconds = getIntEnvWithDefault("SYNC_PERIODIC_SECONDS", c.Sync.PeriodicIntervalSeconds)
}

func loadBlocklistConfig(c *Config) {
	c.Blocklist.RemovalKeyword = getStringEnvWithDefault("BLOCKED_DOMAIN_KEYWORD", c.Blocklist.RemovalKeyword)
}

func loadKGQueueConfig(c *Config) {
	c.KGQueue.HealthURL = getStringEnvWithDefault("KG_HEALTH_URL", c.KGQueue.HealthURL)
	c.KGQueue.NATSURL = getStringEnvWithDefault("KG_NATS_URL", c.KGQueue.NATSURL)
}

func loadLoggingConfig(c *Config) {
	c.Logging.Level = getStringEnvWithDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.JSON = getBoolEnvWithDefault("LOG_JSON", c.Logging.JSON)
}

func getStringEnvWithDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v == "true" || v == "1"
}

// Validate checks cross-field invariants; a failure here is a Fatal
// configuration error per spec §7.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.Fetcher.BaseURL == "" {
		return fmt.Errorf("CRAWL4AI_URL must not be empty")
	}
	if c.Sync.IdleThresholdSeconds <= 0 || c.Sync.PeriodicIntervalSeconds <= 0 {
		return fmt.Errorf("sync intervals must be positive")
	}
	return nil
}

// DefaultRetentionPolicy is used when a caller omits retention_policy.
const DefaultRetentionPolicy = webtypes.RetentionPermanent
