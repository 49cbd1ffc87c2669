// Package config loads and validates the indexer's INDEXER_SETTINGS-equivalent
// configuration: the scannable address space, timing knobs, and the catalog
// backend to run against.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseType selects which catalog.Store implementation backs the engine.
type DatabaseType string

const (
	DatabaseTypeDuckDB     DatabaseType = "duckdb"
	DatabaseTypeClickHouse DatabaseType = "clickhouse"
)

// IndexerConfig mirrors the spec's INDEXER_SETTINGS table.
type IndexerConfig struct {
	IPRanges            []any         `yaml:"ip_ranges"`
	ScanDelay           time.Duration `yaml:"scan_delay"`
	IndexDelay          time.Duration `yaml:"index_delay"`
	ScanCount           int           `yaml:"scan_count"`
	IndexCount          int           `yaml:"index_count"`
	PruneFTPTime        time.Duration `yaml:"prune_ftp_time"`
	Timeout             time.Duration `yaml:"timeout"`
	HostnameStripSuffix []string      `yaml:"hostname_strip_suffix"`
}

// DefaultIndexerConfig returns the spec-mandated defaults.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		ScanDelay:    1800 * time.Second,
		IndexDelay:   7200 * time.Second,
		ScanCount:    200,
		IndexCount:   10,
		PruneFTPTime: 604800 * time.Second,
		Timeout:      2 * time.Second,
	}
}

// DuckDBConfig holds embedded-store configuration (the "sqlite-like" store).
type DuckDBConfig struct {
	Path        string `yaml:"path"`
	MemoryLimit string `yaml:"memory_limit,omitempty"`
	Threads     int    `yaml:"threads,omitempty"`
	ReadOnly    bool   `yaml:"read_only,omitempty"`
	BulkSize    int    `yaml:"bulk_size,omitempty"`
}

func DefaultDuckDBConfig() *DuckDBConfig {
	return &DuckDBConfig{
		Path:        "./indexer.duckdb",
		MemoryLimit: "4GB",
		Threads:     4,
		BulkSize:    100,
	}
}

// DSN returns the go-duckdb connection string for this configuration.
func (c *DuckDBConfig) DSN() string {
	dsn := c.Path + "?"
	if c.ReadOnly {
		dsn += "access_mode=read_only&"
	}
	dsn += fmt.Sprintf("memory_limit=%s&threads=%d", c.MemoryLimit, c.Threads)
	return dsn
}

// ClickHouseConfig holds server-class store configuration.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseSSL   bool   `yaml:"use_ssl,omitempty"`

	MaxOpenConns int           `yaml:"max_open_conns,omitempty"`
	MaxIdleConns int           `yaml:"max_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	Compression  string        `yaml:"compression,omitempty"` // none, zstd, lz4, gzip
	BulkSize     int           `yaml:"bulk_size,omitempty"`
}

func DefaultClickHouseConfig() *ClickHouseConfig {
	return &ClickHouseConfig{
		Host:         "localhost",
		Port:         9000,
		Database:     "indexer",
		Username:     "default",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  30 * time.Second,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: time.Minute,
		Compression:  "lz4",
		BulkSize:     10000,
	}
}

// DatabaseConfig selects and configures the catalog backend.
type DatabaseConfig struct {
	Type       DatabaseType      `yaml:"type"`
	DuckDB     *DuckDBConfig     `yaml:"duckdb,omitempty"`
	ClickHouse *ClickHouseConfig `yaml:"clickhouse,omitempty"`
}

// CacheConfig configures the optional Badger-backed reverse-DNS cache.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Path           string        `yaml:"path"`
	MaxMemoryMB    int           `yaml:"max_memory_mb"`
	ValueLogMaxMB  int           `yaml:"value_log_max_mb"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio"`
	TTL            time.Duration `yaml:"ttl"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:        true,
		Path:           "./cache/dnsname",
		MaxMemoryMB:    64,
		ValueLogMaxMB:  256,
		GCDiscardRatio: 0.5,
		TTL:            24 * time.Hour,
	}
}

// LoggingConfig mirrors logging.Config so it can live in the YAML tree
// without internal/config importing internal/logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Console    bool   `yaml:"console"`
	JSON       bool   `yaml:"json"`
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Console: true}
}

// Config is the complete configuration tree loaded from YAML.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns a Config with spec-mandated defaults and a DuckDB backend.
func Default() *Config {
	return &Config{
		Indexer: DefaultIndexerConfig(),
		Database: DatabaseConfig{
			Type:   DatabaseTypeDuckDB,
			DuckDB: DefaultDuckDBConfig(),
		},
		Cache:   DefaultCacheConfig(),
		Logging: DefaultLoggingConfig(),
	}
}

// Load reads configuration from a YAML file, applying defaults for anything
// left unset. A missing file is not an error: Default() is returned.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories as
// needed. Used by CreateExampleConfigs to emit example configs.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// applyDefaults fills in zero-valued fields left unset by the YAML document.
func (c *Config) applyDefaults() {
	defaults := DefaultIndexerConfig()
	if c.Indexer.ScanDelay == 0 {
		c.Indexer.ScanDelay = defaults.ScanDelay
	}
	if c.Indexer.IndexDelay == 0 {
		c.Indexer.IndexDelay = defaults.IndexDelay
	}
	if c.Indexer.ScanCount == 0 {
		c.Indexer.ScanCount = defaults.ScanCount
	}
	if c.Indexer.IndexCount == 0 {
		c.Indexer.IndexCount = defaults.IndexCount
	}
	if c.Indexer.PruneFTPTime == 0 {
		c.Indexer.PruneFTPTime = defaults.PruneFTPTime
	}
	if c.Indexer.Timeout == 0 {
		c.Indexer.Timeout = defaults.Timeout
	}

	switch c.Database.Type {
	case DatabaseTypeClickHouse:
		if c.Database.ClickHouse == nil {
			c.Database.ClickHouse = DefaultClickHouseConfig()
		}
		chDefaults := DefaultClickHouseConfig()
		if c.Database.ClickHouse.Port == 0 {
			c.Database.ClickHouse.Port = chDefaults.Port
		}
		if c.Database.ClickHouse.Username == "" {
			c.Database.ClickHouse.Username = chDefaults.Username
		}
		if c.Database.ClickHouse.MaxOpenConns == 0 {
			c.Database.ClickHouse.MaxOpenConns = chDefaults.MaxOpenConns
		}
		if c.Database.ClickHouse.MaxIdleConns == 0 {
			c.Database.ClickHouse.MaxIdleConns = chDefaults.MaxIdleConns
		}
		if c.Database.ClickHouse.DialTimeout == 0 {
			c.Database.ClickHouse.DialTimeout = chDefaults.DialTimeout
		}
		if c.Database.ClickHouse.ReadTimeout == 0 {
			c.Database.ClickHouse.ReadTimeout = chDefaults.ReadTimeout
		}
		if c.Database.ClickHouse.WriteTimeout == 0 {
			c.Database.ClickHouse.WriteTimeout = chDefaults.WriteTimeout
		}
		if c.Database.ClickHouse.Compression == "" {
			c.Database.ClickHouse.Compression = chDefaults.Compression
		}
		if c.Database.ClickHouse.BulkSize == 0 {
			c.Database.ClickHouse.BulkSize = chDefaults.BulkSize
		}
	default:
		if c.Database.Type == "" {
			c.Database.Type = DatabaseTypeDuckDB
		}
		if c.Database.DuckDB == nil {
			c.Database.DuckDB = DefaultDuckDBConfig()
		}
		dbDefaults := DefaultDuckDBConfig()
		if c.Database.DuckDB.MemoryLimit == "" {
			c.Database.DuckDB.MemoryLimit = dbDefaults.MemoryLimit
		}
		if c.Database.DuckDB.Threads == 0 {
			c.Database.DuckDB.Threads = dbDefaults.Threads
		}
		if c.Database.DuckDB.BulkSize == 0 {
			c.Database.DuckDB.BulkSize = dbDefaults.BulkSize
		}
	}

	if c.Cache.Enabled {
		cacheDefaults := DefaultCacheConfig()
		if c.Cache.MaxMemoryMB == 0 {
			c.Cache.MaxMemoryMB = cacheDefaults.MaxMemoryMB
		}
		if c.Cache.ValueLogMaxMB == 0 {
			c.Cache.ValueLogMaxMB = cacheDefaults.ValueLogMaxMB
		}
		if c.Cache.GCDiscardRatio == 0 {
			c.Cache.GCDiscardRatio = cacheDefaults.GCDiscardRatio
		}
		if c.Cache.TTL == 0 {
			c.Cache.TTL = cacheDefaults.TTL
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// BulkSize returns the chunk size reconciliation should use for bulk
// insertion, per §4.6: catalog-reported default if present, else the
// store-class default (100 embedded, 10,000 server-class).
func (c *Config) BulkSize() int {
	switch c.Database.Type {
	case DatabaseTypeClickHouse:
		if c.Database.ClickHouse != nil && c.Database.ClickHouse.BulkSize > 0 {
			return c.Database.ClickHouse.BulkSize
		}
		return 10000
	default:
		if c.Database.DuckDB != nil && c.Database.DuckDB.BulkSize > 0 {
			return c.Database.DuckDB.BulkSize
		}
		return 100
	}
}

// CreateExampleConfigs writes one example YAML document per supported
// catalog backend into dir.
func CreateExampleConfigs(dir string) error {
	duckdb := Default()
	if err := Save(duckdb, filepath.Join(dir, "config-duckdb-example.yaml")); err != nil {
		return fmt.Errorf("create duckdb example config: %w", err)
	}

	clickhouse := Default()
	clickhouse.Database = DatabaseConfig{
		Type:       DatabaseTypeClickHouse,
		ClickHouse: DefaultClickHouseConfig(),
	}
	if err := Save(clickhouse, filepath.Join(dir, "config-clickhouse-example.yaml")); err != nil {
		return fmt.Errorf("create clickhouse example config: %w", err)
	}

	return nil
}
