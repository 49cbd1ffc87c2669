package config

import (
	"fmt"
	"strings"
)

// Validator is implemented by any configuration section that can check
// itself for internal consistency.
type Validator interface {
	Validate() error
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Add(err error) {
	if err != nil {
		ve.Errors = append(ve.Errors, err)
	}
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		messages[i] = fmt.Sprintf("  - %s", err.Error())
	}

	return fmt.Sprintf("configuration validation failed:\n%s",
		strings.Join(messages, "\n"))
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// Validate validates the entire configuration tree.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs.Add(c.Indexer.Validate())

	switch c.Database.Type {
	case DatabaseTypeClickHouse:
		if c.Database.ClickHouse == nil {
			errs.Add(fmt.Errorf("database.clickhouse configuration is required when type is clickhouse"))
		} else {
			errs.Add(c.Database.ClickHouse.Validate())
		}
	case DatabaseTypeDuckDB, "":
		if c.Database.DuckDB == nil {
			errs.Add(fmt.Errorf("database.duckdb configuration is required when type is duckdb"))
		} else {
			errs.Add(c.Database.DuckDB.Validate())
		}
	default:
		errs.Add(fmt.Errorf("database.type must be one of: duckdb, clickhouse, got %q", c.Database.Type))
	}

	if c.Cache.Enabled {
		errs.Add(c.Cache.Validate())
	}

	errs.Add(c.Logging.Validate())

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates indexer timing and range configuration.
func (c *IndexerConfig) Validate() error {
	var errs ValidationErrors

	if c.ScanCount < 1 {
		errs.Add(fmt.Errorf("indexer.scan_count must be positive, got %d", c.ScanCount))
	}
	if c.IndexCount < 1 {
		errs.Add(fmt.Errorf("indexer.index_count must be positive, got %d", c.IndexCount))
	}
	if c.Timeout <= 0 {
		errs.Add(fmt.Errorf("indexer.timeout must be positive"))
	}
	if c.ScanDelay < 0 {
		errs.Add(fmt.Errorf("indexer.scan_delay cannot be negative"))
	}
	if c.IndexDelay < 0 {
		errs.Add(fmt.Errorf("indexer.index_delay cannot be negative"))
	}
	if c.PruneFTPTime < 0 {
		errs.Add(fmt.Errorf("indexer.prune_ftp_time cannot be negative"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates the embedded DuckDB store configuration.
func (c *DuckDBConfig) Validate() error {
	var errs ValidationErrors

	if c.Path == "" {
		errs.Add(fmt.Errorf("database.duckdb.path is required"))
	}
	if c.BulkSize < 0 {
		errs.Add(fmt.Errorf("database.duckdb.bulk_size cannot be negative"))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates ClickHouse configuration.
func (c *ClickHouseConfig) Validate() error {
	var errs ValidationErrors

	if c.Host == "" {
		errs.Add(fmt.Errorf("database.clickhouse.host is required"))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs.Add(fmt.Errorf("database.clickhouse.port must be between 1-65535, got %d", c.Port))
	}

	if c.Database == "" {
		errs.Add(fmt.Errorf("database.clickhouse.database is required"))
	}

	if c.MaxOpenConns < 0 {
		errs.Add(fmt.Errorf("database.clickhouse.max_open_conns cannot be negative"))
	}

	if c.MaxIdleConns < 0 {
		errs.Add(fmt.Errorf("database.clickhouse.max_idle_conns cannot be negative"))
	}

	if c.MaxOpenConns > 0 && c.MaxIdleConns > c.MaxOpenConns {
		errs.Add(fmt.Errorf("database.clickhouse.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			c.MaxIdleConns, c.MaxOpenConns))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates cache configuration.
func (c *CacheConfig) Validate() error {
	var errs ValidationErrors

	if c.Path == "" {
		errs.Add(fmt.Errorf("cache.path is required when cache is enabled"))
	}

	if c.MaxMemoryMB < 1 {
		errs.Add(fmt.Errorf("cache.max_memory_mb must be positive, got %d", c.MaxMemoryMB))
	}

	if c.ValueLogMaxMB < 1 {
		errs.Add(fmt.Errorf("cache.value_log_max_mb must be positive, got %d", c.ValueLogMaxMB))
	}

	if c.GCDiscardRatio < 0 || c.GCDiscardRatio > 1 {
		errs.Add(fmt.Errorf("cache.gc_discard_ratio must be between 0 and 1, got %.2f", c.GCDiscardRatio))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}

// Validate validates logging configuration.
func (c *LoggingConfig) Validate() error {
	var errs ValidationErrors

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if c.Level == l {
			levelValid = true
			break
		}
	}
	if !levelValid && c.Level != "" {
		errs.Add(fmt.Errorf("logging.level must be one of: %v, got %s", validLevels, c.Level))
	}

	if c.MaxSize < 0 {
		errs.Add(fmt.Errorf("logging.max_size cannot be negative, got %d", c.MaxSize))
	}

	if c.MaxBackups < 0 {
		errs.Add(fmt.Errorf("logging.max_backups cannot be negative, got %d", c.MaxBackups))
	}

	if c.MaxAge < 0 {
		errs.Add(fmt.Errorf("logging.max_age cannot be negative, got %d", c.MaxAge))
	}

	if errs.HasErrors() {
		return &errs
	}
	return nil
}
