package config

import (
	"strings"
	"testing"
	"time"
)

func TestIndexerConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  IndexerConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: IndexerConfig{
				ScanCount:  200,
				IndexCount: 10,
				Timeout:    2 * time.Second,
			},
			wantErr: false,
		},
		{
			name:    "zero scan count",
			config:  IndexerConfig{ScanCount: 0, IndexCount: 10, Timeout: 2 * time.Second},
			wantErr: true,
		},
		{
			name:    "zero timeout",
			config:  IndexerConfig{ScanCount: 200, IndexCount: 10},
			wantErr: true,
		},
		{
			name:    "negative scan delay",
			config:  IndexerConfig{ScanCount: 200, IndexCount: 10, Timeout: 2 * time.Second, ScanDelay: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClickHouseValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  ClickHouseConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: ClickHouseConfig{
				Host:         "localhost",
				Port:         9000,
				Database:     "test",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name:    "missing host",
			config:  ClickHouseConfig{Port: 9000, Database: "test"},
			wantErr: true,
		},
		{
			name:    "invalid port",
			config:  ClickHouseConfig{Host: "localhost", Port: 99999, Database: "test"},
			wantErr: true,
		},
		{
			name:    "missing database",
			config:  ClickHouseConfig{Host: "localhost", Port: 9000},
			wantErr: true,
		},
		{
			name: "idle conns exceed open conns",
			config: ClickHouseConfig{
				Host: "localhost", Port: 9000, Database: "test",
				MaxOpenConns: 5, MaxIdleConns: 10,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuckDBValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  DuckDBConfig
		wantErr bool
	}{
		{name: "valid config", config: DuckDBConfig{Path: "./indexer.duckdb"}, wantErr: false},
		{name: "missing path", config: DuckDBConfig{}, wantErr: true},
		{name: "negative bulk size", config: DuckDBConfig{Path: "x.db", BulkSize: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  CacheConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: CacheConfig{
				Path:           "/tmp/cache",
				MaxMemoryMB:    256,
				ValueLogMaxMB:  100,
				GCDiscardRatio: 0.5,
				Enabled:        true,
			},
			wantErr: false,
		},
		{
			name: "missing path",
			config: CacheConfig{
				MaxMemoryMB:   256,
				ValueLogMaxMB: 100,
				Enabled:       true,
			},
			wantErr: true,
		},
		{
			name: "invalid max memory",
			config: CacheConfig{
				Path:          "/tmp/cache",
				MaxMemoryMB:   0,
				ValueLogMaxMB: 100,
				Enabled:       true,
			},
			wantErr: true,
		},
		{
			name: "invalid gc ratio",
			config: CacheConfig{
				Path:           "/tmp/cache",
				MaxMemoryMB:    256,
				ValueLogMaxMB:  100,
				GCDiscardRatio: 1.5,
				Enabled:        true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{
			name: "valid config",
			config: LoggingConfig{
				Level:      "info",
				Console:    true,
				MaxSize:    100,
				MaxBackups: 3,
				MaxAge:     28,
			},
			wantErr: false,
		},
		{
			name:    "invalid level",
			config:  LoggingConfig{Level: "invalid", Console: true},
			wantErr: true,
		},
		{
			name:    "negative max size",
			config:  LoggingConfig{Level: "info", Console: true, MaxSize: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors

	if errs.HasErrors() {
		t.Error("Empty ValidationErrors should not have errors")
	}

	if errs.Error() != "" {
		t.Error("Empty ValidationErrors should return empty string")
	}

	errs.Add(nil) // Should be ignored
	if errs.HasErrors() {
		t.Error("Adding nil should not create errors")
	}

	errs.Add(&configError{msg: "test error 1"})
	errs.Add(&configError{msg: "test error 2"})

	if !errs.HasErrors() {
		t.Error("Should have errors after adding")
	}

	if len(errs.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errs.Errors))
	}

	errMsg := errs.Error()
	if !strings.Contains(errMsg, "test error 1") || !strings.Contains(errMsg, "test error 2") {
		t.Errorf("Error message doesn't contain expected errors: %s", errMsg)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := Default()
		if err := cfg.Validate(); err != nil {
			t.Errorf("Valid config should not error: %v", err)
		}
	})

	t.Run("invalid clickhouse config", func(t *testing.T) {
		cfg := &Config{
			Database: DatabaseConfig{
				Type:       DatabaseTypeClickHouse,
				ClickHouse: &ClickHouseConfig{},
			},
			Indexer: DefaultIndexerConfig(),
			Logging: LoggingConfig{Level: "info", Console: true},
		}

		if err := cfg.Validate(); err == nil {
			t.Error("Invalid config should error")
		}
	})

	t.Run("multiple validation errors", func(t *testing.T) {
		cfg := &Config{
			Indexer: DefaultIndexerConfig(),
			Database: DatabaseConfig{
				Type: DatabaseTypeClickHouse,
				ClickHouse: &ClickHouseConfig{
					Host: "localhost",
					Port: 99999, // Invalid
				},
			},
			Cache: CacheConfig{
				Enabled:     true,
				MaxMemoryMB: -1, // Invalid
			},
			Logging: LoggingConfig{Level: "invalid"}, // Invalid
		}

		err := cfg.Validate()
		if err == nil {
			t.Fatal("Expected validation errors")
		}

		errMsg := err.Error()
		if !strings.Contains(errMsg, "configuration validation failed") {
			t.Errorf("Error message should indicate validation failure: %s", errMsg)
		}
	})
}

type configError struct {
	msg string
}

func (e *configError) Error() string {
	return e.msg
}
