package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				APIKey:              "secret",
				OwnerIDs:            []uint64{1, 2},
				DatabaseURL:         "postgres://bot@db/taverna",
				GenerateSchemas:     &trueVal,
				Extensions:          []string{"admin"},
				LogLevel:            "debug",
				MetricsAddr:         ":9100",
				ReadinessInterval:   "250ms",
				ReadinessTimeout:    "30s",
				ShutdownTimeout:     "5s",
				MonitorInterval:     "10s",
				RSSThresholdMB:      300,
				VMSThresholdMB:      900,
				CPUThresholdPercent: 40,
			},
			expected: Config{
				APIKey:              "secret",
				OwnerIDs:            []uint64{1, 2},
				DatabaseURL:         "postgres://bot@db/taverna",
				GenerateSchemas:     true,
				Extensions:          []string{"admin"},
				LogLevel:            "debug",
				MetricsAddr:         ":9100",
				ReadinessInterval:   250 * time.Millisecond,
				ReadinessTimeout:    30 * time.Second,
				ShutdownTimeout:     5 * time.Second,
				MonitorInterval:     10 * time.Second,
				RSSThresholdMB:      300,
				VMSThresholdMB:      900,
				CPUThresholdPercent: 40,
			},
		},
		{
			name:       "respects changed flags",
			fileConfig: FileConfig{LogLevel: "debug", MetricsAddr: ":9100"},
			changed:    map[string]bool{"log-level": true},
			initial:    Config{LogLevel: "error"},
			expected:   Config{LogLevel: "error", MetricsAddr: ":9100"}, // log level kept because flag was set
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{ReadinessTimeout: "forever"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			changed := tt.changed
			if changed == nil {
				changed = map[string]bool{}
			}
			err := ApplyFileConfig(&cfg, tt.fileConfig, changed)
			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg.APIKey != tt.expected.APIKey {
				t.Errorf("APIKey = %v, want %v", cfg.APIKey, tt.expected.APIKey)
			}
			if cfg.DatabaseURL != tt.expected.DatabaseURL {
				t.Errorf("DatabaseURL = %v, want %v", cfg.DatabaseURL, tt.expected.DatabaseURL)
			}
			if cfg.LogLevel != tt.expected.LogLevel {
				t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, tt.expected.LogLevel)
			}
			if cfg.MetricsAddr != tt.expected.MetricsAddr {
				t.Errorf("MetricsAddr = %v, want %v", cfg.MetricsAddr, tt.expected.MetricsAddr)
			}
			if cfg.GenerateSchemas != tt.expected.GenerateSchemas {
				t.Errorf("GenerateSchemas = %v, want %v", cfg.GenerateSchemas, tt.expected.GenerateSchemas)
			}
			if len(cfg.OwnerIDs) != len(tt.expected.OwnerIDs) {
				t.Errorf("OwnerIDs = %v, want %v", cfg.OwnerIDs, tt.expected.OwnerIDs)
			}
			if cfg.ReadinessInterval != tt.expected.ReadinessInterval {
				t.Errorf("ReadinessInterval = %v, want %v", cfg.ReadinessInterval, tt.expected.ReadinessInterval)
			}
			if cfg.ReadinessTimeout != tt.expected.ReadinessTimeout {
				t.Errorf("ReadinessTimeout = %v, want %v", cfg.ReadinessTimeout, tt.expected.ReadinessTimeout)
			}
			if cfg.MonitorInterval != tt.expected.MonitorInterval {
				t.Errorf("MonitorInterval = %v, want %v", cfg.MonitorInterval, tt.expected.MonitorInterval)
			}
			if cfg.Thresholds() != tt.expected.Thresholds() {
				t.Errorf("Thresholds = %+v, want %+v", cfg.Thresholds(), tt.expected.Thresholds())
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "config.toml")
		content := strings.TrimSpace(`
api_key = "from-file"
owner_ids = [42, 43]
database_url = "sqlite://:memory:"
generate_schemas = true
extensions = ["admin"]
readiness_timeout = "1m"
cpu_threshold_percent = 75.5
`)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		fc, err := LoadFileConfig(path)
		if err != nil {
			t.Fatalf("LoadFileConfig() error = %v", err)
		}
		if fc.APIKey != "from-file" {
			t.Errorf("APIKey = %q", fc.APIKey)
		}
		if len(fc.OwnerIDs) != 2 || fc.OwnerIDs[0] != 42 {
			t.Errorf("OwnerIDs = %v", fc.OwnerIDs)
		}
		if fc.GenerateSchemas == nil || !*fc.GenerateSchemas {
			t.Error("GenerateSchemas not set")
		}
		if fc.CPUThresholdPercent != 75.5 {
			t.Errorf("CPUThresholdPercent = %v", fc.CPUThresholdPercent)
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.toml")
		if err := os.WriteFile(path, []byte("api_key = "), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFileConfig(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFileConfig(filepath.Join(dir, "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

// Precedence order: flags > env > file > defaults.
func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := strings.TrimSpace(`
api_key = "file-token"
database_url = "sqlite://file.db"
log_level = "error"
metrics_addr = ":7000"
`)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_URL", "sqlite://env.db")
	t.Setenv("TAVERNA_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	cfg.LogLevel = "debug" // set by flag
	changed := map[string]bool{"log-level": true}

	if err := Load(&cfg, path, changed); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (flag should win)", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "sqlite://env.db" {
		t.Errorf("DatabaseURL = %v, want sqlite://env.db (env should override file)", cfg.DatabaseURL)
	}
	if cfg.APIKey != "file-token" {
		t.Errorf("APIKey = %v, want file-token (file should set)", cfg.APIKey)
	}
	if cfg.MonitorInterval != DefaultConfig().MonitorInterval {
		t.Errorf("MonitorInterval = %v, want default", cfg.MonitorInterval)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "env-token")

	cfg := DefaultConfig()
	if err := Load(&cfg, filepath.Join(t.TempDir(), "absent.toml"), map[string]bool{}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
