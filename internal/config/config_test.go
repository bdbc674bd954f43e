package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("THREECORNER_DATA_DIR", "/data/tc")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Input.MaxCharLength != 6 {
		t.Errorf("expected max_char_length 6, got %d", cfg.Input.MaxCharLength)
	}
	if cfg.Tables.Dir != filepath.Join("/data/tc", "tables") {
		t.Errorf("unexpected tables dir: %s", cfg.Tables.Dir)
	}
	if cfg.MenuRune() != '`' {
		t.Errorf("expected menu key '`', got %q", cfg.MenuRune())
	}
	if cfg.LoadTimeout() != 5*time.Second {
		t.Errorf("expected 5s load timeout, got %v", cfg.LoadTimeout())
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "threecorner") {
		t.Errorf("config path should contain threecorner: %s", path)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Input.Scheme != "threecorner" {
		t.Errorf("expected default scheme, got %s", cfg.Input.Scheme)
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
[input]
scheme = "dayi"
max_char_length = 4
composition_buffer_mode = true

[features]
reverse_lookup = true
`,
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"input": {"scheme": "dayi", "max_char_length": 4, "composition_buffer_mode": true}, "features": {"reverse_lookup": true}}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
input:
  scheme: dayi
  max_char_length: 4
  composition_buffer_mode: true
features:
  reverse_lookup: true
`,
		},
		{
			name: "unknown extension",
			file: "config",
			content: `
[input]
scheme = "dayi"
max_char_length = 4
composition_buffer_mode = true
[features]
reverse_lookup = true
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.file)
			writeFile(t, path, tc.content)

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Input.Scheme != "dayi" {
				t.Errorf("expected scheme dayi, got %s", cfg.Input.Scheme)
			}
			if cfg.Input.MaxCharLength != 4 {
				t.Errorf("expected max_char_length 4, got %d", cfg.Input.MaxCharLength)
			}
			if !cfg.Input.CompositionBufferMode {
				t.Error("expected composition_buffer_mode")
			}
			if !cfg.Features.ReverseLookup {
				t.Error("expected reverse_lookup")
			}
			if cfg.Input.CandidatesPerPage != 9 {
				t.Errorf("unset fields keep defaults, got candidates_per_page %d", cfg.Input.CandidatesPerPage)
			}
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[input\nscheme = ")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("THREECORNER_SCHEME", "cangjie")
	t.Setenv("THREECORNER_TABLE_DIR", "/opt/tables")
	t.Setenv("THREECORNER_DB_PATH", "/tmp/tc.db")
	t.Setenv("THREECORNER_LOG_LEVEL", "debug")
	t.Setenv("THREECORNER_METRICS_LISTEN", "127.0.0.1:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Input.Scheme != "cangjie" {
		t.Errorf("scheme override not applied: %s", cfg.Input.Scheme)
	}
	if cfg.Tables.Dir != "/opt/tables" {
		t.Errorf("table dir override not applied: %s", cfg.Tables.Dir)
	}
	if cfg.Storage.Path != "/tmp/tc.db" {
		t.Errorf("db path override not applied: %s", cfg.Storage.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level override not applied: %s", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9000" {
		t.Errorf("metrics override not applied: %+v", cfg.Metrics)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 99 }, "version"},
		{"empty scheme", func(c *Config) { c.Input.Scheme = "" }, "input.scheme"},
		{"scheme path", func(c *Config) { c.Input.PhraseScheme = "../etc" }, "input.phrase_scheme"},
		{"max length", func(c *Config) { c.Input.MaxCharLength = 0 }, "input.max_char_length"},
		{"page size", func(c *Config) { c.Input.CandidatesPerPage = 11 }, "input.candidates_per_page"},
		{"short selection keys", func(c *Config) { c.Input.SelectionKeys = "123" }, "input.selection_keys"},
		{"menu key", func(c *Config) { c.Input.MenuKey = "ab" }, "input.menu_key"},
		{"reverse without scheme", func(c *Config) { c.Features.ReverseLookup = true }, "input.reverse_scheme"},
		{"history without db", func(c *Config) { c.Storage.Path = ""; c.Storage.RecordCommits = true }, "storage.path"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"metrics listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "nope" }, "metrics.listen"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestSaveConfig(t *testing.T) {
	for _, ext := range []string{".toml", ".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "config"+ext)
			cfg := DefaultConfig()
			cfg.Input.Scheme = "dayi"
			cfg.Input.MenuKey = "~"
			cfg.Features.ShowPhrase = true

			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Input.Scheme != "dayi" || loaded.MenuRune() != '~' || !loaded.Features.ShowPhrase {
				t.Errorf("saved settings not restored: %+v %+v", loaded.Input, loaded.Features)
			}
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	_, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if !created {
		t.Error("expected the file to be created")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if created {
		t.Error("expected the existing file to be loaded")
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	lc, err := cfg.LoggerConfig()
	if err != nil {
		t.Fatalf("LoggerConfig failed: %v", err)
	}
	if lc.Level.String() != "WARN" {
		t.Errorf("expected WARN, got %s", lc.Level)
	}
	if lc.MaxSize != int64(cfg.Logging.MaxSizeMB) {
		t.Errorf("max size not carried over: %d", lc.MaxSize)
	}

	cfg.Logging.Format = "xml"
	if _, err := cfg.LoggerConfig(); err == nil {
		t.Error("expected error for unknown format")
	}
}
