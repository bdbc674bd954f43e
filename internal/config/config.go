// Package config handles configuration loading, validation, and hot reload
// for threecorner.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"threecorner/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Input configures composition.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Features toggles optional behaviors.
	Features FeaturesConfig `toml:"features" json:"features" yaml:"features"`

	// Tables configures where code tables are loaded from.
	Tables TablesConfig `toml:"tables" json:"tables" yaml:"tables"`

	// Storage configures the user phrase and history database.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// InputConfig holds composition settings.
type InputConfig struct {
	// Scheme is the primary code table.
	Scheme string `toml:"scheme" json:"scheme" yaml:"scheme"`

	// ReverseScheme is the table used for reverse-lookup annotations.
	// Empty disables the lookup even when the feature is on.
	ReverseScheme string `toml:"reverse_scheme" json:"reverse_scheme" yaml:"reverse_scheme"`

	// HomophoneScheme is the phonetic table used by homophone queries.
	HomophoneScheme string `toml:"homophone_scheme" json:"homophone_scheme" yaml:"homophone_scheme"`

	// PhraseScheme maps committed characters to follow-up phrases.
	PhraseScheme string `toml:"phrase_scheme" json:"phrase_scheme" yaml:"phrase_scheme"`

	// MaxCharLength is the number of code units in a full composition.
	MaxCharLength int `toml:"max_char_length" json:"max_char_length" yaml:"max_char_length"`

	// SelectionKeys overrides the table's selection keys.
	SelectionKeys string `toml:"selection_keys" json:"selection_keys" yaml:"selection_keys"`

	CandidatesPerPage int `toml:"candidates_per_page" json:"candidates_per_page" yaml:"candidates_per_page"`

	// CompositionBufferMode selects the BufferCommit strategy.
	CompositionBufferMode bool `toml:"composition_buffer_mode" json:"composition_buffer_mode" yaml:"composition_buffer_mode"`

	// MenuKey opens the function menu on an empty composition.
	MenuKey string `toml:"menu_key" json:"menu_key" yaml:"menu_key"`

	LoadTimeoutMs     int `toml:"load_timeout_ms" json:"load_timeout_ms" yaml:"load_timeout_ms"`
	MessageDurationMs int `toml:"message_duration_ms" json:"message_duration_ms" yaml:"message_duration_ms"`
}

// FeaturesConfig holds the feature switches.
type FeaturesConfig struct {
	ShowPhrase       bool `toml:"show_phrase" json:"show_phrase" yaml:"show_phrase"`
	ReverseLookup    bool `toml:"reverse_lookup" json:"reverse_lookup" yaml:"reverse_lookup"`
	HomophoneQuery   bool `toml:"homophone_query" json:"homophone_query" yaml:"homophone_query"`
	SimplifiedOutput bool `toml:"simplified_output" json:"simplified_output" yaml:"simplified_output"`
}

// TablesConfig holds code table settings.
type TablesConfig struct {
	// Dir holds <scheme>.json table files.
	Dir string `toml:"dir" json:"dir" yaml:"dir"`

	// Watch reloads tables when their files change.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`

	// DebounceMs is how long a file must be quiet before it is reloaded.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables storage.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RecordCommits keeps a commit history for frequency statistics.
	RecordCommits bool `toml:"record_commits" json:"record_commits" yaml:"record_commits"`

	// HistoryDays prunes history older than this many days; 0 keeps all.
	HistoryDays int `toml:"history_days" json:"history_days" yaml:"history_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log destination: stdout, stderr, file, both, discard.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum size of a log file before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the maximum number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is the address of the Prometheus text endpoint.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Input: InputConfig{
			Scheme:            "threecorner",
			HomophoneScheme:   "bopomofo",
			PhraseScheme:      "phrase",
			MaxCharLength:     6,
			CandidatesPerPage: 9,
			MenuKey:           "`",
			LoadTimeoutMs:     5000,
			MessageDurationMs: 3000,
		},
		Tables: TablesConfig{
			Dir:        filepath.Join(dir, "tables"),
			Watch:      true,
			DebounceMs: 250,
		},
		Storage: StorageConfig{
			Path:        filepath.Join(dir, "threecorner.db"),
			HistoryDays: 90,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "file",
			FilePath:   filepath.Join(PlatformLogDir(), "threecorner.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base data directory.
// THREECORNER_DATA_DIR overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("THREECORNER_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Tables.Dir}
	if c.Storage.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with THREECORNER_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("THREECORNER_SCHEME"); v != "" {
		c.Input.Scheme = v
	}
	if v := os.Getenv("THREECORNER_TABLE_DIR"); v != "" {
		c.Tables.Dir = v
	}
	if v := os.Getenv("THREECORNER_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("THREECORNER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("THREECORNER_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("THREECORNER_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
		c.Metrics.Enabled = true
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// MenuRune returns the menu key as a rune, or 0 when unset.
func (c *Config) MenuRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Input.MenuKey)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// LoadTimeout returns the table load deadline.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Input.LoadTimeoutMs) * time.Millisecond
}

// MessageDuration returns how long status messages stay visible.
func (c *Config) MessageDuration() time.Duration {
	return time.Duration(c.Input.MessageDurationMs) * time.Millisecond
}

// TableDebounce returns the table watcher debounce interval.
func (c *Config) TableDebounce() time.Duration {
	return time.Duration(c.Tables.DebounceMs) * time.Millisecond
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSize = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	lc.Compress = c.Logging.Compress
	return lc, nil
}

// encodeTOML writes cfg in TOML form.
func encodeTOML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# threecorner configuration\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
