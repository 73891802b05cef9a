package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults. The locale set mirrors the languages the workspace offers.
const (
	DefaultRoom              = "workspace"
	DefaultSourceLocale      = "en"
	DefaultPollInterval      = 3 * time.Second
	DefaultSnapshotDebounce  = time.Second
	DefaultTranslatorTimeout = 15 * time.Second
	DefaultCacheSize         = 512
	DefaultCacheTTL          = time.Hour
)

// DefaultTargetLocales is the fixed set every chat message is translated to.
var DefaultTargetLocales = []string{"en", "es", "fr", "de", "ja", "ne"}

// Config represents the global ~/.glotpad/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Room           string `toml:"room"`

	// RelayURL is the websocket relay for the room channel. Empty selects
	// the in-process channel (single-host demo mode).
	RelayURL string `toml:"relay_url"`

	SourceLocale  string   `toml:"source_locale"`
	TargetLocales []string `toml:"target_locales"`

	PollIntervalMS     int `toml:"poll_interval_ms"`
	SnapshotDebounceMS int `toml:"snapshot_debounce_ms"`

	Translator Translator `toml:"translator"`
}

// Translator configures the translation backend and its cache.
type Translator struct {
	Endpoint  string `toml:"endpoint"`
	APIKey    string `toml:"api_key"`
	TimeoutMS int    `toml:"timeout_ms"`
	CacheSize int    `toml:"cache_size"`
	CacheTTLS int    `toml:"cache_ttl_s"`
}

// Load reads config from the given path and applies defaults.
// Returns an error if the file is missing; callers that tolerate a missing
// file should fall back to Default().
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyDefaults() {
	if c.Room == "" {
		c.Room = DefaultRoom
	}
	if c.SourceLocale == "" {
		c.SourceLocale = DefaultSourceLocale
	}
	if len(c.TargetLocales) == 0 {
		c.TargetLocales = append([]string(nil), DefaultTargetLocales...)
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = int(DefaultPollInterval / time.Millisecond)
	}
	if c.SnapshotDebounceMS <= 0 {
		c.SnapshotDebounceMS = int(DefaultSnapshotDebounce / time.Millisecond)
	}
	if c.Translator.TimeoutMS <= 0 {
		c.Translator.TimeoutMS = int(DefaultTranslatorTimeout / time.Millisecond)
	}
	if c.Translator.CacheSize <= 0 {
		c.Translator.CacheSize = DefaultCacheSize
	}
	if c.Translator.CacheTTLS <= 0 {
		c.Translator.CacheTTLS = int(DefaultCacheTTL / time.Second)
	}
}

// PollInterval returns the poll fallback interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SnapshotDebounce returns the document snapshot quiet period as a duration.
func (c *Config) SnapshotDebounce() time.Duration {
	return time.Duration(c.SnapshotDebounceMS) * time.Millisecond
}

// TranslatorTimeout returns the backend request timeout as a duration.
func (c *Config) TranslatorTimeout() time.Duration {
	return time.Duration(c.Translator.TimeoutMS) * time.Millisecond
}

// CacheTTL returns the translation cache entry lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Translator.CacheTTLS) * time.Second
}
