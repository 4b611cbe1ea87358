package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Security    SecurityConfig    `toml:"security"`
	Retry       RetryConfig       `toml:"retry"`
	Sync        SyncConfig        `toml:"sync"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Beatport BeatportConfig `toml:"beatport"`
}

// SpotifyConfig contains Spotify API credentials and endpoint overrides.
//
// TokenURL and APIURL default to the public Spotify endpoints and exist
// so tests can point the client at a local server.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenURL     string `toml:"token_url"`
	APIURL       string `toml:"api_url"`
}

// BeatportConfig contains Beatport catalog API settings.
type BeatportConfig struct {
	Token  string `toml:"token"`
	APIURL string `toml:"api_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SecurityConfig contains the token encryption settings.
//
// EncryptionKey is process-wide configuration and is never written to the
// database alongside the data it protects.
type SecurityConfig struct {
	EncryptionKey string `toml:"encryption_key"`
}

// RetryConfig tunes the resilient request engine.
//
// All values are externally supplied so deployments can adjust retry
// budgets without code changes.
type RetryConfig struct {
	MaxRetries  int `toml:"max_retries"`
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxSleepMS  int `toml:"max_sleep_ms"`
	TimeoutMS   int `toml:"timeout_ms"`
}

// BaseDelay returns the base retry delay as a [time.Duration].
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// MaxSleep returns the rate limit sleep cap as a [time.Duration].
func (r RetryConfig) MaxSleep() time.Duration {
	return time.Duration(r.MaxSleepMS) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout as a [time.Duration].
func (r RetryConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// SyncConfig tunes the catalog sync engine.
type SyncConfig struct {
	RateLimit  float64 `toml:"rate_limit"`
	NumWorkers int     `toml:"num_workers"`
	BatchSize  int     `toml:"batch_size"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
