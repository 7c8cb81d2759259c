package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"

	"github.com/CTAG07/Echolalia/pkg/markov"
)

const (
	envAccessToken = "ECHOLALIA_ACCESS_TOKEN"
	envAPIKey      = "ECHOLALIA_API_KEY"
)

// ServerConfig holds the configuration for the admin API and storage.
type ServerConfig struct {
	ApiAddr            string `json:"api_addr" toml:"api_addr"`
	ApiKey             string `json:"api_key,omitempty" toml:"api_key,omitempty"`
	LogLevel           string `json:"log_level" toml:"log_level"`
	DataDir            string `json:"data_dir" toml:"data_dir"`
	CorpusDatabasePath string `json:"corpus_database_path" toml:"corpus_database_path"`
}

// ModelConfig holds the settings of the Markov chain.
type ModelConfig struct {
	Order           int    `json:"order" toml:"order"`
	Granularity     string `json:"granularity" toml:"granularity"`
	ExclusionMarker string `json:"exclusion_marker" toml:"exclusion_marker"`
}

// BotConfig holds the posting behavior.
type BotConfig struct {
	MinLength        int    `json:"min_length" toml:"min_length"`
	MaxLength        int    `json:"max_length" toml:"max_length"`
	FetchIntervalSec int    `json:"fetch_interval_sec" toml:"fetch_interval_sec"`
	PostIntervalSec  int    `json:"post_interval_sec" toml:"post_interval_sec"`
	ReplyIntervalSec int    `json:"reply_interval_sec" toml:"reply_interval_sec"`
	Visibility       string `json:"visibility" toml:"visibility"`
}

// FediConfig holds the settings for the fediverse account the bot learns from and posts as.
type FediConfig struct {
	InstanceURL       string  `json:"instance_url" toml:"instance_url"`
	AccessToken       string  `json:"access_token,omitempty" toml:"access_token,omitempty"`
	Account           string  `json:"account" toml:"account"`
	MaxPages          int     `json:"max_pages" toml:"max_pages"`
	RequestsPerSecond float64 `json:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `json:"burst" toml:"burst"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config" toml:"server_config"`
	Model  *ModelConfig  `json:"model_config" toml:"model_config"`
	Bot    *BotConfig    `json:"bot_config" toml:"bot_config"`
	Fedi   *FediConfig   `json:"fedi_config" toml:"fedi_config"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			ApiAddr:            "127.0.0.1:7280",
			LogLevel:           "info",
			DataDir:            "./data",
			CorpusDatabasePath: "./data/echolalia_corpus.db",
		},
		Model: &ModelConfig{
			Order:           2,
			Granularity:     "word",
			ExclusionMarker: markov.DefaultExclusionMarker,
		},
		Bot: &BotConfig{
			MinLength:        8,
			MaxLength:        500,
			FetchIntervalSec: 900,
			PostIntervalSec:  3600,
			ReplyIntervalSec: 60,
			Visibility:       "unlisted",
		},
		Fedi: &FediConfig{
			MaxPages:          25,
			RequestsPerSecond: 1,
			Burst:             5,
		},
	}
}

// FetchInterval returns the fetch interval as a duration.
func (c *BotConfig) FetchInterval() time.Duration {
	return time.Duration(c.FetchIntervalSec) * time.Second
}

// PostInterval returns the post interval as a duration.
func (c *BotConfig) PostInterval() time.Duration {
	return time.Duration(c.PostIntervalSec) * time.Second
}

// ReplyInterval returns the interval between mention checks as a duration.
func (c *BotConfig) ReplyInterval() time.Duration {
	return time.Duration(c.ReplyIntervalSec) * time.Second
}

// isTOML reports whether the config at path is TOML rather than JSON.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// encodeConfig serializes the config in the format implied by path.
func encodeConfig(path string, config *Config) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(config, "", "  ")
}

// LoadConfig reads the configuration from a JSON or TOML file at the given
// path. If the file doesn't exist, it creates one with default values.
// Secrets from the environment override the file.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = encodeConfig(path, config)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Log a warning instead of failing, as the bot can still run with defaults.
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			applyEnv(config)
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(path) {
		if _, err = toml.Decode(string(file), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	applyEnv(config)
	return config, nil
}

// applyEnv overrides secrets with values from the environment, if set.
func applyEnv(config *Config) {
	if v := os.Getenv(envAccessToken); v != "" {
		config.Fedi.AccessToken = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		config.Server.ApiKey = v
	}
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server == nil || c.Model == nil || c.Bot == nil || c.Fedi == nil {
		return fmt.Errorf("config is missing a section")
	}
	if c.Model.Order <= 0 {
		return fmt.Errorf("model order must be positive, got %d", c.Model.Order)
	}
	if _, ok := markov.TokenizerByName(c.Model.Granularity); !ok {
		return fmt.Errorf("unknown model granularity '%s'", c.Model.Granularity)
	}
	if c.Bot.MinLength < 0 || c.Bot.MaxLength < 0 {
		return fmt.Errorf("bot lengths must not be negative")
	}
	return nil
}

// Level maps the configured log level name to a slog.Level.
func (c *ServerConfig) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
