// Package config loads recall settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "recall.yaml"

type StorageConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

type EmbeddingConfig struct {
	Backend         string        `yaml:"backend"`
	Host            string        `yaml:"host,omitempty"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key,omitempty"`
	BatchSize       int           `yaml:"batch_size"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RequestInterval time.Duration `yaml:"request_interval,omitempty"`
	CacheSize       int           `yaml:"cache_size"`
}

type ChatConfig struct {
	Backend     string  `yaml:"backend"`
	Host        string  `yaml:"host,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type IngestionConfig struct {
	ChunkingMode string `yaml:"chunking_mode"`
	MaxTokens    int    `yaml:"max_tokens_per_chunk"`
	ParseWorkers int    `yaml:"parse_workers"`
}

type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

type SlackConfig struct {
	Token           string        `yaml:"token,omitempty"`
	APIURL          string        `yaml:"api_url,omitempty"`
	RequestInterval time.Duration `yaml:"request_interval"`
	MessageLimit    int           `yaml:"message_limit"`
}

type SyncConfig struct {
	HoursBack   int           `yaml:"hours_back"`
	Channels    []string      `yaml:"channels,omitempty"`
	Interval    time.Duration `yaml:"interval"`
	Cron        string        `yaml:"cron,omitempty"`
	Jitter      time.Duration `yaml:"jitter"`
	Cooldown    time.Duration `yaml:"cooldown"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// Config is the complete recall configuration. It is loaded once at start
// and treated as immutable afterwards.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Search    SearchConfig    `yaml:"search"`
	Slack     SlackConfig     `yaml:"slack"`
	Sync      SyncConfig      `yaml:"sync"`
}

// Default returns a configuration that runs locally without credentials:
// Ollama embeddings, no chat model, one chunk per message.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Path:       "./recall_db",
			Collection: "slack_messages",
		},
		Embedding: EmbeddingConfig{
			Backend:     aiDefaults.EmbeddingBackend,
			Host:        aiDefaults.EmbeddingHost,
			Model:       aiDefaults.EmbeddingModel,
			BatchSize:   aiDefaults.BatchSize,
			MaxAttempts: aiDefaults.MaxAttempts,
			CacheSize:   aiDefaults.CacheSize,
		},
		Chat: ChatConfig{
			Backend:     ai.BackendNone,
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Ingestion: IngestionConfig{
			ChunkingMode: ingestion.ModeSingle.String(),
			MaxTokens:    ingestion.DefaultMaxTokens,
			ParseWorkers: 4,
		},
		Search: SearchConfig{TopK: 10},
		Slack: SlackConfig{
			RequestInterval: 1200 * time.Millisecond,
			MessageLimit:    1000,
		},
		Sync: SyncConfig{
			HoursBack:   24,
			Interval:    30 * time.Minute,
			Cooldown:    60 * time.Second,
			StopTimeout: 5 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error. An empty path
// reads DefaultPath.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(getenv)
	return cfg, nil
}

// Save writes cfg to path as YAML. Secrets are written as-is.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// AI converts the embedding and chat sections into an ai.Config.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingBackend(c.Embedding.Backend),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithEmbeddingAPIKey(c.Embedding.APIKey),
		ai.WithChatBackend(c.Chat.Backend),
		ai.WithChatHost(c.Chat.Host),
		ai.WithChatModel(c.Chat.Model),
		ai.WithChatAPIKey(c.Chat.APIKey),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithRetry(c.Embedding.MaxAttempts, ai.DefaultBackoff()),
		ai.WithRequestInterval(c.Embedding.RequestInterval),
		ai.WithCacheSize(c.Embedding.CacheSize),
	)
}

// Completion returns the chat completion bounds.
func (c *Config) Completion() ai.CompletionOptions {
	return ai.CompletionOptions{
		MaxTokens:   c.Chat.MaxTokens,
		Temperature: c.Chat.Temperature,
	}
}

// Validate checks the settings needed by every command. Slack settings are
// checked separately by ValidateSlack since file indexing and search work
// without them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("%w: storage.path is required", core.ErrConfiguration)
	}
	if strings.TrimSpace(c.Storage.Collection) == "" {
		return fmt.Errorf("%w: storage.collection is required", core.ErrConfiguration)
	}
	if err := c.AI().Validate(); err != nil {
		return err
	}
	if c.Chat.MaxTokens < 1 {
		return fmt.Errorf("%w: chat.max_tokens must be positive", core.ErrConfiguration)
	}
	if _, err := ingestion.ParseMode(c.Ingestion.ChunkingMode); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	if c.Ingestion.MaxTokens < 1 {
		return fmt.Errorf("%w: ingestion.max_tokens_per_chunk must be positive", core.ErrConfiguration)
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("%w: search.top_k must be positive", core.ErrConfiguration)
	}
	if c.Sync.HoursBack < 1 {
		return fmt.Errorf("%w: sync.hours_back must be positive", core.ErrConfiguration)
	}
	if c.Sync.Interval <= 0 && c.Sync.Cron == "" {
		return fmt.Errorf("%w: sync.interval must be positive when no cron is set", core.ErrConfiguration)
	}
	return nil
}

// ValidateSlack checks the settings needed to talk to Slack.
func (c *Config) ValidateSlack() error {
	if c.Slack.Token == "" {
		return fmt.Errorf("%w: no Slack token configured (set SLACK_BOT_TOKEN or slack.token)", core.ErrConfiguration)
	}
	return nil
}
