package config

import (
	"strconv"
	"strings"

	"github.com/poiesic/recall/ai"
)

// Environment variables read by Load. Provider keys follow the vendors'
// conventions; everything else is prefixed with RECALL_.
const (
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvAnthropicKey     = "ANTHROPIC_API_KEY"
	EnvSlackToken       = "SLACK_BOT_TOKEN"
	EnvDBPath           = "RECALL_DB_PATH"
	EnvCollection       = "RECALL_COLLECTION"
	EnvEmbeddingBackend = "RECALL_EMBEDDING_BACKEND"
	EnvEmbeddingHost    = "RECALL_EMBEDDING_HOST"
	EnvEmbeddingModel   = "RECALL_EMBEDDING_MODEL"
	EnvChatBackend      = "RECALL_CHAT_BACKEND"
	EnvChatHost         = "RECALL_CHAT_HOST"
	EnvChatModel        = "RECALL_CHAT_MODEL"
	EnvChunkingMode     = "RECALL_CHUNKING_MODE"
	EnvHoursBack        = "RECALL_HOURS_BACK"
	EnvSyncChannels     = "RECALL_SYNC_CHANNELS"
)

// applyEnv overrides file values with non-empty environment values, then
// fills provider keys for the selected backends.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Storage.Path, EnvDBPath)
	set(&c.Storage.Collection, EnvCollection)
	set(&c.Embedding.Backend, EnvEmbeddingBackend)
	set(&c.Embedding.Host, EnvEmbeddingHost)
	set(&c.Embedding.Model, EnvEmbeddingModel)
	set(&c.Chat.Backend, EnvChatBackend)
	set(&c.Chat.Host, EnvChatHost)
	set(&c.Chat.Model, EnvChatModel)
	set(&c.Ingestion.ChunkingMode, EnvChunkingMode)
	set(&c.Slack.Token, EnvSlackToken)

	if v := getenv(EnvHoursBack); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Sync.HoursBack = n
		}
	}
	if v := getenv(EnvSyncChannels); v != "" {
		c.Sync.Channels = splitList(v)
	}

	if c.Embedding.APIKey == "" && strings.EqualFold(c.Embedding.Backend, ai.BackendOpenAI) {
		c.Embedding.APIKey = getenv(EnvOpenAIKey)
	}
	if c.Chat.APIKey == "" {
		switch strings.ToLower(c.Chat.Backend) {
		case ai.BackendOpenAI:
			c.Chat.APIKey = getenv(EnvOpenAIKey)
		case ai.BackendAnthropic:
			c.Chat.APIKey = getenv(EnvAnthropicKey)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
