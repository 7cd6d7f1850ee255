package core

import "time"

// Environment variable names read by LoadConfig's env layer.
const (
	EnvContextRoot  = "MODELCORE_CONTEXT_ROOT"
	EnvSkillsRoot   = "MODELCORE_SKILLS_ROOT"
	EnvAIProvider   = "MODELCORE_AI_PROVIDER"
	EnvAIModel      = "MODELCORE_AI_MODEL"
	EnvAIAPIKey     = "MODELCORE_AI_API_KEY"
	EnvAIBaseURL    = "MODELCORE_AI_BASE_URL"
	EnvLogLevel     = "MODELCORE_LOG_LEVEL"
	EnvLogFormat    = "MODELCORE_LOG_FORMAT"
	EnvRedisURL     = "REDIS_URL"
	EnvPostgresDSN  = "MODELCORE_POSTGRES_DSN"
	EnvMaxIteration = "MODELCORE_RAOI_MAX_ITERATIONS"
)

// Default Redis key prefix and event-bus channel, mirrored against the
// RedisDB* constants in redis_client.go.
const (
	DefaultRedisKeyPrefix = "modelcore:"
	DefaultEventChannel   = "modelcore:events"
)

// DefaultEmbeddingDimension is the vector width assumed across the skill
// store when a config doesn't override it.
const DefaultEmbeddingDimension = 384

// DefaultSkillPayloadChars bounds how many runes of a skill's instructions
// the skill store keeps in each indexed document (longer instructions are
// truncated with an ellipsis).
const DefaultSkillPayloadChars = 32000

// DefaultSessionHistoryLimit is the tail-truncation point for a session's
// conversation history.
const DefaultSessionHistoryLimit = 100

// DefaultBackendTimeout bounds a single simulation backend call.
const DefaultBackendTimeout = 60 * time.Second
