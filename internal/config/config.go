// Package config loads the service configuration from a YAML file with
// environment-variable overrides, following the loader pattern used
// throughout the teacher repo's internal packages.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment is the deployment tier. production rejects localhost store
// URIs so a misconfigured deploy fails loudly instead of silently pointing
// at a developer's laptop.
type Environment string

const (
	EnvLocal      Environment = "local"
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
)

// RateLimitTiers are the per-hour quotas. DefaultRateLimitTiers holds the
// fixed values from spec.md §4.13; a rate_limit_tiers block in the config
// file replaces them. The query service reads them from this one place.
type RateLimitTiers struct {
	Public     int `yaml:"public"`
	Registered int `yaml:"registered"`
	Premium    int `yaml:"premium"`
}

// DefaultRateLimitTiers returns the fixed quotas from spec.md §4.13.
func DefaultRateLimitTiers() RateLimitTiers {
	return RateLimitTiers{Public: 100, Registered: 1000, Premium: 999_999}
}

// Config is the full set of recognized options (spec.md §6).
type Config struct {
	ProjectID string `yaml:"project_id"`

	MongoDBURI           string `yaml:"mongodb_uri"`
	MongoDBDatabase      string `yaml:"mongodb_database"`
	ConnectionTimeoutMS  int    `yaml:"connection_timeout_ms"`
	MaxPoolSize          int    `yaml:"max_pool_size"`

	QdrantURL    string `yaml:"qdrant_url"`
	QdrantAPIKey string `yaml:"qdrant_api_key"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`
	LLMMaxTokens    int    `yaml:"llm_max_tokens"`

	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	EmbeddingModel   string `yaml:"embedding_model"`

	Environment Environment `yaml:"environment"`

	RateLimitTiers RateLimitTiers `yaml:"rate_limit_tiers"`

	PromptDir string `yaml:"prompt_dir"`

	APIKeysFile string `yaml:"api_keys_file"`

	HTTPAddr string `yaml:"http_addr"`
}

func defaults() Config {
	return Config{
		ConnectionTimeoutMS: 5000,
		MaxPoolSize:         10,
		LLMModel:            "claude-sonnet-4-5",
		LLMMaxTokens:        4096,
		EmbeddingModel:      "embed-v1",
		Environment:         EnvLocal,
		RateLimitTiers:      DefaultRateLimitTiers(),
		PromptDir:           "prompts",
		APIKeysFile:         "api_keys.yaml",
		HTTPAddr:            ":8080",
	}
}

// Load reads filename (if present) and layers environment variable
// overrides on top, the way the teacher's root config.go reads YAML then
// lets callers patch specific fields from the environment.
func Load(filename string) (Config, error) {
	cfg := defaults()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", filename, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", filename, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	strField(&cfg.ProjectID, "PROJECT_ID")
	strField(&cfg.MongoDBURI, "MONGODB_URI")
	strField(&cfg.MongoDBDatabase, "MONGODB_DATABASE")
	strField(&cfg.QdrantURL, "QDRANT_URL")
	strField(&cfg.QdrantAPIKey, "QDRANT_API_KEY")
	strField(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	strField(&cfg.LLMModel, "LLM_MODEL")
	strField(&cfg.PromptDir, "PROMPT_DIR")
	strField(&cfg.EmbeddingBaseURL, "EMBEDDING_BASE_URL")
	strField(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	strField(&cfg.APIKeysFile, "API_KEYS_FILE")
	strField(&cfg.HTTPAddr, "HTTP_ADDR")

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	intField(&cfg.LLMMaxTokens, "LLM_MAX_TOKENS")
	intField(&cfg.ConnectionTimeoutMS, "CONNECTION_TIMEOUT_MS")
	intField(&cfg.MaxPoolSize, "MAX_POOL_SIZE")
}

func strField(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func intField(dst *int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate enforces the production-safety rule: a production deploy must
// not point at a localhost store.
func (c Config) Validate() error {
	if c.Environment == EnvProduction {
		if isLocalhost(c.MongoDBURI) {
			return fmt.Errorf("config: mongodb_uri must not be localhost in production")
		}
		if isLocalhost(c.QdrantURL) {
			return fmt.Errorf("config: qdrant_url must not be localhost in production")
		}
	}
	return nil
}

func isLocalhost(uri string) bool {
	lower := strings.ToLower(uri)
	return strings.Contains(lower, "localhost") || strings.Contains(lower, "127.0.0.1")
}
