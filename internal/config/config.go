// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.nexora/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model selection, temperature, max tokens, embedder
//   - Storage: PostgreSQL connection (see storage.go)
//   - Knowledge: chunking and retrieval tuning
//   - Campus: campus data API base URL and timeout
//   - Moderation: OpenAI moderation endpoint
//   - Server: HTTP bind address and bearer API key
//
// Sensitive values (API keys, passwords) are never logged; MarshalJSON
// masks them explicitly. Validation uses sentinel errors so callers can
// check with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top k")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidVectorWeight indicates the hybrid rerank weight is out of range.
	ErrInvalidVectorWeight = errors.New("invalid vector weight")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidServerPort indicates the HTTP server port is out of range.
	ErrInvalidServerPort = errors.New("invalid server port")

	// ErrInvalidCampusBaseURL indicates the campus API base URL is invalid.
	ErrInvalidCampusBaseURL = errors.New("invalid campus API base URL")

	// ErrInvalidTimezone indicates the configured timezone cannot be loaded.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses vector(768).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultModelName is the default chat model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultTimezone anchors datetime context when the client sends none.
	DefaultTimezone = "Asia/Colombo"

	// DefaultHistoryLimit is how many recent messages seed the model context.
	DefaultHistoryLimit = 20
)

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON(). When adding new
// sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
	MaxTurns    int     `mapstructure:"max_turns" json:"max_turns"`

	// Conversation history configuration
	HistoryLimit int `mapstructure:"history_limit" json:"history_limit"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Knowledge base configuration
	EmbedderModel       string  `mapstructure:"embedder_model" json:"embedder_model"`
	KnowledgeDir        string  `mapstructure:"knowledge_dir" json:"knowledge_dir"`
	ChunkSize           int     `mapstructure:"chunk_size" json:"chunk_size"`
	RetrievalTopK       int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	VectorWeight        float64 `mapstructure:"vector_weight" json:"vector_weight"`

	// Campus data API configuration
	CampusBaseURL   string `mapstructure:"campus_base_url" json:"campus_base_url"`
	CampusTimeoutMS int    `mapstructure:"campus_timeout_ms" json:"campus_timeout_ms"`

	// Datetime context configuration
	Timezone string `mapstructure:"timezone" json:"timezone"`

	// Moderation configuration
	OpenAIAPIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	ModerationModel string `mapstructure:"moderation_model" json:"moderation_model"`

	// HTTP server configuration
	ServerHost string `mapstructure:"server_host" json:"server_host"`
	ServerPort int    `mapstructure:"server_port" json:"server_port"`
	APIKey     string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".nexora")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes precedence over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("max_turns", 5)
	viper.SetDefault("history_limit", DefaultHistoryLimit)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "nexora")
	viper.SetDefault("postgres_password", "nexora_dev_password")
	viper.SetDefault("postgres_db_name", "nexora")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Knowledge base defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("knowledge_dir", "./knowledge_base")
	viper.SetDefault("chunk_size", 8192)
	viper.SetDefault("retrieval_top_k", 3)
	viper.SetDefault("similarity_threshold", 0.5)
	viper.SetDefault("vector_weight", 0.7)

	// Campus data API defaults
	viper.SetDefault("campus_base_url", "http://localhost:8001")
	viper.SetDefault("campus_timeout_ms", 10000)

	// Datetime defaults
	viper.SetDefault("timezone", DefaultTimezone)

	// Moderation defaults
	viper.SetDefault("moderation_model", "omni-moderation-latest")

	// Server defaults
	viper.SetDefault("server_host", "0.0.0.0")
	viper.SetDefault("server_port", 8000)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets come only from the environment:
//  1. GEMINI_API_KEY - read directly by Genkit, validated in Validate()
//  2. OPENAI_API_KEY - OpenAI moderation endpoint (optional; keyword fallback)
//  3. NEXORA_API_KEY - bearer key protecting the HTTP API
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("api_key", "NEXORA_API_KEY")

	mustBind("model_name", "NEXORA_MODEL_NAME")
	mustBind("knowledge_dir", "NEXORA_KNOWLEDGE_DIR")
	mustBind("campus_base_url", "NEXORA_CAMPUS_BASE_URL")
	mustBind("timezone", "NEXORA_TIMEZONE")
	mustBind("server_host", "NEXORA_SERVER_HOST")
	mustBind("server_port", "NEXORA_SERVER_PORT")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
	// Validation checks its presence in Validate().
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets show
// the first and last 2 characters for debug utility.
//
// This defends against accidental logging of real secrets, nothing more.
// If logs are compromised, rotate the secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - OpenAIAPIKey
//   - APIKey
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash". A name already containing "/" is
// returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// ServerAddr returns the host:port the HTTP server binds to.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
