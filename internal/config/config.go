package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/domain/confidence"
)

// Config holds the ragd configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Warmup     WarmupConfig     `yaml:"warmup"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres, qdrant (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"` // postgres only
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"` // 0 disables the cache
}

// GenerationConfig holds language model settings.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // bedrock, openai (default: bedrock)
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	TimeoutSec  int           `yaml:"timeout_sec"`
	Bedrock     BedrockConfig `yaml:"bedrock"`
}

// BedrockConfig holds AWS credentials and region settings.
type BedrockConfig struct {
	Region        string `yaml:"region"`
	Profile       string `yaml:"profile"`
	AssumeRoleARN string `yaml:"assume_role_arn"`
	SessionName   string `yaml:"session_name"`
	Endpoint      string `yaml:"endpoint"` // override for VPC endpoints and local mocks
}

// RetrievalConfig holds pipeline defaults.
type RetrievalConfig struct {
	DefaultCollection   string          `yaml:"default_collection"`
	TopK                int             `yaml:"top_k"`
	SimilarityThreshold *float64        `yaml:"similarity_threshold"`
	ReturnCount         int             `yaml:"return_count"`
	SourcePreviewChars  int             `yaml:"source_preview_chars"`
	ConfidenceMode      confidence.Mode `yaml:"confidence_mode"`
}

// WarmupConfig holds model warm-up settings.
type WarmupConfig struct {
	Enabled        *bool    `yaml:"enabled"` // nil = detect from ENABLE_MODEL_WARMUP and platform
	MaxAttempts    int      `yaml:"max_attempts"`
	BackoffStepSec int      `yaml:"backoff_step_sec"`
	Prompt         string   `yaml:"prompt"`
	MaxTokens      int      `yaml:"max_tokens"`
	Temperature    *float64 `yaml:"temperature"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first; it never overrides the process environment.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// generation on a cold model can take a while
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "ragd:"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "bedrock"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = domain.DefaultMaxTokens
	}
	if c.Generation.Temperature == nil {
		c.Generation.Temperature = ptr(domain.DefaultTemperature)
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Generation.Bedrock.Region == "" {
		c.Generation.Bedrock.Region = "us-east-1"
	}
	if c.Generation.Bedrock.SessionName == "" {
		c.Generation.Bedrock.SessionName = "ragd"
	}
	if c.Retrieval.DefaultCollection == "" {
		c.Retrieval.DefaultCollection = domain.DefaultCollection
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = domain.DefaultTopK
	}
	if c.Retrieval.SimilarityThreshold == nil {
		c.Retrieval.SimilarityThreshold = ptr(domain.DefaultThreshold)
	}
	if c.Retrieval.ReturnCount <= 0 {
		c.Retrieval.ReturnCount = domain.DefaultReturnCount
	}
	if c.Retrieval.SourcePreviewChars <= 0 {
		c.Retrieval.SourcePreviewChars = domain.DefaultSourcePreviewChars
	}
	if c.Retrieval.ConfidenceMode == "" {
		c.Retrieval.ConfidenceMode = confidence.Retrieval
	}
	if c.Warmup.MaxAttempts <= 0 {
		c.Warmup.MaxAttempts = 3
	}
	if c.Warmup.BackoffStepSec <= 0 {
		c.Warmup.BackoffStepSec = 10
	}
	if c.Warmup.Prompt == "" {
		c.Warmup.Prompt = "Hello, this is a warmup request."
	}
	if c.Warmup.MaxTokens <= 0 {
		c.Warmup.MaxTokens = 50
	}
	if c.Warmup.Temperature == nil {
		c.Warmup.Temperature = ptr(0.5)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis", "qdrant":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver \"postgres\"")
		}
	default:
		return fmt.Errorf("database.driver must be one of valkey, redis, postgres, qdrant, got %q", c.Database.Driver)
	}
	switch c.Generation.Provider {
	case "bedrock", "openai":
	default:
		return fmt.Errorf("generation.provider must be \"bedrock\" or \"openai\", got %q", c.Generation.Provider)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if t := *c.Generation.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %v", t)
	}
	if t := *c.Retrieval.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be between 0 and 1, got %v", t)
	}
	if c.Retrieval.TopK > domain.MaxTopK {
		return fmt.Errorf("retrieval.top_k must not exceed %d, got %d", domain.MaxTopK, c.Retrieval.TopK)
	}
	if !c.Retrieval.ConfidenceMode.IsValid() {
		return fmt.Errorf(
			"retrieval.confidence_mode must be \"retrieval\" or \"composite\", got %q",
			c.Retrieval.ConfidenceMode,
		)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
