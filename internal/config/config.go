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
)

// Config holds the recall service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	RAG        RAGConfig        `yaml:"rag"`
	Search     SearchConfig     `yaml:"search"`
	Index      IndexConfig      `yaml:"index"`
	Auth       AuthConfig       `yaml:"auth"`
	Content    ContentConfig    `yaml:"content"`
	CORS       CORSConfig       `yaml:"cors"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys   []string `yaml:"api_keys"`   // service keys for /contents writes, empty = open
	JWTSecret string   `yaml:"jwt_secret"` // HS256 secret for tenant tokens
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CORSConfig holds browser access settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds vector index backend settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, bolt (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	BoltPath         string   `yaml:"bolt_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// UsesRedisProtocol reports whether the driver speaks RESP (redis or valkey).
func (d DatabaseConfig) UsesRedisProtocol() bool {
	return d.Driver == "redis" || d.Driver == "valkey"
}

// IndexConfig holds vector collection settings.
type IndexConfig struct {
	Name                string `yaml:"name"`
	KeyPrefix           string `yaml:"key_prefix"`
	SummaryExcerptChars int    `yaml:"summary_excerpt_chars"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	APIKey        string       `yaml:"api_key"`
	BaseURL       string       `yaml:"base_url"`
	Model         string       `yaml:"model"`
	Dimensions    int          `yaml:"dimensions"`
	MaxInputChars int          `yaml:"max_input_chars"`
	Cache         bool         `yaml:"cache"`
	Budget        BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// GenerationConfig holds generative model settings.
type GenerationConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	Language    string  `yaml:"language"`
}

// RAGConfig holds question-answering settings.
type RAGConfig struct {
	Limit            int     `yaml:"limit"`
	ScoreThreshold   float64 `yaml:"score_threshold"`
	MaxContextLength int     `yaml:"max_context_length"`
	NoResultsMessage string  `yaml:"no_results_message"`
	FailureMessage   string  `yaml:"failure_message"`
	FaultMessage     string  `yaml:"fault_message"`
}

// SearchConfig holds interactive semantic search settings.
type SearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	MaxLimit         int     `yaml:"max_limit"`
	DefaultThreshold float64 `yaml:"default_threshold"`
	MinQueryChars    int     `yaml:"min_query_chars"`
}

// ContentConfig points at the relational content store used by reindexing.
type ContentConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
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

// Parse expands env placeholders, decodes YAML, applies defaults and validates.
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60 // generation is slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	c.applyDatabaseDefaults()
	c.applyEmbeddingDefaults()
	c.applyGenerationDefaults()
	c.applyRAGDefaults()
	c.applySearchDefaults()
}

func (c *Config) applyDatabaseDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.BoltPath == "" {
		c.Database.BoltPath = "data/recall.db"
	}
	if c.Index.Name == "" {
		c.Index.Name = "content_embeddings"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "recall:"
	}
	if c.Index.SummaryExcerptChars <= 0 {
		c.Index.SummaryExcerptChars = 200
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 1000
	}
}

func (c *Config) applyGenerationDefaults() {
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = c.Embedding.APIKey
	}
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = c.Embedding.BaseURL
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 1000
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.Language == "" {
		c.Generation.Language = "English"
	}
}

func (c *Config) applyRAGDefaults() {
	if c.RAG.Limit <= 0 {
		c.RAG.Limit = 5
	}
	if c.RAG.ScoreThreshold <= 0 {
		c.RAG.ScoreThreshold = 0.3
	}
	if c.RAG.MaxContextLength <= 0 {
		c.RAG.MaxContextLength = 3000
	}
	if c.RAG.NoResultsMessage == "" {
		c.RAG.NoResultsMessage = "I could not find any saved content related to your question."
	}
	if c.RAG.FailureMessage == "" {
		c.RAG.FailureMessage = "Something went wrong while generating the answer."
	}
	if c.RAG.FaultMessage == "" {
		c.RAG.FaultMessage = "Sorry, an error occurred while processing your question."
	}
}

func (c *Config) applySearchDefaults() {
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 10
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 50
	}
	if c.Search.DefaultThreshold <= 0 {
		c.Search.DefaultThreshold = 0.6
	}
	if c.Search.MinQueryChars <= 0 {
		c.Search.MinQueryChars = 2
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "bolt":
	default:
		return fmt.Errorf("database.driver must be \"redis\", \"valkey\" or \"bolt\", got %q", c.Database.Driver)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action,
		)
	}
	if c.RAG.ScoreThreshold > 1 || c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("score thresholds must be between 0 and 1")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests and `go run` from subdirectories
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
