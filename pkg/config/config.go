package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:tripscope.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings" jsonschema:"description=Embeddings provider for semantic similarity"`

	Generator GeneratorConfig `yaml:"generator" json:"generator" jsonschema:"description=LLM catalog generator configuration"`
}

// EmbeddingsConfig holds settings for the semantic similarity provider.
// When Endpoint is empty the service falls back to a local text index.
type EmbeddingsConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model    string        `yaml:"model" json:"model" jsonschema:"default=text-embedding-3-small,description=Embedding model name"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=15s,description=Request timeout"`
	Disabled bool          `yaml:"disabled" json:"disabled" jsonschema:"default=false,description=Disable semantic similarity entirely"`
}

// GeneratorConfig holds settings for AI-based catalog generation,
// used when a destination has no places or activities yet
type GeneratorConfig struct {
	Endpoint      string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey        string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model         string        `yaml:"model" json:"model" jsonschema:"default=gpt-4o-mini,description=Model name"`
	Temperature   float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.7,description=Temperature for catalog generation"`
	MaxTokens     int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=2000,description=Maximum tokens in response"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
	CacheDir      string        `yaml:"cache_dir" json:"cache_dir" jsonschema:"default=var/catalog-cache,description=Directory for generated catalog cache"`
	MaxActivities int           `yaml:"max_activities" json:"max_activities" jsonschema:"default=10,minimum=1,description=Number of activities to generate per destination"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:tripscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for embeddings
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = 15 * time.Second
	}

	// set defaults for generator
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o-mini"
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = 0.7
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 2000
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 60 * time.Second
	}
	if cfg.Generator.CacheDir == "" {
		cfg.Generator.CacheDir = "var/catalog-cache"
	}
	if cfg.Generator.MaxActivities == 0 {
		cfg.Generator.MaxActivities = 10
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate embeddings config
	if cfg.Embeddings.Endpoint != "" && cfg.Embeddings.Timeout < time.Second {
		return fmt.Errorf("embeddings timeout must be at least 1 second")
	}

	// validate generator config
	if cfg.Generator.Temperature < 0 || cfg.Generator.Temperature > 2 {
		return fmt.Errorf("generator.temperature must be between 0 and 2")
	}
	if cfg.Generator.MaxActivities < 1 {
		return fmt.Errorf("generator.max_activities must be at least 1")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetEmbeddingsConfig returns embeddings configuration
func (c *Config) GetEmbeddingsConfig() EmbeddingsConfig {
	return c.Embeddings
}

// GetGeneratorConfig returns catalog generator configuration
func (c *Config) GetGeneratorConfig() GeneratorConfig {
	return c.Generator
}
