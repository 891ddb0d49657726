// Package config loads configuration for the agent engine from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the agent engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""`
	Version  string `yaml:"-"`

	// Semantic holds locations and policy for the semantic layer.
	Semantic SemanticConfig `yaml:"semantic"`

	// Execution holds tunables for the execution guard.
	Execution ExecutionConfig `yaml:"execution"`

	// LLM holds the provider configuration for the phase orchestrator.
	LLM LLMConfig `yaml:"llm"`

	// Database configuration (for the supplemental query history audit trail).
	Database DatabaseConfig `yaml:"database"`

	// Warehouse is the governed warehouse the generated SQL runs against.
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// SemanticConfig configures the Semantic Store.
type SemanticConfig struct {
	// EntitiesDir is the directory containing one descriptor file per entity.
	EntitiesDir string `yaml:"entities_dir" env:"SEMANTIC_ENTITIES_DIR" env-default:"./semantic/entities"`
	// CatalogPath is the path to the top-level catalog document.
	CatalogPath string `yaml:"catalog_path" env:"SEMANTIC_CATALOG_PATH" env-default:"./semantic/catalog.yaml"`
	// AllowedSchemasStr is a comma-separated allow-list of warehouse schemas.
	AllowedSchemasStr string `yaml:"allowed_schemas" env:"ALLOWED_SCHEMAS" env-default:"analytics, crm, main"`
	// AllowedSchemas is parsed from AllowedSchemasStr, not read directly from config.
	AllowedSchemas []string `yaml:"-"`
}

// ExecutionConfig configures the Execution Guard.
type ExecutionConfig struct {
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"EXECUTION_STATEMENT_TIMEOUT" env-default:"20s"`
	ExplainTimeout    time.Duration `yaml:"explain_timeout" env:"EXECUTION_EXPLAIN_TIMEOUT" env-default:"10s"`
	MaxRetries        int           `yaml:"max_retries" env:"EXECUTION_MAX_RETRIES" env-default:"3"`
	BreakerThreshold  int           `yaml:"breaker_threshold" env:"EXECUTION_BREAKER_THRESHOLD" env-default:"3"`
	BreakerResetAfter time.Duration `yaml:"breaker_reset_after" env:"EXECUTION_BREAKER_RESET_AFTER" env-default:"60s"`
	CacheTTL          time.Duration `yaml:"cache_ttl" env:"EXECUTION_CACHE_TTL" env-default:"5m"`
	CacheMaxEntries   int           `yaml:"cache_max_entries" env:"EXECUTION_CACHE_MAX_ENTRIES" env-default:"100"`
	MaxRepairAttempts int           `yaml:"max_repair_attempts" env:"EXECUTION_MAX_REPAIR_ATTEMPTS" env-default:"2"`
}

// LLMConfig configures the LLM client used by the phase orchestrator.
type LLMConfig struct {
	Provider  string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"` // openai|anthropic
	Endpoint  string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model     string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey    string `yaml:"-" env:"LLM_API_KEY"`
	MaxSteps  int    `yaml:"max_steps" env:"LLM_MAX_STEPS" env-default:"100"`
}

// DatabaseConfig holds PostgreSQL configuration for the audit trail store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"agent_engine"`
	Password       string `yaml:"-" env:"PGPASSWORD"`
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"agent_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// ConnectionString returns a PostgreSQL connection string for the audit database.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// WarehouseConfig holds connection settings for the governed analytical warehouse.
type WarehouseConfig struct {
	Host     string `yaml:"host" env:"WAREHOUSE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"WAREHOUSE_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"WAREHOUSE_USER" env-default:""`
	Password string `yaml:"-" env:"WAREHOUSE_PASSWORD"`
	Database string `yaml:"database" env:"WAREHOUSE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"WAREHOUSE_SSLMODE" env-default:"require"`
}

// ConnectionString builds a PostgreSQL connection URL with escaped credentials.
// When running in Docker, localhost is resolved to host.docker.internal so the
// container can reach a warehouse running on the host machine.
func (c *WarehouseConfig) ConnectionString() string {
	host := ResolveHostForDocker(c.Host)
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		host,
		c.Port,
		url.QueryEscape(c.Database),
		c.SSLMode,
	)
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Semantic.AllowedSchemas = parseCommaList(cfg.Semantic.AllowedSchemasStr)

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{Scheme: "http", Host: "localhost:" + cfg.Port}).String()
	}

	return cfg, nil
}

// parseCommaList splits a comma-separated config value into trimmed, non-empty entries.
func parseCommaList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
