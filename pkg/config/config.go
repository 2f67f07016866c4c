package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for netsight-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// CookieDomain is the domain for session cookies (optional).
	// If empty, the browser scopes cookies to the request host.
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Engine metadata database (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Optional Redis cache for telemetry summaries
	Redis RedisConfig `yaml:"redis"`

	// Demo warehouse configuration
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// LLM provider configuration for the analyst agent
	AI AIConfig `yaml:"ai"`

	// Synthetic telemetry generator defaults
	Generator GeneratorConfig `yaml:"generator"`

	// Data validation settings
	Validation ValidationConfig `yaml:"validation"`

	// SemanticModelPath is the YAML semantic model loaded at startup.
	SemanticModelPath string `yaml:"semantic_model_path" env:"SEMANTIC_MODEL_PATH" env-default:"semantic/wifi_analytics.yaml"`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// Credential encryption key for stored secrets (agent API keys, warehouse passwords).
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	// Server will fail to start if this is not set.
	CredentialsKey string `yaml:"-" env:"ENGINE_CREDENTIALS_KEY"` // Secret - not in YAML
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local demos without an identity provider; callers
	// are then treated as admin.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:"https://auth.netsight.ai=https://auth.netsight.ai/.well-known/jwks.json"`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// SessionSecret signs the analyst console session cookie.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"netsight"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"netsight_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds optional Redis cache configuration.
// An empty host disables caching entirely.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// TTLSeconds bounds how long cached telemetry summaries are served.
	TTLSeconds int `yaml:"ttl_seconds" env:"REDIS_TTL_SECONDS" env-default:"60"`
}

// WarehouseConfig selects and configures the demo warehouse backend.
type WarehouseConfig struct {
	// Adapter selects the warehouse backend: "postgres" (default) runs the
	// demo schema inside the engine database, "mssql" targets an external
	// SQL Server.
	Adapter string `yaml:"adapter" env:"WAREHOUSE_ADAPTER" env-default:"postgres"`

	// RowLimit caps rows returned by governed queries.
	RowLimit int `yaml:"row_limit" env:"WAREHOUSE_ROW_LIMIT" env-default:"1000"`

	// QueryTimeoutSeconds bounds a single governed query execution.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"WAREHOUSE_QUERY_TIMEOUT_SECONDS" env-default:"30"`

	// MSSQL holds connection settings when Adapter is "mssql".
	MSSQL MSSQLConfig `yaml:"mssql"`
}

// MSSQLConfig holds SQL Server connection settings.
type MSSQLConfig struct {
	Host     string `yaml:"host" env:"MSSQL_HOST" env-default:""`
	Port     int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	User     string `yaml:"user" env:"MSSQL_USER" env-default:""`
	Password string `yaml:"-" env:"MSSQL_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"MSSQL_DATABASE" env-default:""`
	// Encrypt is the go-mssqldb encryption mode: disable, false, or true.
	Encrypt string `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"disable"`
}

// AIConfig holds LLM provider settings for the analyst agent.
type AIConfig struct {
	// Provider selects the client: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	Model    string `yaml:"model" env:"AI_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	// MaxTokens bounds completion length for SQL generation and summaries.
	MaxTokens int `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"1024"`
}

// IsAvailable returns true if an LLM endpoint is configured.
// Without one the analyst agent only serves verified queries.
func (c *AIConfig) IsAvailable() bool {
	return c.Model != "" && (c.BaseURL != "" || c.APIKey != "")
}

// GeneratorConfig holds synthetic telemetry generator defaults.
// Request parameters override these per seed run.
type GeneratorConfig struct {
	Seed            int64 `yaml:"seed" env:"GENERATOR_SEED" env-default:"42"`
	Days            int   `yaml:"days" env:"GENERATOR_DAYS" env-default:"30"`
	IntervalMinutes int   `yaml:"interval_minutes" env:"GENERATOR_INTERVAL_MINUTES" env-default:"15"`
	Networks        int   `yaml:"networks" env:"GENERATOR_NETWORKS" env-default:"8"`
	APsPerNetwork   int   `yaml:"aps_per_network" env:"GENERATOR_APS_PER_NETWORK" env-default:"25"`
	// LoadConcurrency bounds parallel fact-batch loads during seeding.
	LoadConcurrency int `yaml:"load_concurrency" env:"GENERATOR_LOAD_CONCURRENCY" env-default:"4"`
}

// ValidationConfig holds data validation settings.
type ValidationConfig struct {
	// FreshnessToleranceMinutes is how stale the newest fact row may be
	// before the freshness check fails.
	FreshnessToleranceMinutes int `yaml:"freshness_tolerance_minutes" env:"VALIDATION_FRESHNESS_TOLERANCE_MINUTES" env-default:"120"`
	// MinRowsPerTable is the row-count threshold per star-schema table.
	MinRowsPerTable int64 `yaml:"min_rows_per_table" env:"VALIDATION_MIN_ROWS_PER_TABLE" env-default:"1"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD,
// ENGINE_CREDENTIALS_KEY, SESSION_SECRET, AI_API_KEY, ...) must come from
// environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	// Load config from YAML file with environment variable overrides
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	// Parse complex fields
	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	// Validate TLS configuration
	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	// Parse JWKS endpoints from string to map
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ConnectionString returns a go-mssqldb connection URL.
func (c *MSSQLConfig) ConnectionString() string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
	}
	q := url.Values{}
	q.Set("database", c.Database)
	q.Set("encrypt", c.Encrypt)
	u.RawQuery = q.Encode()
	return u.String()
}
