// Package config provides configuration management for the interlock
// runtime. Configuration is loaded from environment variables with
// sensible defaults. Supports multiple environments: dev, sandbox, audit,
// prod.
// In dev/test: loads .env files via godotenv
// In prod/staging: can load from YAML files
// A CONFIG_FILE that loads successfully is used as is (env vars do not
// override its values); otherwise env vars are applied over defaults.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// Environment constants
	EnvDevelopment = "dev"
	EnvSandbox     = "sandbox"
	EnvAudit       = "audit"
	EnvProduction  = "prod"

	// DefaultMaxPayloadChars is the audit truncation cap (§4.2, §6).
	DefaultMaxPayloadChars = 20000
)

// Config holds all configuration for the interlock runtime.
type Config struct {
	AppEnv   string         `mapstructure:"APP_ENV"`
	Server   ServerConfig   `mapstructure:",squash"`
	Database DatabaseConfig `mapstructure:",squash"`
	Redis    RedisConfig    `mapstructure:",squash"`
	Tracing  TracingConfig  `mapstructure:",squash"`
	Chain    ChainConfig    `mapstructure:",squash"`
	Vault    VaultConfig    `mapstructure:",squash"`
}

// ServerConfig holds HTTP server configuration for the demo service.
type ServerConfig struct {
	Port string `mapstructure:"SERVER_PORT"`
	Host string `mapstructure:"SERVER_HOST"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the three
// persisted relations (idempotency, audit, policy).
type DatabaseConfig struct {
	Host     string `mapstructure:"DB_HOST"`
	Port     string `mapstructure:"DB_PORT"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"DB_SSLMODE"`
}

// RedisConfig holds Redis connection configuration, used only for the
// audit-stream fan-out side channel (§4.11) — never for rate limiting or
// idempotency, both of which are local/relational per spec.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

// TracingConfig controls correlation-id/trace-id extraction. No exporter
// pipeline is configured here; Enabled only gates whether the demo server
// starts a tracer provider for local development.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"OTEL_ENABLED"`
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// ChainConfig is the enumerated configuration surface from §6.
type ChainConfig struct {
	// Enabled disables the entire chain when false — every stage becomes a
	// transparent pass-through.
	Enabled bool `mapstructure:"CHAIN_ENABLED"`

	// MaxPayloadChars is the audit truncation cap (§4.2).
	MaxPayloadChars int `mapstructure:"CHAIN_MAX_PAYLOAD_CHARS"`

	// ExcludePackages is a list of type-name prefixes bypassing all stages.
	ExcludePackages []string `mapstructure:"CHAIN_EXCLUDE_PACKAGES"`

	Security SecurityConfig `mapstructure:",squash"`

	// IdempotencyCleanupCron is a robfig/cron/v3 schedule expression for the
	// periodic idempotency sweep (§4.3.2, default "every 10 minutes").
	IdempotencyCleanupCron string `mapstructure:"CHAIN_IDEMPOTENCY_CLEANUP_CRON"`
}

// SecurityConfig holds the API-key hashing parameters (§4.8, §6).
type SecurityConfig struct {
	APIKeyPepper    string `mapstructure:"SECURITY_API_KEY_PEPPER"`
	APIKeyAlgorithm string `mapstructure:"SECURITY_API_KEY_ALGORITHM"`
}

// VaultConfig holds HashiCorp Vault configuration for secret management.
type VaultConfig struct {
	Enabled    bool   `mapstructure:"VAULT_ENABLED"`
	Addr       string `mapstructure:"VAULT_ADDR"`
	Token      string `mapstructure:"VAULT_TOKEN"`
	SecretPath string `mapstructure:"VAULT_SECRET_PATH"`
}

// Load reads configuration from environment variables. Returns error if
// required variables are missing or invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "interlock")
	v.SetDefault("CHAIN_ENABLED", true)
	v.SetDefault("CHAIN_MAX_PAYLOAD_CHARS", DefaultMaxPayloadChars)
	v.SetDefault("CHAIN_EXCLUDE_PACKAGES", []string{"runtime.", "net/http."})
	v.SetDefault("SECURITY_API_KEY_ALGORITHM", "SHA-256")
	v.SetDefault("CHAIN_IDEMPOTENCY_CLEANUP_CRON", "@every 10m")
	v.SetDefault("VAULT_ENABLED", false)
	v.SetDefault("VAULT_ADDR", "http://localhost:8200")
	v.SetDefault("VAULT_SECRET_PATH", "secret/data/interlock")

	v.AutomaticEnv()

	envVars := []string{
		"APP_ENV",
		"SERVER_PORT", "SERVER_HOST",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"OTEL_ENABLED", "OTEL_SERVICE_NAME",
		"CHAIN_ENABLED", "CHAIN_MAX_PAYLOAD_CHARS", "CHAIN_EXCLUDE_PACKAGES",
		"SECURITY_API_KEY_PEPPER", "SECURITY_API_KEY_ALGORITHM",
		"CHAIN_IDEMPOTENCY_CLEANUP_CRON",
		"VAULT_ENABLED", "VAULT_ADDR", "VAULT_TOKEN", "VAULT_SECRET_PATH",
	}
	for _, env := range envVars {
		_ = v.BindEnv(env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig loads configuration with support for .env files and YAML.
// If CONFIG_FILE names a YAML file that loads successfully, that
// configuration is returned as is and environment variables do not
// override it; otherwise environment variables are applied over defaults.
func LoadConfig(env string) (*Config, error) {
	if env == EnvDevelopment || env == "test" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", envFile, err)
			}
		}
		_ = godotenv.Load()
	}

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		cfg, err := loadFromYAML(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load YAML config from %s, falling back to env vars\n", configFile)
		} else {
			return cfg, nil
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		parsed, err := url.Parse(dbURL)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL format: %w", err)
		}
		if parsed.User != nil {
			_ = os.Setenv("DB_USER", parsed.User.Username())
			if password, ok := parsed.User.Password(); ok {
				_ = os.Setenv("DB_PASSWORD", password)
			}
		}
		if parsed.Hostname() != "" {
			_ = os.Setenv("DB_HOST", parsed.Hostname())
		}
		if parsed.Port() != "" {
			_ = os.Setenv("DB_PORT", parsed.Port())
		}
		if len(parsed.Path) > 1 {
			_ = os.Setenv("DB_NAME", parsed.Path[1:])
		}
		if sslmode := parsed.Query().Get("sslmode"); sslmode != "" {
			_ = os.Setenv("DB_SSLMODE", sslmode)
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		parsed, err := url.Parse(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL format: %w", err)
		}
		if parsed.Hostname() != "" {
			_ = os.Setenv("REDIS_HOST", parsed.Hostname())
		}
		if parsed.Port() != "" {
			_ = os.Setenv("REDIS_PORT", parsed.Port())
		}
		if parsed.User != nil {
			if password, ok := parsed.User.Password(); ok {
				_ = os.Setenv("REDIS_PASSWORD", password)
			}
		}
		if len(parsed.Path) > 1 {
			if db, err := strconv.Atoi(parsed.Path[1:]); err == nil {
				_ = os.Setenv("REDIS_DB", strconv.Itoa(db))
			}
		}
	}

	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if env == EnvDevelopment || env == "test" {
		if err := validateVaultPlaceholders(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func loadFromYAML(filename string) (*Config, error) {
	if strings.Contains(filename, "..") {
		return nil, fmt.Errorf("invalid config file path: path traversal detected")
	}

	data, err := os.ReadFile(filename) // #nosec G304 -- filename is from CONFIG_FILE env var, validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if cfg.AppEnv != "" {
		_ = os.Setenv("APP_ENV", cfg.AppEnv)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateVaultPlaceholders validates that Vault placeholders follow the
// expected format: vault://secret/path/to/key.
func validateVaultPlaceholders(cfg *Config) error {
	checkPlaceholder := func(value, fieldName string) error {
		if !strings.HasPrefix(value, "vault://") {
			return nil
		}
		parts := strings.Split(value, "://")
		if len(parts) != 2 || parts[1] == "" {
			return fmt.Errorf("%s has invalid Vault placeholder format (expected vault://secret/path/to/key)", fieldName)
		}
		return nil
	}

	if err := checkPlaceholder(cfg.Database.Password, "DB_PASSWORD"); err != nil {
		return err
	}
	if err := checkPlaceholder(cfg.Chain.Security.APIKeyPepper, "SECURITY_API_KEY_PEPPER"); err != nil {
		return err
	}
	return checkPlaceholder(cfg.Redis.Password, "REDIS_PASSWORD")
}

// Validate checks if the configuration is valid.
func Validate(cfg *Config) error {
	validEnvs := map[string]bool{
		EnvDevelopment: true,
		EnvSandbox:     true,
		EnvAudit:       true,
		EnvProduction:  true,
		"test":         true,
	}
	if !validEnvs[cfg.AppEnv] {
		return fmt.Errorf("invalid environment '%s': must be one of [dev, sandbox, audit, prod, test]", cfg.AppEnv)
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.Port == "" {
		return fmt.Errorf("database port is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if cfg.Chain.MaxPayloadChars <= 0 {
		return fmt.Errorf("chain max payload chars must be positive")
	}

	if cfg.Chain.Security.APIKeyAlgorithm == "" {
		return fmt.Errorf("security api key algorithm is required")
	}

	if cfg.Chain.IdempotencyCleanupCron == "" {
		return fmt.Errorf("idempotency cleanup cron schedule is required")
	}

	return nil
}

// GetDatabaseURL returns the PostgreSQL connection string.
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address in host:port format.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == EnvDevelopment }
func (c *Config) IsProduction() bool  { return c.AppEnv == EnvProduction }
func (c *Config) IsSandbox() bool     { return c.AppEnv == EnvSandbox }
func (c *Config) IsAudit() bool       { return c.AppEnv == EnvAudit }

// IdempotencyCleanupInterval parses the configured cron schedule into a
// plain duration when it follows the "@every <duration>" shorthand,
// falling back to 10 minutes otherwise. Used only for logging; the cleanup
// job itself schedules the raw cron expression via robfig/cron.
func (c *Config) IdempotencyCleanupInterval() time.Duration {
	const prefix = "@every "
	if strings.HasPrefix(c.Chain.IdempotencyCleanupCron, prefix) {
		if d, err := time.ParseDuration(strings.TrimPrefix(c.Chain.IdempotencyCleanupCron, prefix)); err == nil {
			return d
		}
	}
	return 10 * time.Minute
}

// LoadSecretsFromVault loads sensitive configuration from HashiCorp Vault,
// overriding ENV-based secrets with Vault values. Call after Load().
func (c *Config) LoadSecretsFromVault(ctx context.Context, vaultClient interface{}) error {
	type secretGetter interface {
		GetSecret(ctx context.Context, path, key, envFallback string) (string, error)
		Enabled() bool
	}

	if vaultClient == nil {
		return nil
	}

	client, ok := vaultClient.(secretGetter)
	if !ok {
		return fmt.Errorf("invalid vault client type")
	}
	if !client.Enabled() {
		return nil
	}

	basePath := c.Vault.SecretPath

	dbPassword, err := client.GetSecret(ctx, basePath+"/database", "password", "DB_PASSWORD")
	if err != nil {
		return fmt.Errorf("failed to load database password from vault: %w", err)
	}
	c.Database.Password = dbPassword

	pepper, err := client.GetSecret(ctx, basePath+"/apikey", "pepper", "SECURITY_API_KEY_PEPPER")
	if err != nil {
		return fmt.Errorf("failed to load api key pepper from vault: %w", err)
	}
	c.Chain.Security.APIKeyPepper = pepper

	if err := Validate(c); err != nil {
		return fmt.Errorf("config validation failed after loading vault secrets: %w", err)
	}

	return nil
}
