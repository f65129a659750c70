package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendS3    = "s3"
	BackendNhost = "nhost"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	OrgName       string   `mapstructure:"ORG_NAME"`
	TimeZone      string   `mapstructure:"TIME_ZONE"`

	DBStatementTimeoutSeconds int `mapstructure:"DB_STATEMENT_TIMEOUT_SECONDS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	GraphQLEndpoint    string `mapstructure:"GRAPHQL_ENDPOINT"`
	GraphQLAdminSecret string `mapstructure:"GRAPHQL_ADMIN_SECRET"`
	GraphQLDefaultRole string `mapstructure:"GRAPHQL_DEFAULT_ROLE"`

	StorageBackend       string `mapstructure:"STORAGE_BACKEND"`
	NhostStorageURL      string `mapstructure:"NHOST_STORAGE_URL"`
	NhostAuthURL         string `mapstructure:"NHOST_AUTH_URL"`
	NhostServiceEmail    string `mapstructure:"NHOST_SERVICE_EMAIL"`
	NhostServicePassword string `mapstructure:"NHOST_SERVICE_PASSWORD"`
	PatientDocsBucket    string `mapstructure:"PATIENT_DOCS_BUCKET"`
	S3Region             string `mapstructure:"S3_REGION"`
	S3Endpoint           string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey          string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey          string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket             string `mapstructure:"S3_BUCKET"`

	DraftDBPath      string `mapstructure:"DRAFT_DB_PATH"`
	DraftTTLHours    int    `mapstructure:"DRAFT_TTL_HOURS"`
	DocRetentionDays int    `mapstructure:"DOC_RETENTION_DAYS"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_STATEMENT_TIMEOUT_SECONDS", "DEFAULT_TENANT",
	"CORS_ORIGINS", "ORG_NAME", "TIME_ZONE",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"GRAPHQL_ENDPOINT", "GRAPHQL_ADMIN_SECRET", "GRAPHQL_DEFAULT_ROLE",
	"STORAGE_BACKEND", "NHOST_STORAGE_URL", "NHOST_AUTH_URL", "NHOST_SERVICE_EMAIL",
	"NHOST_SERVICE_PASSWORD", "PATIENT_DOCS_BUCKET",
	"S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET",
	"DRAFT_DB_PATH", "DRAFT_TTL_HOURS", "DOC_RETENTION_DAYS",
}

// Load reads the environment, optionally overlaid by .env style files.
// Files never override variables that are already set.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_STATEMENT_TIMEOUT_SECONDS", 30)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ORG_NAME", "Responda")
	v.SetDefault("TIME_ZONE", "Europe/Berlin")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("GRAPHQL_DEFAULT_ROLE", "user")
	v.SetDefault("STORAGE_BACKEND", BackendS3)
	v.SetDefault("PATIENT_DOCS_BUCKET", "default")
	v.SetDefault("S3_REGION", "eu-central-1")
	v.SetDefault("DRAFT_DB_PATH", "drafts.db")
	v.SetDefault("DRAFT_TTL_HOURS", 72)
	v.SetDefault("DOC_RETENTION_DAYS", 90)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env in the working directory is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RequireDatabase is checked by the commands that talk to Postgres.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Validate checks the settings needed to serve requests. Outside development
// an issuer or signing key must be configured so JWTs are verified, and the
// selected storage backend must be complete.
func (c *Config) Validate() error {
	if err := c.RequireDatabase(); err != nil {
		return err
	}
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if (c.GraphQLEndpoint == "") != (c.GraphQLAdminSecret == "") {
		return fmt.Errorf("GRAPHQL_ENDPOINT and GRAPHQL_ADMIN_SECRET must be set together")
	}

	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	case BackendNhost:
		if c.NhostStorageURL == "" || c.NhostAuthURL == "" {
			return fmt.Errorf("NHOST_STORAGE_URL and NHOST_AUTH_URL are required when STORAGE_BACKEND=nhost")
		}
		if c.NhostServiceEmail == "" || c.NhostServicePassword == "" {
			return fmt.Errorf("NHOST_SERVICE_EMAIL and NHOST_SERVICE_PASSWORD are required when STORAGE_BACKEND=nhost")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendS3, BackendNhost, c.StorageBackend)
	}

	if c.DraftTTLHours < 0 || c.DocRetentionDays < 0 {
		return fmt.Errorf("DRAFT_TTL_HOURS and DOC_RETENTION_DAYS must not be negative")
	}
	return nil
}
