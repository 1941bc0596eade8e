package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Dataset sources.
const (
	SourceHTTP     = "http"
	SourceS3       = "s3"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string  `mapstructure:"BODY_LIMIT"`
	AdminAPIKey    string  `mapstructure:"ADMIN_API_KEY"`

	DatasetSource   string `mapstructure:"DATASET_SOURCE"`
	DatasetURL      string `mapstructure:"DATASET_URL"`
	DatasetFile     string `mapstructure:"DATASET_FILE"`
	DatasetS3Bucket string `mapstructure:"DATASET_S3_BUCKET"`
	DatasetS3Key    string `mapstructure:"DATASET_S3_KEY"`

	AWSRegion         string `mapstructure:"AWS_REGION"`
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	DBSchema    string `mapstructure:"DB_SCHEMA"`

	SerperAPIKey    string        `mapstructure:"SERPER_API_KEY"`
	SerperURL       string        `mapstructure:"SERPER_URL"`
	TopologyURL     string        `mapstructure:"TOPOLOGY_URL"`
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "ADMIN_API_KEY",
	"DATASET_SOURCE", "DATASET_URL", "DATASET_FILE", "DATASET_S3_BUCKET", "DATASET_S3_KEY",
	"AWS_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"SERPER_API_KEY", "SERPER_URL", "TOPOLOGY_URL", "UPSTREAM_TIMEOUT",
}

// Load reads configuration from the environment, falling back to a .env
// file in the working directory when one exists.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("DATASET_SOURCE", SourceHTTP)
	v.SetDefault("DATASET_URL", "https://docnexus-assets.s3.us-east-1.amazonaws.com/files/pancreatic-map-data-1.json")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("SERPER_URL", "https://google.serper.dev/search")
	v.SetDefault("TOPOLOGY_URL", "https://d3js.org/us-10m.v1.json")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.DatasetSource = strings.ToLower(strings.TrimSpace(cfg.DatasetSource))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected dataset source has what it needs.
func (c *Config) Validate() error {
	switch c.DatasetSource {
	case SourceHTTP:
		if c.DatasetURL == "" {
			return fmt.Errorf("DATASET_URL is required when DATASET_SOURCE is %q", SourceHTTP)
		}
	case SourceFile:
		if c.DatasetFile == "" {
			return fmt.Errorf("DATASET_FILE is required when DATASET_SOURCE is %q", SourceFile)
		}
	case SourceS3:
		if c.DatasetS3Bucket == "" || c.DatasetS3Key == "" {
			return fmt.Errorf("DATASET_S3_BUCKET and DATASET_S3_KEY are required when DATASET_SOURCE is %q", SourceS3)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATASET_SOURCE is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("DATASET_SOURCE must be one of http, s3, file, postgres, got %q", c.DatasetSource)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	return nil
}

// ValidateServe adds the checks that only matter for the HTTP server.
// Outside development the search proxy needs its API key.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.IsDev() && c.SerperAPIKey == "" {
		return fmt.Errorf("SERPER_API_KEY is required when ENV=%q", c.Env)
	}
	return nil
}

// S3Configured reports whether a bucket is set for exports or the s3 source.
func (c *Config) S3Configured() bool {
	return c.DatasetS3Bucket != ""
}
