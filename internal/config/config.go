package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset" mapstructure:"dataset"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Radius     RadiusConfig     `yaml:"radius" mapstructure:"radius"`
}

// Dataset sources.
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourceFTP      = "ftp"
	SourceS3       = "s3"
	SourceMinIO    = "minio"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// DefaultHTTPCacheTTLSecs is the dataset cache TTL for http sources when
// dataset.cache_ttl_secs is not configured.
const DefaultHTTPCacheTTLSecs = 3600

// DatasetConfig selects where postal-code records are loaded from.
type DatasetConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Path   string `yaml:"path" mapstructure:"path"`
	URL    string `yaml:"url" mapstructure:"url"`
	// Format is json, csv, geonames, xlsx or xml; empty detects from the file name.
	Format string `yaml:"format" mapstructure:"format"`
	// CacheTTLSecs bounds how long a loaded dataset is reused; 0 keeps it for
	// the process lifetime and a negative value disables caching. When unset,
	// http sources use DefaultHTTPCacheTTLSecs so the ETag revalidation runs.
	CacheTTLSecs int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheSize    int `yaml:"cache_size" mapstructure:"cache_size"`

	S3       S3Config       `yaml:"s3" mapstructure:"s3"`
	MinIO    MinIOConfig    `yaml:"minio" mapstructure:"minio"`
	FTP      FTPConfig      `yaml:"ftp" mapstructure:"ftp"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// S3Config locates the dataset object in S3 or an S3-compatible store.
type S3Config struct {
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Key      string `yaml:"key" mapstructure:"key"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// MinIOConfig locates the dataset object in MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Key       string `yaml:"key" mapstructure:"key"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// FTPConfig configures FTP downloads.
type FTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// HTTPConfig configures HTTP downloads.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// SQLiteConfig points at an imported SQLite database.
type SQLiteConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

// PostgresConfig points at an imported Postgres table.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	Exporter    string  `yaml:"exporter" mapstructure:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// MonitoringConfig configures the background dataset and query-health checker.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinQueries           int     `yaml:"min_queries" mapstructure:"min_queries"`
}

// RadiusConfig configures the nearby search.
type RadiusConfig struct {
	DefaultKm float64 `yaml:"default_km" mapstructure:"default_km"`
	Workers   int     `yaml:"workers" mapstructure:"workers"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ZIPCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("dataset.source", SourceFile)
	v.SetDefault("dataset.path", "data.json")
	v.SetDefault("dataset.url", "")
	v.SetDefault("dataset.format", "")
	// No default: an unset TTL is resolved per source after unmarshal.
	_ = v.BindEnv("dataset.cache_ttl_secs")
	v.SetDefault("dataset.cache_size", 8)
	v.SetDefault("dataset.s3.key", "")
	v.SetDefault("dataset.s3.bucket", "")
	v.SetDefault("dataset.s3.region", "")
	v.SetDefault("dataset.s3.endpoint", "")
	v.SetDefault("dataset.minio.endpoint", "")
	v.SetDefault("dataset.minio.access_key", "")
	v.SetDefault("dataset.minio.secret_key", "")
	v.SetDefault("dataset.minio.bucket", "")
	v.SetDefault("dataset.minio.key", "")
	v.SetDefault("dataset.minio.use_ssl", true)
	v.SetDefault("dataset.ftp.timeout_secs", 30)
	v.SetDefault("dataset.http.user_agent", "zipcode-cli/1.0")
	v.SetDefault("dataset.http.timeout_secs", 30)
	v.SetDefault("dataset.http.max_retries", 3)
	v.SetDefault("dataset.sqlite.dsn", "zipcodes.db")
	v.SetDefault("dataset.postgres.database_url", "")
	v.SetDefault("dataset.postgres.table", "zipcodes")
	v.SetDefault("dataset.postgres.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 30)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "zipcode-cli")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_queries", 20)
	v.SetDefault("radius.default_km", 10.0)
	v.SetDefault("radius.workers", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if !v.IsSet("dataset.cache_ttl_secs") && cfg.Dataset.Source == SourceHTTP {
		cfg.Dataset.CacheTTLSecs = DefaultHTTPCacheTTLSecs
	}

	return &cfg, nil
}

// Validate checks the configuration for a command mode: "query" needs a
// usable dataset source, "serve" also needs a valid listen port.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "query":
		errs = c.validateDataset()
	case "serve":
		errs = c.validateDataset()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_ratio must be within [0,1], got %v", c.Tracing.SampleRatio))
	}
	if c.Radius.Workers < 0 {
		errs = append(errs, "radius.workers must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateDataset() []string {
	d := c.Dataset
	var errs []string
	switch d.Source {
	case SourceFile:
		if d.Path == "" {
			errs = append(errs, "dataset.path is required for file source")
		}
	case SourceHTTP:
		if !strings.HasPrefix(d.URL, "http://") && !strings.HasPrefix(d.URL, "https://") {
			errs = append(errs, fmt.Sprintf("dataset.url must be an http(s) URL, got %q", d.URL))
		}
	case SourceFTP:
		if !strings.HasPrefix(d.URL, "ftp://") {
			errs = append(errs, fmt.Sprintf("dataset.url must be an ftp URL, got %q", d.URL))
		}
	case SourceS3:
		if d.S3.Bucket == "" {
			errs = append(errs, "dataset.s3.bucket is required")
		}
		if d.S3.Key == "" {
			errs = append(errs, "dataset.s3.key is required")
		}
	case SourceMinIO:
		if d.MinIO.Endpoint == "" {
			errs = append(errs, "dataset.minio.endpoint is required")
		}
		if d.MinIO.Bucket == "" {
			errs = append(errs, "dataset.minio.bucket is required")
		}
		if d.MinIO.Key == "" {
			errs = append(errs, "dataset.minio.key is required")
		}
	case SourceSQLite:
		if d.SQLite.DSN == "" {
			errs = append(errs, "dataset.sqlite.dsn is required")
		}
	case SourcePostgres:
		if d.Postgres.DatabaseURL == "" {
			errs = append(errs, "dataset.postgres.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown dataset.source %q", d.Source))
	}

	switch d.Format {
	case "", "json", "csv", "geonames", "xlsx", "xml":
	default:
		errs = append(errs, fmt.Sprintf("unknown dataset.format %q", d.Format))
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
