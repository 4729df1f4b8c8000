package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceFile, cfg.Dataset.Source)
	assert.Equal(t, "data.json", cfg.Dataset.Path)
	assert.Equal(t, 0, cfg.Dataset.CacheTTLSecs)
	assert.Equal(t, 8, cfg.Dataset.CacheSize)
	assert.Equal(t, "zipcode-cli/1.0", cfg.Dataset.HTTP.UserAgent)
	assert.Equal(t, 3, cfg.Dataset.HTTP.MaxRetries)
	assert.Equal(t, 30, cfg.Dataset.FTP.TimeoutSecs)
	assert.Equal(t, "zipcodes.db", cfg.Dataset.SQLite.DSN)
	assert.Equal(t, "zipcodes", cfg.Dataset.Postgres.Table)
	assert.True(t, cfg.Dataset.MinIO.UseSSL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0.001)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.InDelta(t, 10.0, cfg.Radius.DefaultKm, 0.001)
	assert.Equal(t, 4, cfg.Radius.Workers)
}

func TestLoad_HTTPSourceDefaultsCacheTTL(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ZIPCODE_DATASET_SOURCE", SourceHTTP)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPCacheTTLSecs, cfg.Dataset.CacheTTLSecs)
}

func TestLoad_HTTPSourceExplicitCacheTTL(t *testing.T) {
	t.Run("env zero keeps process lifetime", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("ZIPCODE_DATASET_SOURCE", SourceHTTP)
		t.Setenv("ZIPCODE_DATASET_CACHE_TTL_SECS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Dataset.CacheTTLSecs)
	})

	t.Run("yaml value wins", func(t *testing.T) {
		dir := chdirTemp(t)
		yaml := "dataset:\n  source: http\n  url: https://example.com/zips.json\n  cache_ttl_secs: 60\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 60, cfg.Dataset.CacheTTLSecs)
	})
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
dataset:
  source: s3
  s3:
    bucket: zips
    key: data/zips.json.gz
    region: us-west-2
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourceS3, cfg.Dataset.Source)
	assert.Equal(t, "zips", cfg.Dataset.S3.Bucket)
	assert.Equal(t, "data/zips.json.gz", cfg.Dataset.S3.Key)
	assert.Equal(t, "us-west-2", cfg.Dataset.S3.Region)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Dataset.HTTP.MaxRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
dataset:
  source: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ZIPCODE_DATASET_SOURCE", "postgres")
	t.Setenv("ZIPCODE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SourcePostgres, cfg.Dataset.Source)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ZIPCODE_SERVER_PORT", "3000")
	t.Setenv("ZIPCODE_DATASET_POSTGRES_DATABASE_URL", "postgres://localhost/zips")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/zips", cfg.Dataset.Postgres.DatabaseURL)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ZIPCODE_DATASET_PATH=from-dotenv.csv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ZIPCODE_DATASET_PATH") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.csv", cfg.Dataset.Path)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("dataset: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Dataset.Source = SourceFile
	cfg.Dataset.Path = "data.json"
	cfg.Server.Port = 8080
	cfg.Tracing.SampleRatio = 1
	return cfg
}

func TestValidate_Sources(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"file ok", func(*Config) {}, ""},
		{"file missing path", func(c *Config) { c.Dataset.Path = "" }, "dataset.path is required"},
		{"http ok", func(c *Config) { c.Dataset.Source = SourceHTTP; c.Dataset.URL = "https://example.com/zips.json" }, ""},
		{"http wrong scheme", func(c *Config) { c.Dataset.Source = SourceHTTP; c.Dataset.URL = "ftp://x/y" }, "http(s) URL"},
		{"ftp ok", func(c *Config) { c.Dataset.Source = SourceFTP; c.Dataset.URL = "ftp://example.com/zips.csv" }, ""},
		{"ftp wrong scheme", func(c *Config) { c.Dataset.Source = SourceFTP; c.Dataset.URL = "https://x" }, "ftp URL"},
		{"s3 missing", func(c *Config) { c.Dataset.Source = SourceS3 }, "dataset.s3.bucket is required; dataset.s3.key is required"},
		{"minio missing key", func(c *Config) {
			c.Dataset.Source = SourceMinIO
			c.Dataset.MinIO.Endpoint = "localhost:9000"
			c.Dataset.MinIO.Bucket = "zips"
		}, "dataset.minio.key is required"},
		{"sqlite missing dsn", func(c *Config) { c.Dataset.Source = SourceSQLite }, "dataset.sqlite.dsn is required"},
		{"postgres missing url", func(c *Config) { c.Dataset.Source = SourcePostgres }, "dataset.postgres.database_url is required"},
		{"unknown source", func(c *Config) { c.Dataset.Source = "gopher" }, `unknown dataset.source "gopher"`},
		{"unknown format", func(c *Config) { c.Dataset.Format = "parquet" }, `unknown dataset.format "parquet"`},
		{"bad sample ratio", func(c *Config) { c.Tracing.SampleRatio = 2 }, "tracing.sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("query")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	assert.NoError(t, cfg.Validate("query"))
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
