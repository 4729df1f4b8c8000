package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/config"
	"github.com/sells-group/zipcode-cli/internal/dataset"
	"github.com/sells-group/zipcode-cli/internal/db"
	"github.com/sells-group/zipcode-cli/internal/fetcher"
	"github.com/sells-group/zipcode-cli/internal/store"
)

// noopClose is returned by sources that hold no resources.
func noopClose() {}

// openAccessor builds the configured dataset accessor, wrapped in the
// in-memory cache unless caching is disabled. The returned func releases any
// database handle.
func openAccessor(ctx context.Context, c *config.Config) (dataset.Accessor, func(), error) {
	a, closeFn, err := openSource(ctx, c.Dataset)
	if err != nil {
		return nil, nil, err
	}

	if c.Dataset.CacheTTLSecs < 0 {
		return a, closeFn, nil
	}
	cache := dataset.NewCache(c.Dataset.CacheSize, time.Duration(c.Dataset.CacheTTLSecs)*time.Second)
	return cache.Wrap(a), closeFn, nil
}

// openSource builds the uncached accessor for d.Source.
func openSource(ctx context.Context, d config.DatasetConfig) (dataset.Accessor, func(), error) {
	format, err := dataset.ParseFormat(d.Format)
	if err != nil {
		return nil, nil, err
	}

	switch d.Source {
	case config.SourceFile:
		return dataset.NewFileSource(d.Path, format), noopClose, nil

	case config.SourceHTTP:
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  d.HTTP.UserAgent,
			Timeout:    time.Duration(d.HTTP.TimeoutSecs) * time.Second,
			MaxRetries: d.HTTP.MaxRetries,
		})
		return dataset.NewHTTPSource(d.URL, format, f), noopClose, nil

	case config.SourceFTP:
		f := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(d.FTP.TimeoutSecs) * time.Second,
		})
		return dataset.NewFTPSource(d.URL, format, f), noopClose, nil

	case config.SourceS3:
		client, err := dataset.NewS3Client(ctx, dataset.S3Options{
			Region:   d.S3.Region,
			Endpoint: d.S3.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return dataset.NewObjectSource("s3", d.S3.Bucket, d.S3.Key, format, dataset.NewS3Reader(client)), noopClose, nil

	case config.SourceMinIO:
		reader, err := dataset.NewMinIOReader(dataset.MinIOOptions{
			Endpoint:  d.MinIO.Endpoint,
			AccessKey: d.MinIO.AccessKey,
			SecretKey: d.MinIO.SecretKey,
			UseSSL:    d.MinIO.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		return dataset.NewObjectSource("minio", d.MinIO.Bucket, d.MinIO.Key, format, reader), noopClose, nil

	case config.SourceSQLite, config.SourcePostgres:
		st, err := openStore(ctx, d.Source, d)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := st.Close(); err != nil {
				zap.L().Warn("close store", zap.Error(err))
			}
		}
		return dataset.NewStoreSource(d.Source, st), closeFn, nil

	default:
		return nil, nil, eris.Errorf("dataset: unknown source %q", d.Source)
	}
}

// openStore connects to the SQLite or Postgres store named by kind.
func openStore(ctx context.Context, kind string, d config.DatasetConfig) (store.Store, error) {
	switch kind {
	case config.SourceSQLite:
		st, err := store.NewSQLite(d.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.SourcePostgres:
		pool, err := db.Connect(ctx, d.Postgres.DatabaseURL, d.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool, d.Postgres.Table), nil
	default:
		return nil, eris.Errorf("store: unknown backend %q (want sqlite or postgres)", kind)
	}
}
