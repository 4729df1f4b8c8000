package dataset

import (
	"context"
	"net/url"
	"path"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/fetcher"
	"github.com/sells-group/zipcode-cli/internal/model"
)

// remoteName returns the last path segment of a URL, used for compression and
// format detection.
func remoteName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}

// HTTPSource downloads the dataset over HTTP. The previous download is reused
// while the server answers 304 for its ETag.
type HTTPSource struct {
	url     string
	format  Format
	fetcher fetcher.ConditionalFetcher

	mu      sync.Mutex
	etag    string
	records []model.Record
}

// NewHTTPSource creates an accessor for rawURL.
func NewHTTPSource(rawURL string, format Format, f fetcher.ConditionalFetcher) *HTTPSource {
	return &HTTPSource{url: rawURL, format: format, fetcher: f}
}

func (s *HTTPSource) Name() string { return "http:" + s.url }

func (s *HTTPSource) Fetch(ctx context.Context) ([]model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, etag, changed, err := s.fetcher.DownloadIfChanged(ctx, s.url, s.etag)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	if !changed {
		if s.records == nil {
			return nil, unavailable(s.Name(), eris.New("http: not modified but nothing cached"))
		}
		zap.L().Debug("dataset not modified", zap.String("url", s.url), zap.String("etag", etag))
		return s.records, nil
	}
	defer body.Close() //nolint:errcheck

	records, err := Read(ctx, body, remoteName(s.url), s.format)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	if etag != "" {
		s.etag = etag
		s.records = records
	}
	return records, nil
}

// FTPSource downloads the dataset from an ftp:// URL.
type FTPSource struct {
	url     string
	format  Format
	fetcher fetcher.Fetcher
}

// NewFTPSource creates an accessor for rawURL.
func NewFTPSource(rawURL string, format Format, f fetcher.Fetcher) *FTPSource {
	return &FTPSource{url: rawURL, format: format, fetcher: f}
}

func (s *FTPSource) Name() string { return "ftp:" + s.url }

func (s *FTPSource) Fetch(ctx context.Context) ([]model.Record, error) {
	body, err := s.fetcher.Download(ctx, s.url)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	defer body.Close() //nolint:errcheck

	records, err := Read(ctx, body, remoteName(s.url), s.format)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	return records, nil
}
