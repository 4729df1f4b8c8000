package fetcher

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rotisserie/eris"
)

// Compression identifies a stream compression codec.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var compressionSuffixes = []struct {
	suffix string
	codec  Compression
}{
	{".gz", CompressionGzip},
	{".gzip", CompressionGzip},
	{".zst", CompressionZstd},
	{".zstd", CompressionZstd},
	{".lz4", CompressionLZ4},
}

// DetectCompression infers the codec from a file name and returns the name
// with the compression suffix removed.
func DetectCompression(name string) (Compression, string) {
	lower := strings.ToLower(name)
	for _, s := range compressionSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.codec, name[:len(name)-len(s.suffix)]
		}
	}
	return CompressionNone, name
}

// Decompress wraps r with a reader for codec. Closing the result releases the
// decoder but does not close r.
func Decompress(r io.Reader, codec Compression) (io.ReadCloser, error) {
	switch codec {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, eris.Wrap(err, "decompress: gzip header")
		}
		return gz, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, eris.Wrap(err, "decompress: zstd reader")
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, eris.Errorf("decompress: unsupported codec %q", codec)
	}
}
