package fetcher

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `[{"zip":"80202","primary_city":"Denver"}]`

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		name      string
		wantCodec Compression
		wantBase  string
	}{
		{"zipcodes.json", CompressionNone, "zipcodes.json"},
		{"zipcodes.json.gz", CompressionGzip, "zipcodes.json"},
		{"zipcodes.CSV.GZ", CompressionGzip, "zipcodes.CSV"},
		{"zipcodes.json.zst", CompressionZstd, "zipcodes.json"},
		{"zipcodes.csv.lz4", CompressionLZ4, "zipcodes.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, base := DetectCompression(tt.name)
			assert.Equal(t, tt.wantCodec, codec)
			assert.Equal(t, tt.wantBase, base)
		})
	}
}

func readAll(t *testing.T, r io.Reader, codec Compression) string {
	t.Helper()
	rc, err := Decompress(r, codec)
	require.NoError(t, err)
	defer rc.Close()
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(out)
}

func TestDecompress_Gzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, payload, readAll(t, &buf, CompressionGzip))
}

func TestDecompress_Zstd(t *testing.T) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, payload, readAll(t, &buf, CompressionZstd))
}

func TestDecompress_LZ4(t *testing.T) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, payload, readAll(t, &buf, CompressionLZ4))
}

func TestDecompress_None(t *testing.T) {
	assert.Equal(t, payload, readAll(t, strings.NewReader(payload), CompressionNone))
}

func TestDecompress_BadGzip(t *testing.T) {
	_, err := Decompress(strings.NewReader("not gzip"), CompressionGzip)
	require.Error(t, err)
}

func TestDecompress_Unsupported(t *testing.T) {
	_, err := Decompress(strings.NewReader(payload), Compression("brotli"))
	require.Error(t, err)
}
