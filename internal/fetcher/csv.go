// Package fetcher downloads dataset files over HTTP and FTP and decodes the
// archive, compression, CSV and JSON layers they arrive in.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	// HasHeader sends the first row on the returned header channel instead of
	// the row channel.
	HasHeader bool
	// FieldsPerRecord mirrors csv.Reader; 0 means variable.
	FieldsPerRecord int
	Comment         rune
	LazyQuotes      bool
	TrimSpace       bool
}

// CSVStream is the output of StreamCSV. Header receives at most one row and is
// closed before the first data row is sent. Rows and Errs are closed when
// processing completes.
type CSVStream struct {
	Header <-chan []string
	Rows   <-chan []string
	Errs   <-chan error
}

// StreamCSV reads CSV records from r and sends them on channels. The caller must
// drain Header (when HasHeader is set) and Rows.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) CSVStream {
	headerCh := make(chan []string, 1)
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(rowCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = opts.FieldsPerRecord
		if opts.FieldsPerRecord == 0 {
			reader.FieldsPerRecord = -1
		}

		headerSent := !opts.HasHeader
		if headerSent {
			close(headerCh)
		}
		defer func() {
			if !headerSent {
				close(headerCh)
			}
		}()

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if !headerSent {
				headerCh <- record
				close(headerCh)
				headerSent = true
				continue
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return CSVStream{Header: headerCh, Rows: rowCh, Errs: errCh}
}
