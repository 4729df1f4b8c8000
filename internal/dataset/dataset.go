// Package dataset provides the record collection a lookup runs against. Sources
// load postal-code records from files, HTTP, FTP, object storage or a database;
// every load failure surfaces as a *DataUnavailableError.
package dataset

import (
	"context"
	"fmt"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// Accessor supplies the full record collection. Implementations never modify
// the returned records after handing them out, and callers must treat them as
// read-only.
type Accessor interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Record, error)
}

// DataUnavailableError reports a dataset that could not be obtained or parsed.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("dataset %s unavailable: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

func unavailable(source string, err error) error {
	if err == nil {
		return nil
	}
	return &DataUnavailableError{Source: source, Err: err}
}

// Static serves a fixed in-memory record set.
type Static struct {
	name    string
	records []model.Record
}

// NewStatic creates an accessor over records.
func NewStatic(name string, records []model.Record) *Static {
	return &Static{name: name, records: records}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Fetch(context.Context) ([]model.Record, error) {
	return s.records, nil
}
