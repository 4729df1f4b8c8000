package dataset

import (
	"context"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// RecordLister is a database holding imported records.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]model.Record, error)
}

// StoreSource reads records previously imported into a database.
type StoreSource struct {
	name  string
	store RecordLister
}

// NewStoreSource creates an accessor over a record store.
func NewStoreSource(name string, store RecordLister) *StoreSource {
	return &StoreSource{name: name, store: store}
}

func (s *StoreSource) Name() string { return s.name }

func (s *StoreSource) Fetch(ctx context.Context) ([]model.Record, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, unavailable(s.name, err)
	}
	return records, nil
}
