// Package store persists imported postal-code datasets in SQLite or Postgres so
// lookups can run against a database instead of re-reading the source file.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// Import records one dataset load into a store.
type Import struct {
	ID         string    `json:"id" yaml:"id"`
	Source     string    `json:"source" yaml:"source"`
	Records    int       `json:"records" yaml:"records"`
	ImportedAt time.Time `json:"imported_at" yaml:"imported_at"`
	// Duplicates counts records skipped because their zip already appeared
	// earlier in the same import. It is reported on the returned Import only.
	Duplicates int `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// Store holds one record per zip, in dataset order.
type Store interface {
	// ReplaceRecords swaps the stored dataset for records.
	ReplaceRecords(ctx context.Context, source string, records []model.Record) (*Import, error)
	// MergeRecords inserts new zips and overwrites existing ones.
	MergeRecords(ctx context.Context, source string, records []model.Record) (*Import, error)
	ListRecords(ctx context.Context) ([]model.Record, error)
	// GetRecord returns nil when the zip is not stored.
	GetRecord(ctx context.Context, zip string) (*model.Record, error)
	// LatestImport returns nil before the first import.
	LatestImport(ctx context.Context) (*Import, error)

	Migrate(ctx context.Context) error
	Close() error
}

// recordColumns is the column order shared by both backends.
var recordColumns = []string{
	"zip", "type", "primary_city", "acceptable_cities", "state", "county",
	"timezone", "area_codes", "country", "estimated_population",
}

// uniqueByZip keeps the first record for each zip and reports how many were
// dropped. Drops are logged against source.
func uniqueByZip(source string, records []model.Record) ([]model.Record, int) {
	seen := make(map[string]bool, len(records))
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if seen[r.Zip] {
			continue
		}
		seen[r.Zip] = true
		out = append(out, r)
	}
	dropped := len(records) - len(out)
	if dropped > 0 {
		zap.L().Warn("store: skipped records with a repeated zip",
			zap.String("source", source),
			zap.Int("dropped", dropped),
		)
	}
	return out, dropped
}
