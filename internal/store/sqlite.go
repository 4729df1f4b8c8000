package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS zipcodes (
	zip                  TEXT PRIMARY KEY,
	seq                  INTEGER NOT NULL,
	type                 TEXT NOT NULL DEFAULT '',
	primary_city         TEXT NOT NULL DEFAULT '',
	acceptable_cities    TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	county               TEXT NOT NULL DEFAULT '',
	timezone             TEXT NOT NULL DEFAULT '',
	area_codes           TEXT NOT NULL DEFAULT '',
	country              TEXT NOT NULL DEFAULT '',
	estimated_population TEXT NOT NULL DEFAULT '',
	latitude             REAL NOT NULL DEFAULT 0,
	longitude            REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS imports (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	imported_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_zipcodes_seq ON zipcodes(seq);
CREATE INDEX IF NOT EXISTS idx_imports_imported_at ON imports(imported_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var sqliteInsert = `INSERT INTO zipcodes (seq, ` + strings.Join(recordColumns, ", ") + `, latitude, longitude)
VALUES (?` + strings.Repeat(", ?", len(recordColumns)+2) + `)`

func (s *SQLiteStore) ReplaceRecords(ctx context.Context, source string, records []model.Record) (*Import, error) {
	return s.write(ctx, source, records, true)
}

func (s *SQLiteStore) MergeRecords(ctx context.Context, source string, records []model.Record) (*Import, error) {
	return s.write(ctx, source, records, false)
}

func (s *SQLiteStore) write(ctx context.Context, source string, records []model.Record, replace bool) (*Import, error) {
	records, dropped := uniqueByZip(source, records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	insert := sqliteInsert
	var offset int64
	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM zipcodes`); err != nil {
			return nil, eris.Wrap(err, "sqlite: clear zipcodes")
		}
	} else {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM zipcodes`).Scan(&offset); err != nil {
			return nil, eris.Wrap(err, "sqlite: next seq")
		}
		sets := make([]string, 0, len(recordColumns)+1)
		for _, c := range recordColumns[1:] {
			sets = append(sets, c+" = excluded."+c)
		}
		sets = append(sets, "latitude = excluded.latitude", "longitude = excluded.longitude")
		insert += ` ON CONFLICT(zip) DO UPDATE SET ` + strings.Join(sets, ", ")
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			offset+int64(i), r.Zip, r.Type, r.PrimaryCity, r.AcceptableCities, r.State, r.County,
			r.Timezone, r.AreaCodes, r.Country, string(r.EstimatedPopulation),
			float64(r.Latitude), float64(r.Longitude),
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert zip %s", r.Zip)
		}
	}

	imp := &Import{
		ID:         uuid.New().String(),
		Source:     source,
		Records:    len(records),
		ImportedAt: time.Now().UTC(),
		Duplicates: dropped,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imports (id, source, records, imported_at) VALUES (?, ?, ?, ?)`,
		imp.ID, imp.Source, imp.Records, imp.ImportedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert import")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return imp, nil
}

var sqliteSelect = `SELECT ` + strings.Join(recordColumns, ", ") + `, latitude, longitude FROM zipcodes`

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	records := []model.Record{}
	for rows.Next() {
		r, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func (s *SQLiteStore) GetRecord(ctx context.Context, zip string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE zip = ?`, zip)
	r, err := scanSQLiteRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) LatestImport(ctx context.Context) (*Import, error) {
	var imp Import
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, records, imported_at FROM imports ORDER BY imported_at DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Source, &imp.Records, &imp.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest import")
	}
	return &imp, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scannable) (model.Record, error) {
	var r model.Record
	var pop string
	var lat, lon float64
	err := row.Scan(&r.Zip, &r.Type, &r.PrimaryCity, &r.AcceptableCities, &r.State, &r.County,
		&r.Timezone, &r.AreaCodes, &r.Country, &pop, &lat, &lon)
	if err == sql.ErrNoRows {
		return r, err
	}
	if err != nil {
		return r, eris.Wrap(err, "sqlite: scan record")
	}
	r.EstimatedPopulation = model.Population(pop)
	r.Latitude = model.Coordinate(lat)
	r.Longitude = model.Coordinate(lon)
	return r, nil
}
