package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/zipcode-cli/internal/db"
	"github.com/sells-group/zipcode-cli/internal/model"
)

// DefaultTable is the Postgres table holding records.
const DefaultTable = "zipcodes"

// PostgresStore implements Store on PostGIS. Coordinates live in a
// geometry(Point, 4326) column.
type PostgresStore struct {
	pool  db.Pool
	table string
}

// NewPostgres wraps a pool. An empty table selects DefaultTable.
func NewPostgres(pool db.Pool, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{pool: pool, table: table}
}

func (s *PostgresStore) tableIdent() string {
	if schema, name, ok := strings.Cut(s.table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	t := s.tableIdent()
	migration := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS %[1]s (
	zip                  TEXT PRIMARY KEY,
	seq                  BIGINT NOT NULL,
	type                 TEXT NOT NULL DEFAULT '',
	primary_city         TEXT NOT NULL DEFAULT '',
	acceptable_cities    TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	county               TEXT NOT NULL DEFAULT '',
	timezone             TEXT NOT NULL DEFAULT '',
	area_codes           TEXT NOT NULL DEFAULT '',
	country              TEXT NOT NULL DEFAULT '',
	estimated_population TEXT NOT NULL DEFAULT '',
	geom                 geometry(Point, 4326) NOT NULL
);

CREATE TABLE IF NOT EXISTS zipcode_imports (
	id          UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	records     INTEGER NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (seq);
CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING GIST (geom);
`, t,
		pgx.Identifier{"idx_" + strings.ReplaceAll(s.table, ".", "_") + "_seq"}.Sanitize(),
		pgx.Identifier{"idx_" + strings.ReplaceAll(s.table, ".", "_") + "_geom"}.Sanitize(),
	)
	_, err := s.pool.Exec(ctx, migration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// upsertColumns is the staging column order: seq, record columns, geom.
func upsertColumns() []string {
	cols := append([]string{"seq"}, recordColumns...)
	return append(cols, "geom")
}

func (s *PostgresStore) ReplaceRecords(ctx context.Context, source string, records []model.Record) (*Import, error) {
	return s.write(ctx, source, records, true)
}

func (s *PostgresStore) MergeRecords(ctx context.Context, source string, records []model.Record) (*Import, error) {
	return s.write(ctx, source, records, false)
}

func (s *PostgresStore) write(ctx context.Context, source string, records []model.Record, replace bool) (*Import, error) {
	records, dropped := uniqueByZip(source, records)

	var offset int64
	if !replace {
		if err := s.pool.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM `+s.tableIdent(),
		).Scan(&offset); err != nil {
			return nil, eris.Wrap(err, "postgres: next seq")
		}
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		point, err := EncodePoint(float64(r.Latitude), float64(r.Longitude))
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: encode zip %s", r.Zip)
		}
		rows[i] = []any{
			offset + int64(i), r.Zip, r.Type, r.PrimaryCity, r.AcceptableCities, r.State, r.County,
			r.Timezone, r.AreaCodes, r.Country, string(r.EstimatedPopulation), point,
		}
	}

	cols := upsertColumns()
	updateCols := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != "zip" && c != "seq" {
			updateCols = append(updateCols, c)
		}
	}
	columnTypes := map[string]string{"seq": "bigint", "geom": "bytea"}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        s.table,
		Columns:      cols,
		ConflictKeys: []string{"zip"},
		UpdateCols:   updateCols,
		ColumnTypes:  columnTypes,
		Casts:        map[string]string{"geom": "ST_GeomFromEWKB(%s)"},
		Replace:      replace,
	}, rows); err != nil {
		return nil, err
	}

	imp := &Import{
		ID:         uuid.New().String(),
		Source:     source,
		Records:    len(records),
		ImportedAt: time.Now().UTC(),
		Duplicates: dropped,
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO zipcode_imports (id, source, records, imported_at) VALUES ($1, $2, $3, $4)`,
		imp.ID, imp.Source, imp.Records, imp.ImportedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert import")
	}
	return imp, nil
}

func (s *PostgresStore) selectSQL() string {
	return `SELECT ` + strings.Join(recordColumns, ", ") + `, ST_AsEWKB(geom) FROM ` + s.tableIdent()
}

func (s *PostgresStore) ListRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.pool.Query(ctx, s.selectSQL()+` ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func (s *PostgresStore) GetRecord(ctx context.Context, zip string) (*model.Record, error) {
	r, err := scanPostgresRecord(s.pool.QueryRow(ctx, s.selectSQL()+` WHERE zip = $1`, zip))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) LatestImport(ctx context.Context) (*Import, error) {
	var imp Import
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, source, records, imported_at FROM zipcode_imports ORDER BY imported_at DESC LIMIT 1`,
	).Scan(&imp.ID, &imp.Source, &imp.Records, &imp.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest import")
	}
	return &imp, nil
}

func scanPostgresRecord(row pgx.Row) (model.Record, error) {
	var r model.Record
	var pop string
	var point []byte
	err := row.Scan(&r.Zip, &r.Type, &r.PrimaryCity, &r.AcceptableCities, &r.State, &r.County,
		&r.Timezone, &r.AreaCodes, &r.Country, &pop, &point)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, eris.Wrap(err, "postgres: scan record")
	}
	lat, lon, err := DecodePoint(point)
	if err != nil {
		return r, eris.Wrapf(err, "postgres: zip %s", r.Zip)
	}
	r.EstimatedPopulation = model.Population(pop)
	r.Latitude = model.Coordinate(lat)
	r.Longitude = model.Coordinate(lon)
	return r, nil
}

// EncodePoint returns the EWKB of a WGS84 point, x = longitude.
func EncodePoint(lat, lon float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "ewkb: marshal point")
	}
	return data, nil
}

// DecodePoint reads latitude and longitude from a point EWKB.
func DecodePoint(data []byte) (lat, lon float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "ewkb: unmarshal")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("ewkb: expected point, got %T", g)
	}
	return p.Y(), p.X(), nil
}
