package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk upsert target.
type UpsertConfig struct {
	Table        string   // target table, optionally schema-qualified
	Columns      []string // columns in row order
	ConflictKeys []string // unique constraint columns
	UpdateCols   []string // columns overwritten on conflict; nil means every non-key column
	// ColumnTypes overrides the temp table column type for a column, e.g.
	// "geom": "bytea" when the target stores PostGIS geometry from EWKB.
	ColumnTypes map[string]string
	// Casts wraps a column in the INSERT ... SELECT, e.g.
	// "geom": "ST_GeomFromEWKB(%s)".
	Casts map[string]string
	// Replace deletes every existing row of the target inside the same
	// transaction before merging.
	Replace bool
}

// BulkUpsert stages rows in a temp table with COPY and merges them with
// INSERT ... ON CONFLICT in one transaction.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		keys := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			keys[k] = true
		}
		for _, c := range cfg.Columns {
			if !keys[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	temp := TempTableName(cfg.Table)
	if _, err := tx.Exec(ctx, createTempSQL(temp, cfg)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{temp}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}
	if cfg.Replace {
		if _, err := tx.Exec(ctx, "DELETE FROM "+identifier(cfg.Table).Sanitize()); err != nil {
			return 0, eris.Wrapf(err, "db: upsert: clear %s", cfg.Table)
		}
	}

	tag, err := tx.Exec(ctx, upsertSQL(temp, cfg, updateCols))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

// TempTableName is the staging table used by BulkUpsert for table.
func TempTableName(table string) string {
	return "_tmp_upsert_" + strings.ReplaceAll(table, ".", "_")
}

func createTempSQL(temp string, cfg UpsertConfig) string {
	if len(cfg.ColumnTypes) == 0 {
		return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
			pgx.Identifier{temp}.Sanitize(), identifier(cfg.Table).Sanitize())
	}
	// Overridden types need an explicit column list.
	cols := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		typ, ok := cfg.ColumnTypes[c]
		if !ok {
			typ = "text"
		}
		cols[i] = pgx.Identifier{c}.Sanitize() + " " + typ
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP",
		pgx.Identifier{temp}.Sanitize(), strings.Join(cols, ", "))
}

func upsertSQL(temp string, cfg UpsertConfig, updateCols []string) string {
	selects := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		selects[i] = pgx.Identifier{c}.Sanitize()
		if cast, ok := cfg.Casts[c]; ok {
			selects[i] = fmt.Sprintf(cast, selects[i])
		}
	}

	sets := make([]string, len(updateCols))
	for i, c := range updateCols {
		q := pgx.Identifier{c}.Sanitize()
		sets[i] = q + " = EXCLUDED." + q
	}

	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		identifier(cfg.Table).Sanitize(),
		quoteAndJoin(cfg.Columns),
		strings.Join(selects, ", "),
		pgx.Identifier{temp}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		conflict,
	)
}

// identifier splits a schema-qualified name.
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
