package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeSpec describes a staged COPY followed by INSERT ... ON CONFLICT.
type MergeSpec struct {
	Table   string   // target table, optionally schema-qualified
	Columns []string // columns carried by every row, in row order
	Keys    []string // columns of the unique constraint to merge on

	// Update lists the columns overwritten when a key already exists. Nil
	// means every non-key column. KeepExisting skips conflicting rows instead.
	Update       []string
	KeepExisting bool
}

func (m MergeSpec) validate() error {
	if m.Table == "" {
		return eris.New("db: merge: no table specified")
	}
	if len(m.Columns) == 0 {
		return eris.New("db: merge: no columns specified")
	}
	if len(m.Keys) == 0 {
		return eris.New("db: merge: no conflict keys specified")
	}
	for _, k := range m.Keys {
		if !slices.Contains(m.Columns, k) {
			return eris.Errorf("db: merge: conflict key %q is not a column", k)
		}
	}
	return nil
}

// stagingTable names the per-transaction temp table for a target.
func (m MergeSpec) stagingTable() string {
	return "_stage_" + strings.ReplaceAll(m.Table, ".", "_")
}

func (m MergeSpec) updateColumns() []string {
	if m.Update != nil {
		return m.Update
	}
	var cols []string
	for _, c := range m.Columns {
		if !slices.Contains(m.Keys, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// mergeSQL builds the statement that moves staged rows into the target.
func (m MergeSpec) mergeSQL() string {
	cols := quoteAndJoin(m.Columns)
	action := "DO NOTHING"
	if update := m.updateColumns(); !m.KeepExisting && len(update) > 0 {
		set := make([]string, len(update))
		for i, c := range update {
			q := pgx.Identifier{c}.Sanitize()
			set[i] = q + " = EXCLUDED." + q
		}
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(m.Table), cols, cols,
		pgx.Identifier{m.stagingTable()}.Sanitize(),
		quoteAndJoin(m.Keys), action)
}

// Merge copies rows into a temp table shaped like the target and merges them
// in one transaction. It returns the number of rows inserted or updated.
func Merge(ctx context.Context, pool Pool, spec MergeSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.validate(); err != nil {
		return 0, err
	}

	var affected int64
	err := InTx(ctx, pool, func(tx pgx.Tx) error {
		stage := pgx.Identifier{spec.stagingTable()}
		create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
			stage.Sanitize(), sanitizeTable(spec.Table))
		if _, err := tx.Exec(ctx, create); err != nil {
			return eris.Wrapf(err, "db: merge: stage %s", spec.Table)
		}
		if _, err := tx.CopyFrom(ctx, stage, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
			return eris.Wrapf(err, "db: merge: copy %d rows into %s", len(rows), spec.Table)
		}
		tag, err := tx.Exec(ctx, spec.mergeSQL())
		if err != nil {
			return eris.Wrapf(err, "db: merge: insert into %s", spec.Table)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// sanitizeTable quotes plain and schema-qualified table names.
func sanitizeTable(table string) string {
	schema, name, ok := strings.Cut(table, ".")
	if ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
