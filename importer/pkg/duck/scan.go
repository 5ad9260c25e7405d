package duck

import (
	"context"
	"fmt"
	"strings"
)

// ReadCSVExpr renders the table expression for streaming a CSV. Everything is
// read as text; typing happens when values are joined against typed lookups.
func ReadCSVExpr(path string) string {
	return fmt.Sprintf("read_csv(%s, header = true, all_varchar = true)", QuoteString(path))
}

// CSVColumns returns a CSV's header columns in file order.
func (d *DB) CSVColumns(ctx context.Context, path string) ([]string, error) {
	rows, err := d.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", ReadCSVExpr(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header from %s: %w", path, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv columns from %s: %w", path, err)
	}
	return cols, rows.Err()
}

// CSVRowCount returns the number of data rows in a CSV.
func (d *DB) CSVRowCount(ctx context.Context, path string) (int64, error) {
	var count int64
	err := d.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", ReadCSVExpr(path))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count csv rows in %s: %w", path, err)
	}
	return count, nil
}

// textCol projects a CSV column as text with empties normalized: read_csv
// surfaces empty fields as NULL, and the scans treat NULL and '' the same.
func textCol(name string) string {
	return fmt.Sprintf("coalesce(%s, '')", QuoteIdent(name))
}

// DistinctValues streams the distinct non-empty values of one CSV column,
// ordered.
func (d *DB) DistinctValues(ctx context.Context, path, column string) ([]string, error) {
	col := textCol(column)
	rows, err := d.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT %s FROM %s WHERE %s <> '' ORDER BY %s`,
		col, ReadCSVExpr(path), col, col))
	if err != nil {
		return nil, fmt.Errorf("failed to scan distinct values of %s: %w", column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DistinctTuples streams the distinct projections of the given CSV columns,
// ordered by the full tuple. Rows where every projected column is empty do
// not carry the dimension and are skipped; individually empty values come
// back as empty strings for the caller to treat as absent.
func (d *DB) DistinctTuples(ctx context.Context, path string, columns []string) ([][]string, error) {
	quoted := make([]string, 0, len(columns))
	nonEmpty := make([]string, 0, len(columns))
	for _, c := range columns {
		quoted = append(quoted, textCol(c))
		nonEmpty = append(nonEmpty, textCol(c)+" <> ''")
	}
	cols := strings.Join(quoted, ", ")

	rows, err := d.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT %s FROM %s WHERE %s ORDER BY %s`,
		cols, ReadCSVExpr(path), strings.Join(nonEmpty, " OR "), cols))
	if err != nil {
		return nil, fmt.Errorf("failed to scan distinct tuples of (%s): %w", strings.Join(columns, ", "), err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		tuple := make([]string, len(columns))
		ptrs := make([]any, len(columns))
		for i := range tuple {
			ptrs[i] = &tuple[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan distinct tuple: %w", err)
		}
		out = append(out, tuple)
	}
	return out, rows.Err()
}

// DistinctPairs streams the distinct (a, b) column pairs, ordered, with no
// emptiness filtering; both values are required on every row.
func (d *DB) DistinctPairs(ctx context.Context, path, a, b string) ([][2]string, error) {
	colA, colB := textCol(a), textCol(b)
	rows, err := d.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT %s, %s FROM %s ORDER BY %s, %s`,
		colA, colB, ReadCSVExpr(path), colA, colB))
	if err != nil {
		return nil, fmt.Errorf("failed to scan distinct (%s, %s) pairs: %w", a, b, err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var pair [2]string
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return nil, fmt.Errorf("failed to scan distinct pair: %w", err)
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}
