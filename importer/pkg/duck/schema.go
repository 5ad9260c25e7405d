package duck

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
)

// Column is one (name, type) pair in a table schema.
type Column struct {
	Name string
	Type string
}

// TableSchema builds DDL for a table whose column set is only known at
// runtime. The fact table has one column per discovered dimension, so its
// schema cannot be fixed in advance.
type TableSchema struct {
	Name    string
	Columns []Column
}

// DDL renders the CREATE TABLE statement.
func (s TableSchema) DDL() string {
	cols := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", QuoteIdent(c.Name), c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(s.Name), strings.Join(cols, ", "))
}

// ColumnNames returns the schema's column names in positional order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// CreateTable creates the table described by the schema.
func (d *DB) CreateTable(ctx context.Context, schema TableSchema) error {
	if err := d.Exec(ctx, schema.DDL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", schema.Name, err)
	}
	return nil
}

// LoadTable creates the table and bulk-loads it through a positional
// appender. writeRowFn returns each row's values in schema column order.
func (d *DB) LoadTable(ctx context.Context, schema TableSchema, count int, writeRowFn func(int) ([]any, error)) error {
	if err := d.CreateTable(ctx, schema); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	appender, closeAppender, err := d.Appender(ctx, schema.Name)
	if err != nil {
		return err
	}

	for i := range count {
		select {
		case <-ctx.Done():
			closeAppender()
			return fmt.Errorf("context cancelled during bulk load: %w", ctx.Err())
		default:
		}

		row, err := writeRowFn(i)
		if err != nil {
			closeAppender()
			return fmt.Errorf("failed to get row %d for table %s: %w", i, schema.Name, err)
		}
		if len(row) != len(schema.Columns) {
			closeAppender()
			return fmt.Errorf("row %d has %d columns, expected exactly %d", i, len(row), len(schema.Columns))
		}
		values := make([]driver.Value, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := appender.AppendRow(values...); err != nil {
			closeAppender()
			return fmt.Errorf("failed to append row %d to table %s: %w", i, schema.Name, err)
		}
	}

	if err := closeAppender(); err != nil {
		return err
	}

	d.log.Debug("loaded table", "table", schema.Name, "rows", count)
	return nil
}

// RowCount returns the number of rows in a table.
func (d *DB) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := d.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", QuoteIdent(table))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}
