// Package duck wraps the embedded DuckDB engine used to scan source CSVs and
// build the per-import columnar data table. Every instance is a transient,
// file-backed database created for one import and discarded afterwards.
package duck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"
)

type Config struct {
	Logger *slog.Logger
	// Path is the database file. Empty runs in memory (tests only).
	Path string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// DB is one embedded database instance. The sql.DB handle serves queries;
// the connector also hands out native appender connections for bulk loads.
type DB struct {
	log       *slog.Logger
	cfg       Config
	connector *duckdb.Connector
	db        *sql.DB
}

func New(cfg Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	connector, err := duckdb.NewConnector(cfg.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database at %q: %w", cfg.Path, err)
	}

	return &DB{
		log:       cfg.Logger,
		cfg:       cfg,
		connector: connector,
		db:        sql.OpenDB(connector),
	}, nil
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close duckdb database: %w", err)
	}
	return d.connector.Close()
}

// Exec runs a statement against the database.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("duckdb exec failed: %w", err)
	}
	return nil
}

// Query runs a query against the database.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb query failed: %w", err)
	}
	return rows, nil
}

// QueryRow runs a single-row query against the database.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Appender opens a native appender for bulk-loading a table. The caller must
// Close it to flush.
func (d *DB) Appender(ctx context.Context, table string) (*duckdb.Appender, func() error, error) {
	conn, err := d.connector.Connect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open appender connection: %w", err)
	}
	appender, err := duckdb.NewAppenderFromConn(conn, "", table)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create appender for table %s: %w", table, err)
	}
	closer := func() error {
		if err := appender.Close(); err != nil {
			conn.Close()
			return fmt.Errorf("failed to close appender for table %s: %w", table, err)
		}
		return conn.Close()
	}
	return appender, closer, nil
}

// QuoteIdent quotes a SQL identifier. CSV column names are caller data, not
// trusted SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders a SQL string literal.
func QuoteString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
