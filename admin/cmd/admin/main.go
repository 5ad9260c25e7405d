package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/statshare/importer/admin/internal/admin"
	"github.com/statshare/importer/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// PostgreSQL configuration
	pgHostFlag := flag.String("pg-host", "localhost", "PostgreSQL host (or set PG_HOST env var)")
	pgPortFlag := flag.String("pg-port", "5432", "PostgreSQL port (or set PG_PORT env var)")
	pgDatabaseFlag := flag.String("pg-database", "importer", "PostgreSQL database name (or set PG_DATABASE env var)")
	pgUsernameFlag := flag.String("pg-username", "postgres", "PostgreSQL username (or set PG_USERNAME env var)")
	pgPasswordFlag := flag.String("pg-password", "", "PostgreSQL password (or set PG_PASSWORD env var)")
	pgSSLModeFlag := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode (or set PG_SSLMODE env var)")

	// Commands
	pgMigrateUpFlag := flag.Bool("pg-migrate-up", false, "Run metadata store migrations using goose")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the last metadata store migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show metadata store migration status")
	resetDBFlag := flag.Bool("reset-db", false, "Truncate all importer tables and restart sequences")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	log := logger.New(*verboseFlag)

	// Override PostgreSQL flags with environment variables if set
	if envPgHost := os.Getenv("PG_HOST"); envPgHost != "" {
		*pgHostFlag = envPgHost
	}
	if envPgPort := os.Getenv("PG_PORT"); envPgPort != "" {
		*pgPortFlag = envPgPort
	}
	if envPgDatabase := os.Getenv("PG_DATABASE"); envPgDatabase != "" {
		*pgDatabaseFlag = envPgDatabase
	}
	if envPgUsername := os.Getenv("PG_USERNAME"); envPgUsername != "" {
		*pgUsernameFlag = envPgUsername
	}
	if envPgPassword := os.Getenv("PG_PASSWORD"); envPgPassword != "" {
		*pgPasswordFlag = envPgPassword
	}
	if envPgSSLMode := os.Getenv("PG_SSLMODE"); envPgSSLMode != "" {
		*pgSSLModeFlag = envPgSSLMode
	}

	cfg := admin.PgMigrateConfig{
		Host:     *pgHostFlag,
		Port:     *pgPortFlag,
		Database: *pgDatabaseFlag,
		Username: *pgUsernameFlag,
		Password: *pgPasswordFlag,
		SSLMode:  *pgSSLModeFlag,
	}

	switch {
	case *pgMigrateUpFlag:
		return admin.PgMigrateUp(log, cfg)
	case *pgMigrateDownFlag:
		return admin.PgMigrateDown(log, cfg)
	case *pgMigrateStatusFlag:
		return admin.PgMigrateStatus(log, cfg)
	case *resetDBFlag:
		return admin.ResetDB(log, cfg, *dryRunFlag, *yesFlag)
	}

	flag.Usage()
	return nil
}
