package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/statshare/importer/importer/pkg/filestore"
	"github.com/statshare/importer/importer/pkg/metastore"
	"github.com/statshare/importer/importer/pkg/metrics"
	"github.com/statshare/importer/importer/pkg/pipeline"
	"github.com/statshare/importer/importer/pkg/server"
	"github.com/statshare/importer/utils/pkg/logger"
	"github.com/statshare/importer/utils/pkg/retry"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	envFileFlag := flag.String("env-file", "", "Load environment variables from this file before reading them")

	pgHostFlag := flag.String("pg-host", "localhost", "PostgreSQL host (or set PG_HOST env var)")
	pgPortFlag := flag.String("pg-port", "5432", "PostgreSQL port (or set PG_PORT env var)")
	pgDatabaseFlag := flag.String("pg-database", "importer", "PostgreSQL database name (or set PG_DATABASE env var)")
	pgUsernameFlag := flag.String("pg-username", "postgres", "PostgreSQL username (or set PG_USERNAME env var)")
	pgPasswordFlag := flag.String("pg-password", "", "PostgreSQL password (or set PG_PASSWORD env var)")
	pgSSLModeFlag := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode (or set PG_SSLMODE env var)")
	migrateFlag := flag.Bool("migrate", false, "Run metadata store migrations before starting")

	containerFlag := flag.String("container", "releases", "Blob container holding version uploads (or set UPLOADS_CONTAINER env var)")
	localFilesFlag := flag.String("local-files-root", "", "Serve uploads from this local directory instead of S3 (dev)")
	awsRegionFlag := flag.String("aws-region", "", "AWS region for the uploads bucket (or set AWS_REGION env var)")
	workDirFlag := flag.String("work-dir", "/var/lib/importer", "Local working file area for imports (or set WORK_DIR env var)")

	listenAddrFlag := flag.String("listen-addr", "0.0.0.0:8080", "Address for the status server (or set LISTEN_ADDR env var)")
	pollIntervalFlag := flag.Duration("poll-interval", 5*time.Second, "How often to poll for queued imports")
	sentryDSNFlag := flag.String("sentry-dsn", "", "Sentry DSN for failure reporting (or set SENTRY_DSN env var)")

	flag.Parse()

	if *envFileFlag != "" {
		if err := godotenv.Load(*envFileFlag); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	log := logger.New(*verboseFlag)

	overrideFromEnv(pgHostFlag, "PG_HOST")
	overrideFromEnv(pgPortFlag, "PG_PORT")
	overrideFromEnv(pgDatabaseFlag, "PG_DATABASE")
	overrideFromEnv(pgUsernameFlag, "PG_USERNAME")
	overrideFromEnv(pgPasswordFlag, "PG_PASSWORD")
	overrideFromEnv(pgSSLModeFlag, "PG_SSLMODE")
	overrideFromEnv(containerFlag, "UPLOADS_CONTAINER")
	overrideFromEnv(awsRegionFlag, "AWS_REGION")
	overrideFromEnv(workDirFlag, "WORK_DIR")
	overrideFromEnv(listenAddrFlag, "LISTEN_ADDR")
	overrideFromEnv(sentryDSNFlag, "SENTRY_DSN")

	if *sentryDSNFlag != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: *sentryDSNFlag, Release: version}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(5 * time.Second)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	poolCfg := metastore.PoolConfig{
		Host:     *pgHostFlag,
		Port:     *pgPortFlag,
		Database: *pgDatabaseFlag,
		Username: *pgUsernameFlag,
		Password: *pgPasswordFlag,
		SSLMode:  *pgSSLModeFlag,
	}

	if *migrateFlag {
		if err := metastore.RunMigrations(log, poolCfg.ConnStr()); err != nil {
			return err
		}
	}

	var pool *pgxpool.Pool
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var err error
		pool, err = metastore.NewPool(ctx, poolCfg.ConnStr())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	store, err := metastore.NewStore(metastore.StoreConfig{Logger: log, Pool: pool})
	if err != nil {
		return err
	}

	var files filestore.Store
	if *localFilesFlag != "" {
		files, err = filestore.NewLocal(filestore.LocalConfig{Logger: log, Root: *localFilesFlag})
	} else {
		files, err = filestore.NewS3(ctx, filestore.S3Config{Logger: log, Region: *awsRegionFlag})
	}
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Config{
		Logger:    log,
		Store:     store,
		Files:     files,
		Container: *containerFlag,
		WorkRoot:  *workDirFlag,
		Clock:     clockwork.NewRealClock(),
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{Logger: log, Store: store, Addr: *listenAddrFlag})
	if err != nil {
		return err
	}
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("status server stopped", "error", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down status server", "error", err)
		}
	}()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	log.Info("importer started", "version", version, "poll_interval", *pollIntervalFlag)

	return poll(ctx, log, store, p, *pollIntervalFlag)
}

// poll drains the import queue one attempt at a time. A single worker keeps
// normalization batches serialized within the process; the store's uniqueness
// constraints protect against other processes.
func poll(ctx context.Context, log *slog.Logger, store *metastore.Store, p *pipeline.Pipeline, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
		}

		imp, err := store.NextQueuedImport(ctx, string(pipeline.StageQueued))
		if errors.Is(err, metastore.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error("failed to poll for queued imports", "error", err)
			continue
		}

		// Run failures are already recorded on the import; keep polling.
		if err := p.Run(ctx, imp.ID); err != nil {
			log.Error("import run failed", "import", imp.ID, "error", err)
		}
	}
}

func overrideFromEnv(flagValue *string, key string) {
	if v := os.Getenv(key); v != "" {
		*flagValue = v
	}
}
