package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/statshare/importer/importer/pkg/duck"
	"github.com/statshare/importer/importer/pkg/filestore"
	"github.com/statshare/importer/importer/pkg/metastore"
	"github.com/statshare/importer/importer/pkg/metrics"
)

type Config struct {
	Logger *slog.Logger
	Store  *metastore.Store
	Files  filestore.Store
	// Container is the blob container holding version uploads.
	Container string
	// WorkRoot is the local directory holding per-version working file areas.
	WorkRoot string
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Mapper drives the mapping flow for non-first versions. Optional when
	// only first versions are imported.
	Mapper Mapper
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("metadata store is required")
	}
	if cfg.Files == nil {
		return errors.New("file store is required")
	}
	if cfg.Container == "" {
		return errors.New("container is required")
	}
	if cfg.WorkRoot == "" {
		return errors.New("work root is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Pipeline runs import attempts stage by stage. One Pipeline processes one
// import at a time; option de-duplication against the shared store is closed
// against races by the store's uniqueness constraints, not by this runner.
type Pipeline struct {
	log   *slog.Logger
	cfg   Config
	clock clockwork.Clock

	stager     *CsvStager
	levels     *GeographicLevelExtractor
	locations  *LocationNormalizer
	filters    *FilterNormalizer
	indicators *IndicatorNormalizer
	periods    *TimePeriodNormalizer
	builder    *ColumnarTableBuilder
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	store := cfg.Store
	return &Pipeline{
		log:        log,
		cfg:        cfg,
		clock:      cfg.Clock,
		stager:     &CsvStager{Log: log, Files: cfg.Files, Container: cfg.Container},
		levels:     &GeographicLevelExtractor{Log: log, Store: store},
		locations:  &LocationNormalizer{Log: log, Store: store},
		filters:    &FilterNormalizer{Log: log, Store: store},
		indicators: &IndicatorNormalizer{Log: log, Store: store},
		periods:    &TimePeriodNormalizer{Log: log, Store: store},
		builder:    &ColumnarTableBuilder{Log: log, Store: store},
	}, nil
}

type run struct {
	imp     metastore.Import
	version metastore.DataSetVersion
	work    WorkDir
}

// Run executes one import attempt end to end. Any stage error transitions
// the import to Failed, flips the version status, sets the completion
// timestamp and stops; retries are a whole-pipeline re-trigger with a fresh
// attempt, never a stage-level resume.
func (p *Pipeline) Run(ctx context.Context, importID uuid.UUID) error {
	imp, err := p.cfg.Store.GetImport(ctx, importID)
	if err != nil {
		return err
	}
	version, err := p.cfg.Store.GetDataSetVersion(ctx, imp.DataSetVersionID)
	if err != nil {
		return err
	}
	r := &run{imp: imp, version: version, work: NewWorkDir(p.cfg.WorkRoot, version.ID)}

	p.log.Info("import started", "import", imp.ID, "version", version.ID, "first_version", version.IsFirstVersion)
	if err := p.cfg.Store.SetDataSetVersionStatus(ctx, version.ID, metastore.StatusProcessing); err != nil {
		return p.fail(ctx, r, err)
	}

	for _, stage := range Stages(version.IsFirstVersion) {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, r, err)
		}
		if err := p.cfg.Store.SetImportStage(ctx, imp.ID, string(stage)); err != nil {
			return p.fail(ctx, r, err)
		}
		start := p.clock.Now()
		if err := p.runStage(ctx, stage, r); err != nil {
			return p.fail(ctx, r, fmt.Errorf("stage %s: %w", stage, err))
		}
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(p.clock.Since(start).Seconds())
	}

	if err := p.cfg.Store.CompleteImport(ctx, imp.ID, string(StageCompleted), p.clock.Now()); err != nil {
		return p.fail(ctx, r, err)
	}
	metrics.ImportsTotal.WithLabelValues("completed").Inc()
	p.log.Info("import completed", "import", imp.ID, "version", version.ID)
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, r *run) error {
	switch stage {
	case StageCopyingCsvFiles:
		return p.stager.Stage(ctx, r.work, r.version.ID)
	case StageCreatingMappings:
		if p.cfg.Mapper == nil {
			return ErrMapperRequired
		}
		if err := p.cfg.Store.SetDataSetVersionStatus(ctx, r.version.ID, metastore.StatusMapping); err != nil {
			return err
		}
		return p.cfg.Mapper.CreateMappings(ctx, r.version.ID)
	case StageAutoMapping:
		return p.cfg.Mapper.ApplyAutoMappings(ctx, r.version.ID)
	case StageManualMapping:
		if err := p.cfg.Mapper.AwaitManualMappings(ctx, r.version.ID); err != nil {
			return err
		}
		return p.cfg.Store.SetDataSetVersionStatus(ctx, r.version.ID, metastore.StatusProcessing)
	case StageImportingMetadata:
		return p.stageImportMetadata(ctx, r)
	case StageImportingData:
		return p.stageImportData(ctx, r)
	case StageWritingDataFiles:
		return p.stageWriteDataFiles(ctx, r)
	case StageCompleting:
		return p.stageComplete(ctx, r)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// stageImportMetadata runs the four dimension scans concurrently; they write
// to disjoint per-version tables and the shared option tables are protected
// by the store's uniqueness constraints.
func (p *Pipeline) stageImportMetadata(ctx context.Context, r *run) error {
	db, err := duck.New(duck.Config{Logger: p.log})
	if err != nil {
		return err
	}
	defer db.Close()

	csvPath := r.work.DataCSV()
	header, err := db.CSVColumns(ctx, csvPath)
	if err != nil {
		return err
	}
	for _, col := range []string{"time_period", "time_identifier", "geographic_level"} {
		if !slices.Contains(header, col) {
			return fmt.Errorf("data file is missing required column %q", col)
		}
	}

	metadata, err := ReadMetadataRows(ctx, db, r.work.MetaCSV())
	if err != nil {
		return err
	}

	if err := p.levels.Extract(ctx, db, r.version.ID, csvPath); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.locations.Normalize(gctx, db, r.version.ID, csvPath) })
	g.Go(func() error { return p.filters.Normalize(gctx, db, r.version.ID, csvPath, metadata) })
	g.Go(func() error { return p.indicators.Normalize(gctx, db, r.version.ID, csvPath, metadata) })
	g.Go(func() error { return p.periods.Normalize(gctx, db, r.version.ID, csvPath) })
	return g.Wait()
}

// stageImportData builds the columnar database from scratch: a stale file
// from an interrupted earlier attempt is discarded, never appended to.
func (p *Pipeline) stageImportData(ctx context.Context, r *run) error {
	for _, stale := range []string{r.work.Database(), r.work.Database() + ".wal"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale database file: %w", err)
		}
	}

	db, err := duck.New(duck.Config{Logger: p.log, Path: r.work.Database()})
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := p.builder.Build(ctx, db, r.version.ID, r.work.DataCSV())
	if err != nil {
		return err
	}
	metrics.FactRowsImported.Add(float64(count))
	return nil
}

func (p *Pipeline) stageWriteDataFiles(ctx context.Context, r *run) error {
	db, err := duck.New(duck.Config{Logger: p.log, Path: r.work.Database()})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Exec(ctx, fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)",
		duck.QuoteIdent(factTable), duck.QuoteString(r.work.Parquet()))); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	p.log.Info("wrote data file", "version", r.version.ID, "path", r.work.Parquet())
	return nil
}

// stageComplete marks the version Draft and discards the transient database.
func (p *Pipeline) stageComplete(ctx context.Context, r *run) error {
	if err := p.cfg.Store.SetDataSetVersionStatus(ctx, r.version.ID, metastore.StatusDraft); err != nil {
		return err
	}
	for _, transient := range []string{r.work.Database(), r.work.Database() + ".wal"} {
		if err := os.Remove(transient); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove transient database file: %w", err)
		}
	}
	return nil
}

// fail records the failure; it uses a detached context so a cancelled import
// still ends in a consistent Failed state.
func (p *Pipeline) fail(ctx context.Context, r *run, cause error) error {
	ctx = context.WithoutCancel(ctx)
	p.log.Error("import failed", "import", r.imp.ID, "version", r.version.ID, "error", cause)
	sentry.CaptureException(cause)

	if err := p.cfg.Store.CompleteImport(ctx, r.imp.ID, string(StageFailed), p.clock.Now()); err != nil {
		p.log.Error("failed to mark import failed", "import", r.imp.ID, "error", err)
	}
	if err := p.cfg.Store.SetDataSetVersionStatus(ctx, r.version.ID, metastore.StatusFailed); err != nil {
		p.log.Error("failed to mark version failed", "version", r.version.ID, "error", err)
	}
	metrics.ImportsTotal.WithLabelValues("failed").Inc()
	return cause
}
