package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DataSetVersionStatus is the externally visible state of a version. Status
// transitions are the primary signal of pipeline progress.
type DataSetVersionStatus string

const (
	StatusProcessing DataSetVersionStatus = "Processing"
	StatusMapping    DataSetVersionStatus = "Mapping"
	StatusDraft      DataSetVersionStatus = "Draft"
	StatusPublished  DataSetVersionStatus = "Published"
	StatusFailed     DataSetVersionStatus = "Failed"
)

// ErrNotFound is returned when a version or import does not exist.
var ErrNotFound = errors.New("not found")

// DataSetVersion is one version of one logical data set.
type DataSetVersion struct {
	ID             uuid.UUID
	DataSetID      uuid.UUID
	Status         DataSetVersionStatus
	IsFirstVersion bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Import is one execution attempt for a DataSetVersion. Only the most recent
// attempt is active; earlier ones are history.
type Import struct {
	ID               uuid.UUID
	DataSetVersionID uuid.UUID
	InstanceID       uuid.UUID
	Stage            string
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *Store) CreateDataSetVersion(ctx context.Context, v DataSetVersion) error {
	_, err := s.cfg.Pool.Exec(ctx, `
		INSERT INTO data_set_versions (id, data_set_id, status, is_first_version)
		VALUES ($1, $2, $3, $4)`,
		v.ID, v.DataSetID, v.Status, v.IsFirstVersion)
	if err != nil {
		return fmt.Errorf("failed to create data set version: %w", err)
	}
	return nil
}

func (s *Store) GetDataSetVersion(ctx context.Context, id uuid.UUID) (DataSetVersion, error) {
	var v DataSetVersion
	err := s.cfg.Pool.QueryRow(ctx, `
		SELECT id, data_set_id, status, is_first_version, created_at, updated_at
		FROM data_set_versions WHERE id = $1`, id).
		Scan(&v.ID, &v.DataSetID, &v.Status, &v.IsFirstVersion, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DataSetVersion{}, fmt.Errorf("data set version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return DataSetVersion{}, fmt.Errorf("failed to get data set version: %w", err)
	}
	return v, nil
}

func (s *Store) SetDataSetVersionStatus(ctx context.Context, id uuid.UUID, status DataSetVersionStatus) error {
	tag, err := s.cfg.Pool.Exec(ctx, `
		UPDATE data_set_versions SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("failed to set data set version status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("data set version %s: %w", id, ErrNotFound)
	}
	s.log.Info("data set version status changed", "version", id, "status", status)
	return nil
}

func (s *Store) CreateImport(ctx context.Context, imp Import) error {
	_, err := s.cfg.Pool.Exec(ctx, `
		INSERT INTO data_set_version_imports (id, data_set_version_id, instance_id, stage)
		VALUES ($1, $2, $3, $4)`,
		imp.ID, imp.DataSetVersionID, imp.InstanceID, imp.Stage)
	if err != nil {
		return fmt.Errorf("failed to create import: %w", err)
	}
	return nil
}

func (s *Store) GetImport(ctx context.Context, id uuid.UUID) (Import, error) {
	return s.getImport(ctx, "id", id)
}

// GetImportByInstanceID resolves the import attempt for an orchestrator run.
func (s *Store) GetImportByInstanceID(ctx context.Context, instanceID uuid.UUID) (Import, error) {
	return s.getImport(ctx, "instance_id", instanceID)
}

func (s *Store) getImport(ctx context.Context, col string, id uuid.UUID) (Import, error) {
	var imp Import
	err := s.cfg.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, data_set_version_id, instance_id, stage, completed_at, created_at, updated_at
		FROM data_set_version_imports WHERE %s = $1`, col), id).
		Scan(&imp.ID, &imp.DataSetVersionID, &imp.InstanceID, &imp.Stage, &imp.CompletedAt, &imp.CreatedAt, &imp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Import{}, fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Import{}, fmt.Errorf("failed to get import: %w", err)
	}
	return imp, nil
}

// SetImportStage persists a stage transition. Transitions are written before
// the stage body runs so the pipeline is resumable at stage granularity.
func (s *Store) SetImportStage(ctx context.Context, id uuid.UUID, stage string) error {
	tag, err := s.cfg.Pool.Exec(ctx, `
		UPDATE data_set_version_imports SET stage = $2, updated_at = now() WHERE id = $1`,
		id, stage)
	if err != nil {
		return fmt.Errorf("failed to set import stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	s.log.Info("import stage changed", "import", id, "stage", stage)
	return nil
}

// CompleteImport finalizes an attempt, successful or not.
func (s *Store) CompleteImport(ctx context.Context, id uuid.UUID, stage string, completedAt time.Time) error {
	tag, err := s.cfg.Pool.Exec(ctx, `
		UPDATE data_set_version_imports
		SET stage = $2, completed_at = $3, updated_at = now()
		WHERE id = $1`,
		id, stage, completedAt)
	if err != nil {
		return fmt.Errorf("failed to complete import: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import %s: %w", id, ErrNotFound)
	}
	return nil
}

// NextQueuedImport returns the oldest import still in the given stage, or
// ErrNotFound when the queue is empty.
func (s *Store) NextQueuedImport(ctx context.Context, stage string) (Import, error) {
	var imp Import
	err := s.cfg.Pool.QueryRow(ctx, `
		SELECT id, data_set_version_id, instance_id, stage, completed_at, created_at, updated_at
		FROM data_set_version_imports
		WHERE stage = $1 AND completed_at IS NULL
		ORDER BY created_at
		LIMIT 1`, stage).
		Scan(&imp.ID, &imp.DataSetVersionID, &imp.InstanceID, &imp.Stage, &imp.CompletedAt, &imp.CreatedAt, &imp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Import{}, ErrNotFound
	}
	if err != nil {
		return Import{}, fmt.Errorf("failed to get next queued import: %w", err)
	}
	return imp, nil
}
