package metastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/statshare/importer/importer/pkg/meta"
)

// UpsertGeographicLevelMeta records the ordered set of levels present in a
// version's data file. Re-running the stage overwrites the single row.
func (s *Store) UpsertGeographicLevelMeta(ctx context.Context, versionID uuid.UUID, levels []meta.GeographicLevel) error {
	values := make([]string, 0, len(levels))
	for _, l := range levels {
		values = append(values, string(l))
	}
	_, err := s.cfg.Pool.Exec(ctx, `
		INSERT INTO geographic_level_meta (data_set_version_id, levels)
		VALUES ($1, $2)
		ON CONFLICT (data_set_version_id) DO UPDATE SET levels = EXCLUDED.levels`,
		versionID, values)
	if err != nil {
		return fmt.Errorf("failed to upsert geographic level meta: %w", err)
	}
	return nil
}

// GetGeographicLevelMeta returns the version's ordered level set.
func (s *Store) GetGeographicLevelMeta(ctx context.Context, versionID uuid.UUID) ([]meta.GeographicLevel, error) {
	var values []string
	err := s.cfg.Pool.QueryRow(ctx, `
		SELECT levels FROM geographic_level_meta WHERE data_set_version_id = $1`,
		versionID).Scan(&values)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("geographic level meta for version %s: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geographic level meta: %w", err)
	}
	levels := make([]meta.GeographicLevel, 0, len(values))
	for _, v := range values {
		levels = append(levels, meta.GeographicLevel(v))
	}
	return levels, nil
}
