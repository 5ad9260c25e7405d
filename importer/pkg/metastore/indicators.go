package metastore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/meta"
)

// IndicatorRow is a stored indicator declaration for one version.
type IndicatorRow struct {
	ID        int64
	Indicator meta.Indicator
}

// CreateIndicatorMeta declares an indicator column for a version.
// Idempotent: re-creating refreshes label, unit and decimal places.
func (s *Store) CreateIndicatorMeta(ctx context.Context, versionID uuid.UUID, ind meta.Indicator) (int64, error) {
	var id int64
	err := s.cfg.Pool.QueryRow(ctx, `
		INSERT INTO indicator_meta (data_set_version_id, column_name, label, unit, decimal_places)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (data_set_version_id, column_name)
		DO UPDATE SET label = EXCLUDED.label, unit = EXCLUDED.unit, decimal_places = EXCLUDED.decimal_places
		RETURNING id`,
		versionID, ind.PublicID, ind.Label, ind.Unit, ind.DecimalPlaces).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create indicator meta for column %s: %w", ind.PublicID, err)
	}
	return id, nil
}

// GetIndicatorsForVersion returns the version's indicator declarations
// ordered by label.
func (s *Store) GetIndicatorsForVersion(ctx context.Context, versionID uuid.UUID) ([]IndicatorRow, error) {
	rows, err := s.cfg.Pool.Query(ctx, `
		SELECT id, column_name, label, unit, decimal_places
		FROM indicator_meta
		WHERE data_set_version_id = $1
		ORDER BY label`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators for version: %w", err)
	}
	defer rows.Close()

	var out []IndicatorRow
	for rows.Next() {
		var r IndicatorRow
		if err := rows.Scan(&r.ID, &r.Indicator.PublicID, &r.Indicator.Label, &r.Indicator.Unit, &r.Indicator.DecimalPlaces); err != nil {
			return nil, fmt.Errorf("failed to scan indicator row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
