package metastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/meta"
)

// CreateTimePeriodMeta persists one row per distinct (period, identifier)
// pair for the version. Time periods are per-version, never globally shared.
// Idempotent: re-running skips pairs already present.
func (s *Store) CreateTimePeriodMeta(ctx context.Context, versionID uuid.UUID, periods []meta.TimePeriod) error {
	for start := 0; start < len(periods); start += batchSize {
		batch := periods[start:min(start+batchSize, len(periods))]

		valueRows := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*2+1)
		args = append(args, versionID)
		n := 2
		for _, tp := range batch {
			valueRows = append(valueRows, fmt.Sprintf("($1, $%d, $%d)", n, n+1))
			args = append(args, tp.Period, tp.Identifier)
			n += 2
		}

		_, err := s.cfg.Pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO time_period_meta (data_set_version_id, period, identifier)
			VALUES %s
			ON CONFLICT (data_set_version_id, period, identifier) DO NOTHING`,
			strings.Join(valueRows, ", ")), args...)
		if err != nil {
			return fmt.Errorf("failed to create time period meta: %w", err)
		}
	}
	return nil
}

// GetTimePeriodsForVersion returns the version's time periods ordered by
// (period, identifier).
func (s *Store) GetTimePeriodsForVersion(ctx context.Context, versionID uuid.UUID) ([]meta.TimePeriod, error) {
	rows, err := s.cfg.Pool.Query(ctx, `
		SELECT period, identifier
		FROM time_period_meta
		WHERE data_set_version_id = $1
		ORDER BY period, identifier`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get time periods for version: %w", err)
	}
	defer rows.Close()

	var out []meta.TimePeriod
	for rows.Next() {
		var tp meta.TimePeriod
		if err := rows.Scan(&tp.Period, &tp.Identifier); err != nil {
			return nil, fmt.Errorf("failed to scan time period: %w", err)
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
