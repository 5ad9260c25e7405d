package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/duck"
	"github.com/statshare/importer/importer/pkg/meta"
	"github.com/statshare/importer/importer/pkg/metastore"
)

// TimePeriodNormalizer records the distinct canonicalized
// (period, identifier) pairs in the data file for the version.
type TimePeriodNormalizer struct {
	Log   *slog.Logger
	Store *metastore.Store
}

func (n *TimePeriodNormalizer) Normalize(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string) error {
	pairs, err := db.DistinctPairs(ctx, csvPath, "time_period", "time_identifier")
	if err != nil {
		return err
	}

	// Distinct raw pairs can canonicalize to the same period.
	seen := make(map[meta.TimePeriod]bool, len(pairs))
	periods := make([]meta.TimePeriod, 0, len(pairs))
	for _, pair := range pairs {
		tp, err := meta.NewTimePeriod(pair[0], pair[1])
		if err != nil {
			return err
		}
		if seen[tp] {
			continue
		}
		seen[tp] = true
		periods = append(periods, tp)
	}

	if err := n.Store.CreateTimePeriodMeta(ctx, versionID, periods); err != nil {
		return err
	}
	n.Log.Info("normalized time periods", "version", versionID, "periods", len(periods))
	return nil
}
