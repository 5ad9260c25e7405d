package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/duck"
	"github.com/statshare/importer/importer/pkg/meta"
	"github.com/statshare/importer/importer/pkg/metastore"
)

// GeographicLevelExtractor discovers the distinct set of geographic levels
// present in a data file and records it for the version. The set is always
// per-version; levels are never shared across versions.
type GeographicLevelExtractor struct {
	Log   *slog.Logger
	Store *metastore.Store
}

func (e *GeographicLevelExtractor) Extract(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string) error {
	values, err := db.DistinctValues(ctx, csvPath, "geographic_level")
	if err != nil {
		return err
	}

	levels := make([]meta.GeographicLevel, 0, len(values))
	for _, v := range values {
		level, err := meta.ParseLevelLabel(v)
		if err != nil {
			return err
		}
		levels = append(levels, level)
	}
	slices.Sort(levels)

	if err := e.Store.UpsertGeographicLevelMeta(ctx, versionID, levels); err != nil {
		return err
	}
	e.Log.Info("extracted geographic levels", "version", versionID, "levels", levels)
	return nil
}
