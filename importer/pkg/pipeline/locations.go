package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/duck"
	"github.com/statshare/importer/importer/pkg/meta"
	"github.com/statshare/importer/importer/pkg/metastore"
	"github.com/statshare/importer/importer/pkg/metrics"
)

// LocationNormalizer turns raw per-row location columns into normalized,
// globally de-duplicated location options linked to the version.
type LocationNormalizer struct {
	Log   *slog.Logger
	Store *metastore.Store
}

func (n *LocationNormalizer) Normalize(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string) error {
	header, err := db.CSVColumns(ctx, csvPath)
	if err != nil {
		return err
	}

	for _, spec := range meta.LevelsPresent(header) {
		if err := n.normalizeLevel(ctx, db, versionID, csvPath, spec); err != nil {
			return err
		}
	}
	return nil
}

func (n *LocationNormalizer) normalizeLevel(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string, spec meta.LevelSpec) error {
	metaID, err := n.Store.CreateLocationMeta(ctx, versionID, spec.Level)
	if err != nil {
		return err
	}

	tuples, err := db.DistinctTuples(ctx, csvPath, spec.Columns())
	if err != nil {
		return err
	}

	options := make([]meta.LocationOption, 0, len(tuples))
	for _, tuple := range tuples {
		codes, name := tuple[:len(spec.CodeColumns)], tuple[len(tuple)-1]
		opt, err := meta.LocationOptionFromRow(spec, codes, name)
		if err != nil {
			return err
		}
		options = append(options, opt)
	}

	linked, err := n.Store.LinkLocationOptions(ctx, metaID, options)
	if err != nil {
		return err
	}
	if linked != int64(len(options)) {
		return &LinkCountError{
			Dimension: "location/" + string(spec.Level),
			Expected:  int64(len(options)),
			Actual:    linked,
		}
	}

	metrics.MetaOptionsLinked.WithLabelValues("location").Add(float64(linked))
	n.Log.Info("normalized location level", "version", versionID, "level", spec.Level, "options", len(options))
	return nil
}
