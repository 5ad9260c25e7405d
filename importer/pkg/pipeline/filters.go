package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/duck"
	"github.com/statshare/importer/importer/pkg/meta"
	"github.com/statshare/importer/importer/pkg/metastore"
	"github.com/statshare/importer/importer/pkg/metrics"
)

// FilterNormalizer declares the version's filter columns from the metadata
// file and normalizes their option labels against the global option store.
type FilterNormalizer struct {
	Log   *slog.Logger
	Store *metastore.Store
}

func (n *FilterNormalizer) Normalize(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string, metadata []MetadataRow) error {
	header, err := db.CSVColumns(ctx, csvPath)
	if err != nil {
		return err
	}

	for _, f := range declaredFilters(metadata, header) {
		if err := n.normalizeFilter(ctx, db, versionID, csvPath, f); err != nil {
			return err
		}
	}
	return nil
}

// declaredFilters selects the filter-type metadata rows whose column exists
// in the data file, ordered by label.
func declaredFilters(metadata []MetadataRow, header []string) []meta.Filter {
	var out []meta.Filter
	for _, row := range metadata {
		if row.ColType != ColTypeFilter || !slices.Contains(header, row.ColName) {
			continue
		}
		out = append(out, meta.Filter{
			PublicID: row.ColName,
			Label:    row.Label,
			Hint:     row.FilterHint,
		})
	}
	slices.SortFunc(out, func(a, b meta.Filter) int {
		return strings.Compare(a.Label, b.Label)
	})
	return out
}

func (n *FilterNormalizer) normalizeFilter(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string, f meta.Filter) error {
	metaID, err := n.Store.CreateFilterMeta(ctx, versionID, f)
	if err != nil {
		return err
	}

	values, err := db.DistinctValues(ctx, csvPath, f.PublicID)
	if err != nil {
		return err
	}

	options := make([]meta.FilterOption, 0, len(values))
	for _, v := range values {
		options = append(options, meta.NewFilterOption(v))
	}

	if err := n.Store.UpsertFilterOptions(ctx, options); err != nil {
		return err
	}
	linked, err := n.Store.LinkFilterOptions(ctx, metaID, options)
	if err != nil {
		return err
	}
	if linked != int64(len(options)) {
		return &LinkCountError{
			Dimension: "filter/" + f.PublicID,
			Expected:  int64(len(options)),
			Actual:    linked,
		}
	}

	metrics.MetaOptionsLinked.WithLabelValues("filter").Add(float64(linked))
	n.Log.Info("normalized filter", "version", versionID, "filter", f.PublicID, "options", len(options))
	return nil
}
