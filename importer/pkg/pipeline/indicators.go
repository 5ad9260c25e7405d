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
)

// IndicatorNormalizer declares the version's indicator columns. Indicators
// are metadata-declared, never derived from the data, so there is no
// value-level de-duplication.
type IndicatorNormalizer struct {
	Log   *slog.Logger
	Store *metastore.Store
}

func (n *IndicatorNormalizer) Normalize(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string, metadata []MetadataRow) error {
	header, err := db.CSVColumns(ctx, csvPath)
	if err != nil {
		return err
	}

	var indicators []meta.Indicator
	for _, row := range metadata {
		if row.ColType != ColTypeIndicator || !slices.Contains(header, row.ColName) {
			continue
		}
		indicators = append(indicators, meta.Indicator{
			PublicID:      row.ColName,
			Label:         row.Label,
			Unit:          row.IndicatorUnit,
			DecimalPlaces: row.IndicatorDP,
		})
	}
	slices.SortFunc(indicators, func(a, b meta.Indicator) int {
		return strings.Compare(a.Label, b.Label)
	})

	for _, ind := range indicators {
		if _, err := n.Store.CreateIndicatorMeta(ctx, versionID, ind); err != nil {
			return err
		}
	}
	n.Log.Info("normalized indicators", "version", versionID, "indicators", len(indicators))
	return nil
}
