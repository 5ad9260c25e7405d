package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/statshare/importer/importer/pkg/duck"
)

// Column types declared in the metadata description file.
const (
	ColTypeFilter    = "Filter"
	ColTypeIndicator = "Indicator"
)

// MetadataRow is one declared column from the metadata description file.
type MetadataRow struct {
	ColName       string
	ColType       string
	Label         string
	FilterHint    string
	IndicatorUnit string
	// IndicatorDP is nil when the file declares no decimal places.
	IndicatorDP *int
}

var requiredMetadataColumns = []string{"col_name", "col_type", "label"}
var optionalMetadataColumns = []string{"filter_hint", "indicator_unit", "indicator_dp"}

// ReadMetadataRows reads the metadata description file. The optional columns
// may be absent from the file entirely; the required ones may not.
func ReadMetadataRows(ctx context.Context, db *duck.DB, path string) ([]MetadataRow, error) {
	header, err := db.CSVColumns(ctx, path)
	if err != nil {
		return nil, err
	}
	for _, col := range requiredMetadataColumns {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("metadata file is missing required column %q", col)
		}
	}

	projections := make([]string, 0, len(requiredMetadataColumns)+len(optionalMetadataColumns))
	for _, col := range requiredMetadataColumns {
		projections = append(projections, fmt.Sprintf("coalesce(%s, '')", duck.QuoteIdent(col)))
	}
	for _, col := range optionalMetadataColumns {
		if slices.Contains(header, col) {
			projections = append(projections, fmt.Sprintf("coalesce(%s, '')", duck.QuoteIdent(col)))
		} else {
			projections = append(projections, "''")
		}
	}

	rows, err := db.Query(ctx, fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s FROM %s",
		projections[0], projections[1], projections[2],
		projections[3], projections[4], projections[5],
		duck.ReadCSVExpr(path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	defer rows.Close()

	var out []MetadataRow
	for rows.Next() {
		var r MetadataRow
		var dp string
		if err := rows.Scan(&r.ColName, &r.ColType, &r.Label, &r.FilterHint, &r.IndicatorUnit, &dp); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		if r.ColType != ColTypeFilter && r.ColType != ColTypeIndicator {
			return nil, fmt.Errorf("metadata column %q has unknown col_type %q", r.ColName, r.ColType)
		}
		if dp != "" {
			v, err := strconv.Atoi(dp)
			if err != nil {
				return nil, fmt.Errorf("metadata column %q has invalid indicator_dp %q: %w", r.ColName, dp, err)
			}
			r.IndicatorDP = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
