package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/duck"
	"github.com/statshare/importer/importer/pkg/meta"
	"github.com/statshare/importer/importer/pkg/metastore"
)

// factTable is the single fact table every columnar database carries.
const factTable = "data"

// ColumnarTableBuilder materializes the per-version columnar database: small
// dimension lookup tables plus one fact row per source CSV row, with every
// dimension value resolved to a local integer key.
type ColumnarTableBuilder struct {
	Log   *slog.Logger
	Store *metastore.Store
}

// Build loads the lookups and runs the single bulk join-insert. The database
// must be fresh; re-runs start from a new file. Returns the fact row count.
func (b *ColumnarTableBuilder) Build(ctx context.Context, db *duck.DB, versionID uuid.UUID, csvPath string) (int64, error) {
	header, err := db.CSVColumns(ctx, csvPath)
	if err != nil {
		return 0, err
	}

	locations, err := b.Store.GetLocationOptionsForVersion(ctx, versionID)
	if err != nil {
		return 0, err
	}
	filters, err := b.Store.GetFiltersForVersion(ctx, versionID)
	if err != nil {
		return 0, err
	}
	filterOptions, err := b.Store.GetFilterOptionsForVersion(ctx, versionID)
	if err != nil {
		return 0, err
	}
	indicators, err := b.Store.GetIndicatorsForVersion(ctx, versionID)
	if err != nil {
		return 0, err
	}
	timePeriods, err := b.Store.GetTimePeriodsForVersion(ctx, versionID)
	if err != nil {
		return 0, err
	}

	if err := b.loadLocationLookup(ctx, db, locations); err != nil {
		return 0, err
	}
	if err := b.loadFilterLookup(ctx, db, filterOptions); err != nil {
		return 0, err
	}
	if err := b.loadIndicatorLookup(ctx, db, indicators); err != nil {
		return 0, err
	}
	if err := b.loadTimePeriodLookup(ctx, db, csvPath, timePeriods); err != nil {
		return 0, err
	}

	levels := meta.LevelsPresent(header)
	if err := db.CreateTable(ctx, factTableSchema(levels, filters, indicators)); err != nil {
		return 0, err
	}
	if err := db.Exec(ctx, factInsertSQL(csvPath, levels, filters, indicators)); err != nil {
		return 0, fmt.Errorf("failed to build fact table: %w", err)
	}

	factCount, err := db.RowCount(ctx, factTable)
	if err != nil {
		return 0, err
	}
	csvCount, err := db.CSVRowCount(ctx, csvPath)
	if err != nil {
		return 0, err
	}
	if factCount != csvCount {
		return 0, fmt.Errorf("fact table has %d rows but the source file has %d; a row's time period could not be resolved", factCount, csvCount)
	}

	b.Log.Info("built columnar table", "version", versionID, "rows", factCount)
	return factCount, nil
}

// Lookup ids are small integers local to this database, assigned in fetch
// order; they are not the global option ids.

func (b *ColumnarTableBuilder) loadLocationLookup(ctx context.Context, db *duck.DB, locations []metastore.LocationOptionRow) error {
	schema := duck.TableSchema{
		Name: "locations",
		Columns: []duck.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "level", Type: "VARCHAR"},
			{Name: "public_id", Type: "VARCHAR"},
			{Name: "label", Type: "VARCHAR"},
			{Name: "code", Type: "VARCHAR"},
			{Name: "old_code", Type: "VARCHAR"},
			{Name: "urn", Type: "VARCHAR"},
			{Name: "laestab", Type: "VARCHAR"},
			{Name: "ukprn", Type: "VARCHAR"},
		},
	}
	return db.LoadTable(ctx, schema, len(locations), func(i int) ([]any, error) {
		r := locations[i]
		return []any{
			int32(i + 1), string(r.Level), r.PublicID, r.Option.Label,
			r.Option.Code, r.Option.OldCode, r.Option.Urn, r.Option.LaEstab, r.Option.Ukprn,
		}, nil
	})
}

func (b *ColumnarTableBuilder) loadFilterLookup(ctx context.Context, db *duck.DB, options []metastore.FilterOptionRow) error {
	schema := duck.TableSchema{
		Name: "filters",
		Columns: []duck.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "filter_column", Type: "VARCHAR"},
			{Name: "public_id", Type: "VARCHAR"},
			{Name: "label", Type: "VARCHAR"},
		},
	}
	return db.LoadTable(ctx, schema, len(options), func(i int) ([]any, error) {
		r := options[i]
		return []any{int32(i + 1), r.FilterColumn, r.PublicID, r.Option.Label}, nil
	})
}

func (b *ColumnarTableBuilder) loadIndicatorLookup(ctx context.Context, db *duck.DB, indicators []metastore.IndicatorRow) error {
	schema := duck.TableSchema{
		Name: "indicators",
		Columns: []duck.Column{
			{Name: "column_name", Type: "VARCHAR"},
			{Name: "label", Type: "VARCHAR"},
			{Name: "unit", Type: "VARCHAR"},
			{Name: "decimal_places", Type: "INTEGER"},
		},
	}
	return db.LoadTable(ctx, schema, len(indicators), func(i int) ([]any, error) {
		ind := indicators[i].Indicator
		var dp any
		if ind.DecimalPlaces != nil {
			dp = int32(*ind.DecimalPlaces)
		}
		return []any{ind.PublicID, ind.Label, ind.Unit, dp}, nil
	})
}

// loadTimePeriodLookup keys the lookup by the raw CSV (period, identifier)
// pair so the fact join never re-canonicalizes; each raw pair carries the id
// of its canonical period.
func (b *ColumnarTableBuilder) loadTimePeriodLookup(ctx context.Context, db *duck.DB, csvPath string, timePeriods []meta.TimePeriod) error {
	ids := make(map[meta.TimePeriod]int32, len(timePeriods))
	for i, tp := range timePeriods {
		ids[tp] = int32(i + 1)
	}

	pairs, err := db.DistinctPairs(ctx, csvPath, "time_period", "time_identifier")
	if err != nil {
		return err
	}
	type rawPeriod struct {
		raw [2]string
		id  int32
		tp  meta.TimePeriod
	}
	rows := make([]rawPeriod, 0, len(pairs))
	for _, pair := range pairs {
		tp, err := meta.NewTimePeriod(pair[0], pair[1])
		if err != nil {
			return err
		}
		id, ok := ids[tp]
		if !ok {
			return fmt.Errorf("time period %q %q is not declared for this version", pair[0], pair[1])
		}
		rows = append(rows, rawPeriod{raw: pair, id: id, tp: tp})
	}

	schema := duck.TableSchema{
		Name: "time_periods",
		Columns: []duck.Column{
			{Name: "id", Type: "INTEGER"},
			{Name: "period", Type: "VARCHAR"},
			{Name: "identifier", Type: "VARCHAR"},
			{Name: "raw_period", Type: "VARCHAR"},
			{Name: "raw_identifier", Type: "VARCHAR"},
		},
	}
	return db.LoadTable(ctx, schema, len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{r.id, r.tp.Period, r.tp.Identifier, r.raw[0], r.raw[1]}, nil
	})
}

// factTableSchema renders the dynamic fact table: fixed id, time period and
// geographic level columns, one integer key column per location level and per
// filter, one value column per indicator.
func factTableSchema(levels []meta.LevelSpec, filters []metastore.FilterRow, indicators []metastore.IndicatorRow) duck.TableSchema {
	cols := []duck.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "time_period_id", Type: "INTEGER"},
		{Name: "geographic_level", Type: "VARCHAR"},
	}
	for _, spec := range levels {
		cols = append(cols, duck.Column{Name: levelFactColumn(spec), Type: "INTEGER"})
	}
	for _, f := range filters {
		cols = append(cols, duck.Column{Name: filterFactColumn(f.Filter.PublicID), Type: "INTEGER"})
	}
	for _, ind := range indicators {
		typ := "VARCHAR"
		if ind.Indicator.Numeric() {
			typ = "DOUBLE"
		}
		cols = append(cols, duck.Column{Name: ind.Indicator.PublicID, Type: typ})
	}
	return duck.TableSchema{Name: factTable, Columns: cols}
}

func levelFactColumn(spec meta.LevelSpec) string {
	return strings.ToLower(string(spec.Level)) + "_id"
}

func filterFactColumn(column string) string {
	return column + "_id"
}

// factInsertSQL renders the single bulk join-insert. Location and filter
// lookups are LEFT JOINed so unknown values resolve to the 0 sentinel; the
// time period lookup is INNER JOINed because a row without a resolvable time
// period is a data error. Output is ordered for scan-friendly layout and ids
// are dense and sequential in that order.
func factInsertSQL(csvPath string, levels []meta.LevelSpec, filters []metastore.FilterRow, indicators []metastore.IndicatorRow) string {
	const ordering = "d.geographic_level ASC, d.time_period DESC"
	csvCol := func(name string) string {
		return fmt.Sprintf("coalesce(d.%s, '')", duck.QuoteIdent(name))
	}

	insertCols := []string{`"id"`, `"time_period_id"`, `"geographic_level"`}
	selects := []string{
		fmt.Sprintf("row_number() OVER (ORDER BY %s)", ordering),
		"tp.id",
		csvCol("geographic_level"),
	}
	joins := []string{
		"INNER JOIN time_periods tp ON tp.raw_period = " + csvCol("time_period") +
			" AND tp.raw_identifier = " + csvCol("time_identifier"),
	}

	for _, spec := range levels {
		alias := "loc_" + strings.ToLower(string(spec.Level))
		conds := []string{fmt.Sprintf("%s.level = %s", alias, duck.QuoteString(string(spec.Level)))}
		for i, lookupCol := range locationLookupColumns(spec.Kind) {
			conds = append(conds, fmt.Sprintf("%s.%s = %s", alias, lookupCol, csvCol(spec.CodeColumns[i])))
		}
		conds = append(conds, fmt.Sprintf("%s.label = %s", alias, csvCol(spec.NameColumn)))

		insertCols = append(insertCols, duck.QuoteIdent(levelFactColumn(spec)))
		selects = append(selects, fmt.Sprintf("COALESCE(%s.id, 0)", alias))
		joins = append(joins, fmt.Sprintf("LEFT JOIN locations %s ON %s", alias, strings.Join(conds, " AND ")))
	}

	for i, f := range filters {
		alias := fmt.Sprintf("f_%d", i)
		insertCols = append(insertCols, duck.QuoteIdent(filterFactColumn(f.Filter.PublicID)))
		selects = append(selects, fmt.Sprintf("COALESCE(%s.id, 0)", alias))
		joins = append(joins, fmt.Sprintf("LEFT JOIN filters %s ON %s.filter_column = %s AND %s.label = %s",
			alias, alias, duck.QuoteString(f.Filter.PublicID), alias, csvCol(f.Filter.PublicID)))
	}

	for _, ind := range indicators {
		insertCols = append(insertCols, duck.QuoteIdent(ind.Indicator.PublicID))
		if ind.Indicator.Numeric() {
			// Empty values survive as NULL; anything unparseable fails the cast
			// and with it the stage.
			selects = append(selects, fmt.Sprintf("CAST(d.%s AS DOUBLE)", duck.QuoteIdent(ind.Indicator.PublicID)))
		} else {
			selects = append(selects, csvCol(ind.Indicator.PublicID))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s\nFROM %s AS d\n%s\nORDER BY %s",
		duck.QuoteIdent(factTable),
		strings.Join(insertCols, ", "),
		strings.Join(selects, ",\n  "),
		duck.ReadCSVExpr(csvPath),
		strings.Join(joins, "\n"),
		ordering)
}

// locationLookupColumns maps an option kind to the lookup columns matching
// the level's code columns, in the same order.
func locationLookupColumns(kind meta.OptionKind) []string {
	switch kind {
	case meta.OptionLocalAuthority:
		return []string{"code", "old_code"}
	case meta.OptionSchool:
		return []string{"urn", "laestab"}
	case meta.OptionProvider:
		return []string{"ukprn"}
	case meta.OptionRscRegion:
		return nil
	default:
		return []string{"code"}
	}
}
