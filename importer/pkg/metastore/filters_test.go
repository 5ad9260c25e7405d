package metastore_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/statshare/importer/importer/pkg/meta"
)

func TestImporter_MetaStore_CreateFilterMeta_Idempotent(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	v := testVersion(t, store)

	first, err := store.CreateFilterMeta(t.Context(), v.ID, meta.Filter{PublicID: "sex", Label: "Sex"})
	require.NoError(t, err)
	second, err := store.CreateFilterMeta(t.Context(), v.ID, meta.Filter{PublicID: "sex", Label: "Sex", Hint: "Pupil sex"})
	require.NoError(t, err)
	require.Equal(t, first, second)

	filters, err := store.GetFiltersForVersion(t.Context(), v.ID)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	require.Equal(t, "Pupil sex", filters[0].Filter.Hint)
}

func TestImporter_MetaStore_LinkFilterOptions(t *testing.T) {
	t.Parallel()

	t.Run("links every option with distinct public ids", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)
		metaID, err := store.CreateFilterMeta(t.Context(), v.ID, meta.Filter{PublicID: "sex", Label: "Sex"})
		require.NoError(t, err)

		suffix := uuid.NewString()
		options := []meta.FilterOption{
			meta.NewFilterOption("Male " + suffix),
			meta.NewFilterOption("Female " + suffix),
			meta.NewFilterOption("Total"),
		}

		require.NoError(t, store.UpsertFilterOptions(t.Context(), options))
		linked, err := store.LinkFilterOptions(t.Context(), metaID, options)
		require.NoError(t, err)
		require.EqualValues(t, 3, linked)

		rows, err := store.GetFilterOptionsForVersion(t.Context(), v.ID)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		seen := make(map[string]bool)
		for _, r := range rows {
			require.False(t, seen[r.PublicID], "duplicate public id %q", r.PublicID)
			seen[r.PublicID] = true
		}
	})

	t.Run("re-run does not duplicate options or links", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)
		metaID, err := store.CreateFilterMeta(t.Context(), v.ID, meta.Filter{PublicID: "ethnicity", Label: "Ethnicity"})
		require.NoError(t, err)

		options := []meta.FilterOption{meta.NewFilterOption("White " + uuid.NewString())}
		require.NoError(t, store.UpsertFilterOptions(t.Context(), options))
		linked, err := store.LinkFilterOptions(t.Context(), metaID, options)
		require.NoError(t, err)
		require.EqualValues(t, 1, linked)

		firstRows, err := store.GetFilterOptionsForVersion(t.Context(), v.ID)
		require.NoError(t, err)

		require.NoError(t, store.UpsertFilterOptions(t.Context(), options))
		linked, err = store.LinkFilterOptions(t.Context(), metaID, options)
		require.NoError(t, err)
		require.EqualValues(t, 1, linked)

		secondRows, err := store.GetFilterOptionsForVersion(t.Context(), v.ID)
		require.NoError(t, err)
		// The link's public id must not change once assigned.
		require.Equal(t, firstRows, secondRows)
	})

	t.Run("shared aggregate label is one global option with per-version links", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)

		newVersionLink := func() (optionID int64, publicID string) {
			v := testVersion(t, store)
			metaID, err := store.CreateFilterMeta(t.Context(), v.ID, meta.Filter{PublicID: "sex", Label: "Sex"})
			require.NoError(t, err)
			options := []meta.FilterOption{meta.NewFilterOption("Total")}
			require.NoError(t, store.UpsertFilterOptions(t.Context(), options))
			_, err = store.LinkFilterOptions(t.Context(), metaID, options)
			require.NoError(t, err)

			rows, err := store.GetFilterOptionsForVersion(t.Context(), v.ID)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.True(t, rows[0].Option.IsAggregate)
			return rows[0].ID, rows[0].PublicID
		}

		firstID, firstPublic := newVersionLink()
		secondID, secondPublic := newVersionLink()

		// One stored "Total" option, two links, two distinct public ids.
		require.Equal(t, firstID, secondID)
		require.NotEqual(t, firstPublic, secondPublic)
	})
}

func TestImporter_MetaStore_IndicatorMeta(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	v := testVersion(t, store)

	dp := 2
	first, err := store.CreateIndicatorMeta(t.Context(), v.ID, meta.Indicator{
		PublicID:      "enrolments",
		Label:         "Number of enrolments",
		DecimalPlaces: &dp,
	})
	require.NoError(t, err)

	// Idempotent refresh.
	second, err := store.CreateIndicatorMeta(t.Context(), v.ID, meta.Indicator{
		PublicID: "enrolments",
		Label:    "Number of enrolments",
		Unit:     "",
	})
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = store.CreateIndicatorMeta(t.Context(), v.ID, meta.Indicator{
		PublicID: "sess_overall_percent",
		Label:    "Overall absence rate",
		Unit:     "%",
	})
	require.NoError(t, err)

	indicators, err := store.GetIndicatorsForVersion(t.Context(), v.ID)
	require.NoError(t, err)
	require.Len(t, indicators, 2)
	// Ordered by label.
	require.Equal(t, "enrolments", indicators[0].Indicator.PublicID)
	require.Nil(t, indicators[0].Indicator.DecimalPlaces)
	require.Equal(t, "sess_overall_percent", indicators[1].Indicator.PublicID)
	require.Equal(t, "%", indicators[1].Indicator.Unit)
}

func TestImporter_MetaStore_TimePeriodMeta(t *testing.T) {
	t.Parallel()

	store := testStore(t)
	v := testVersion(t, store)

	periods := []meta.TimePeriod{
		{Period: "2019/20", Identifier: "Academic year"},
		{Period: "2020/21", Identifier: "Academic year"},
	}
	require.NoError(t, store.CreateTimePeriodMeta(t.Context(), v.ID, periods))
	// Idempotent re-run.
	require.NoError(t, store.CreateTimePeriodMeta(t.Context(), v.ID, periods))

	got, err := store.GetTimePeriodsForVersion(t.Context(), v.ID)
	require.NoError(t, err)
	require.Equal(t, periods, got)
}
