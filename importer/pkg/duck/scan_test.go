package duck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const scanTestCSV = `time_period,time_identifier,geographic_level,region_code,region_name,new_la_code,old_la_code,la_name,sex,enrolments
202021,AY,Regional,E12000001,North East,,,,Total,100
202021,AY,Regional,E12000002,North West,,,,Total,200
202021,AY,Local authority,E12000001,North East,E06000001,805,Hartlepool,Male,30
201920,AY,Local authority,E12000001,North East,E06000001,805,Hartlepool,Female,40
201920,AY,Local authority,E12000001,North East,,820,Bedfordshire,Total,50
`

func TestImporter_Duck_CSVColumns(t *testing.T) {
	t.Parallel()

	db := testDB(t)
	path := writeCSV(t, "data.csv", scanTestCSV)

	cols, err := db.CSVColumns(t.Context(), path)
	require.NoError(t, err)
	require.Equal(t, []string{
		"time_period", "time_identifier", "geographic_level",
		"region_code", "region_name", "new_la_code", "old_la_code", "la_name",
		"sex", "enrolments",
	}, cols)
}

func TestImporter_Duck_CSVRowCount(t *testing.T) {
	t.Parallel()

	db := testDB(t)
	path := writeCSV(t, "data.csv", scanTestCSV)

	count, err := db.CSVRowCount(t.Context(), path)
	require.NoError(t, err)
	require.EqualValues(t, 5, count)
}

func TestImporter_Duck_DistinctValues(t *testing.T) {
	t.Parallel()

	db := testDB(t)
	path := writeCSV(t, "data.csv", scanTestCSV)

	values, err := db.DistinctValues(t.Context(), path, "geographic_level")
	require.NoError(t, err)
	require.Equal(t, []string{"Local authority", "Regional"}, values)

	sexes, err := db.DistinctValues(t.Context(), path, "sex")
	require.NoError(t, err)
	require.Equal(t, []string{"Female", "Male", "Total"}, sexes)
}

func TestImporter_Duck_DistinctTuples(t *testing.T) {
	t.Parallel()

	db := testDB(t)
	path := writeCSV(t, "data.csv", scanTestCSV)

	t.Run("skips rows where the whole projection is empty", func(t *testing.T) {
		t.Parallel()
		tuples, err := db.DistinctTuples(t.Context(), path, []string{"new_la_code", "old_la_code", "la_name"})
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"", "820", "Bedfordshire"},
			{"E06000001", "805", "Hartlepool"},
		}, tuples)
	})

	t.Run("keeps partially empty tuples", func(t *testing.T) {
		t.Parallel()
		tuples, err := db.DistinctTuples(t.Context(), path, []string{"region_code", "region_name"})
		require.NoError(t, err)
		require.Equal(t, [][]string{
			{"E12000001", "North East"},
			{"E12000002", "North West"},
		}, tuples)
	})
}

func TestImporter_Duck_DistinctPairs(t *testing.T) {
	t.Parallel()

	db := testDB(t)
	path := writeCSV(t, "data.csv", scanTestCSV)

	pairs, err := db.DistinctPairs(t.Context(), path, "time_period", "time_identifier")
	require.NoError(t, err)
	require.Equal(t, [][2]string{
		{"201920", "AY"},
		{"202021", "AY"},
	}, pairs)
}
