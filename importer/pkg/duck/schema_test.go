package duck

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	importertesting "github.com/statshare/importer/utils/pkg/testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Logger: importertesting.NewLogger(),
		Path:   t.TempDir() + "/test.duckdb",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestImporter_Duck_New_RequiresLogger(t *testing.T) {
	t.Parallel()

	db, err := New(Config{})
	require.Error(t, err)
	require.Nil(t, db)
}

func TestImporter_Duck_TableSchema_DDL(t *testing.T) {
	t.Parallel()

	schema := TableSchema{
		Name: "data",
		Columns: []Column{
			{Name: "id", Type: "BIGINT"},
			{Name: "time_period_id", Type: "INTEGER"},
			{Name: "school type", Type: "VARCHAR"},
		},
	}
	require.Equal(t,
		`CREATE TABLE "data" ("id" BIGINT, "time_period_id" INTEGER, "school type" VARCHAR)`,
		schema.DDL())
	require.Equal(t, []string{"id", "time_period_id", "school type"}, schema.ColumnNames())
}

func TestImporter_Duck_LoadTable(t *testing.T) {
	t.Parallel()

	t.Run("creates and bulk loads", func(t *testing.T) {
		t.Parallel()
		db := testDB(t)

		schema := TableSchema{
			Name: "locations",
			Columns: []Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "label", Type: "VARCHAR"},
			},
		}
		err := db.LoadTable(t.Context(), schema, 3, func(i int) ([]any, error) {
			return []any{int32(i + 1), fmt.Sprintf("location %d", i+1)}, nil
		})
		require.NoError(t, err)

		count, err := db.RowCount(t.Context(), "locations")
		require.NoError(t, err)
		require.EqualValues(t, 3, count)
	})

	t.Run("empty table is created without rows", func(t *testing.T) {
		t.Parallel()
		db := testDB(t)

		schema := TableSchema{Name: "empty", Columns: []Column{{Name: "id", Type: "INTEGER"}}}
		err := db.LoadTable(t.Context(), schema, 0, func(int) ([]any, error) {
			t.Fatal("writeRowFn must not be called for an empty load")
			return nil, nil
		})
		require.NoError(t, err)

		count, err := db.RowCount(t.Context(), "empty")
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("rejects mismatched column counts", func(t *testing.T) {
		t.Parallel()
		db := testDB(t)

		schema := TableSchema{Name: "strict", Columns: []Column{{Name: "id", Type: "INTEGER"}}}
		err := db.LoadTable(t.Context(), schema, 1, func(int) ([]any, error) {
			return []any{int32(1), "extra"}, nil
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "expected exactly 1")
	})
}
