package metastore_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/statshare/importer/importer/pkg/metastore"
	importertesting "github.com/statshare/importer/utils/pkg/testing"
)

func TestImporter_MetaStore_NewStore(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()
		store, err := metastore.NewStore(metastore.StoreConfig{})
		require.Error(t, err)
		require.Nil(t, store)
		require.Contains(t, err.Error(), "logger is required")
	})

	t.Run("missing pool", func(t *testing.T) {
		t.Parallel()
		store, err := metastore.NewStore(metastore.StoreConfig{
			Logger: importertesting.NewLogger(),
		})
		require.Error(t, err)
		require.Nil(t, store)
		require.Contains(t, err.Error(), "postgres pool is required")
	})
}

func TestImporter_MetaStore_DataSetVersions(t *testing.T) {
	t.Parallel()

	t.Run("create and get round-trips", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)

		got, err := store.GetDataSetVersion(t.Context(), v.ID)
		require.NoError(t, err)
		require.Equal(t, v.ID, got.ID)
		require.Equal(t, v.DataSetID, got.DataSetID)
		require.Equal(t, metastore.StatusProcessing, got.Status)
		require.True(t, got.IsFirstVersion)
	})

	t.Run("status transition is visible", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)

		require.NoError(t, store.SetDataSetVersionStatus(t.Context(), v.ID, metastore.StatusDraft))
		got, err := store.GetDataSetVersion(t.Context(), v.ID)
		require.NoError(t, err)
		require.Equal(t, metastore.StatusDraft, got.Status)
	})

	t.Run("unknown version is ErrNotFound", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		_, err := store.GetDataSetVersion(t.Context(), uuid.New())
		require.ErrorIs(t, err, metastore.ErrNotFound)
	})
}

func TestImporter_MetaStore_Imports(t *testing.T) {
	t.Parallel()

	t.Run("stage transitions persist", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)

		imp := metastore.Import{
			ID:               uuid.New(),
			DataSetVersionID: v.ID,
			InstanceID:       uuid.New(),
			Stage:            "Queued",
		}
		require.NoError(t, store.CreateImport(t.Context(), imp))

		require.NoError(t, store.SetImportStage(t.Context(), imp.ID, "CopyingCsvFiles"))
		got, err := store.GetImportByInstanceID(t.Context(), imp.InstanceID)
		require.NoError(t, err)
		require.Equal(t, "CopyingCsvFiles", got.Stage)
		require.Nil(t, got.CompletedAt)
	})

	t.Run("completion sets the timestamp", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)

		imp := metastore.Import{
			ID:               uuid.New(),
			DataSetVersionID: v.ID,
			InstanceID:       uuid.New(),
			Stage:            "Queued",
		}
		require.NoError(t, store.CreateImport(t.Context(), imp))

		completedAt := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, store.CompleteImport(t.Context(), imp.ID, "Completed", completedAt))

		got, err := store.GetImport(t.Context(), imp.ID)
		require.NoError(t, err)
		require.Equal(t, "Completed", got.Stage)
		require.NotNil(t, got.CompletedAt)
		require.WithinDuration(t, completedAt, *got.CompletedAt, time.Millisecond)
	})

	t.Run("queue returns oldest incomplete import in stage", func(t *testing.T) {
		t.Parallel()
		store := testStore(t)
		v := testVersion(t, store)

		stage := "Queued-" + uuid.NewString()
		first := metastore.Import{ID: uuid.New(), DataSetVersionID: v.ID, InstanceID: uuid.New(), Stage: stage}
		require.NoError(t, store.CreateImport(t.Context(), first))
		time.Sleep(10 * time.Millisecond)
		second := metastore.Import{ID: uuid.New(), DataSetVersionID: v.ID, InstanceID: uuid.New(), Stage: stage}
		require.NoError(t, store.CreateImport(t.Context(), second))

		got, err := store.NextQueuedImport(t.Context(), stage)
		require.NoError(t, err)
		require.Equal(t, first.ID, got.ID)
	})
}
