package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/statshare/importer/importer/pkg/metastore"
	"github.com/statshare/importer/importer/pkg/server"
	importertesting "github.com/statshare/importer/utils/pkg/testing"
)

var sharedDB *importertesting.DB

func TestMain(m *testing.M) {
	log := importertesting.NewLogger()
	var err error
	sharedDB, err = importertesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Error("failed to create shared DB", "error", err)
		os.Exit(1)
	}
	code := m.Run()
	sharedDB.Close()
	os.Exit(code)
}

func testServer(t *testing.T) (*server.Server, *metastore.Store) {
	t.Helper()
	pool := importertesting.NewTestPool(t, sharedDB)
	store, err := metastore.NewStore(metastore.StoreConfig{
		Logger: importertesting.NewLogger(),
		Pool:   pool,
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		Logger: importertesting.NewLogger(),
		Store:  store,
		Addr:   "127.0.0.1:0",
	})
	require.NoError(t, err)
	return srv, store
}

func TestImporter_Server_Healthz(t *testing.T) {
	t.Parallel()

	srv, _ := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestImporter_Server_Metrics(t *testing.T) {
	t.Parallel()

	srv, _ := testServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestImporter_Server_GetImport(t *testing.T) {
	t.Parallel()

	srv, store := testServer(t)

	version := metastore.DataSetVersion{
		ID:             uuid.New(),
		DataSetID:      uuid.New(),
		Status:         metastore.StatusProcessing,
		IsFirstVersion: true,
	}
	require.NoError(t, store.CreateDataSetVersion(t.Context(), version))
	imp := metastore.Import{
		ID:               uuid.New(),
		DataSetVersionID: version.ID,
		InstanceID:       uuid.New(),
		Stage:            "ImportingMetadata",
	}
	require.NoError(t, store.CreateImport(t.Context(), imp))

	t.Run("returns stage and version status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+imp.ID.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got struct {
			ID            uuid.UUID `json:"id"`
			Stage         string    `json:"stage"`
			VersionStatus string    `json:"versionStatus"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Equal(t, imp.ID, got.ID)
		require.Equal(t, "ImportingMetadata", got.Stage)
		require.Equal(t, "Processing", got.VersionStatus)
	})

	t.Run("unknown import is a 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+uuid.NewString(), nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id is a 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/not-a-uuid", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
