package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	importertesting "github.com/statshare/importer/utils/pkg/testing"
)

func TestImporter_Filestore_Local_StreamBlob(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "releases", "abc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "releases", "abc", "data.csv"), []byte("a,b\n1,2\n"), 0o644))

	store, err := NewLocal(LocalConfig{
		Logger: importertesting.NewLogger(),
		Root:   root,
	})
	require.NoError(t, err)

	rc, err := store.StreamBlob(t.Context(), "releases", "abc/data.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(data))

	_, err = store.StreamBlob(t.Context(), "releases", "missing.csv")
	require.Error(t, err)
}

func TestImporter_Filestore_Local_RequiresRoot(t *testing.T) {
	t.Parallel()

	_, err := NewLocal(LocalConfig{Logger: importertesting.NewLogger()})
	require.Error(t, err)
}

type fakeS3 struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket = *params.Bucket
	f.key = *params.Key
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestImporter_Filestore_S3_StreamBlob(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{body: []byte("payload")}
	store, err := NewS3(t.Context(), S3Config{
		Logger: importertesting.NewLogger(),
		Client: fake,
	})
	require.NoError(t, err)

	rc, err := store.StreamBlob(t.Context(), "releases", "abc/data.csv")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
	require.Equal(t, "releases", fake.bucket)
	require.Equal(t, "abc/data.csv", fake.key)
}
