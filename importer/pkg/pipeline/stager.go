package pipeline

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/statshare/importer/importer/pkg/filestore"
)

// CsvStager copies the source data and metadata CSVs from blob storage into
// the version's working file area, compressed at rest, with inflated working
// copies for the scans.
type CsvStager struct {
	Log       *slog.Logger
	Files     filestore.Store
	Container string
}

// Stage fetches both files. Blobs live at <versionID>/data.csv and
// <versionID>/data.meta.csv within the container.
func (s *CsvStager) Stage(ctx context.Context, work WorkDir, versionID uuid.UUID) error {
	if err := work.Ensure(); err != nil {
		return err
	}
	files := []struct {
		blob string
		dest string
	}{
		{path.Join(versionID.String(), "data.csv"), work.DataCSV()},
		{path.Join(versionID.String(), "data.meta.csv"), work.MetaCSV()},
	}
	for _, f := range files {
		if err := s.stageFile(ctx, f.blob, f.dest); err != nil {
			return err
		}
	}
	return nil
}

// stageFile streams the blob once, writing the inflated working copy and the
// gzip at-rest copy together.
func (s *CsvStager) stageFile(ctx context.Context, blobPath, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	blob, err := s.Files.StreamBlob(ctx, s.Container, blobPath)
	if err != nil {
		return err
	}
	defer blob.Close()

	plain, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer plain.Close()

	compressed, err := os.Create(dest + ".gz")
	if err != nil {
		return fmt.Errorf("failed to create %s.gz: %w", dest, err)
	}
	defer compressed.Close()

	gz := gzip.NewWriter(compressed)
	if _, err := io.Copy(io.MultiWriter(plain, gz), blob); err != nil {
		return fmt.Errorf("failed to stage %s: %w", blobPath, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish compressing %s: %w", blobPath, err)
	}

	s.Log.Info("staged csv file", "blob", blobPath, "dest", filepath.Base(dest))
	return nil
}
