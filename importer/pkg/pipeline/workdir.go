package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WorkDir is the local working file area for one data set version, addressed
// by version id under a shared root.
type WorkDir struct {
	root      string
	versionID uuid.UUID
}

func NewWorkDir(root string, versionID uuid.UUID) WorkDir {
	return WorkDir{root: root, versionID: versionID}
}

func (w WorkDir) Path() string {
	return filepath.Join(w.root, w.versionID.String())
}

// Ensure creates the directory.
func (w WorkDir) Ensure() error {
	if err := os.MkdirAll(w.Path(), 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	return nil
}

// DataCSV is the inflated working copy of the source data file.
func (w WorkDir) DataCSV() string {
	return filepath.Join(w.Path(), "data.csv")
}

// MetaCSV is the inflated working copy of the metadata description file.
func (w WorkDir) MetaCSV() string {
	return filepath.Join(w.Path(), "data.meta.csv")
}

// DataCSVGz and MetaCSVGz are the at-rest compressed copies.
func (w WorkDir) DataCSVGz() string {
	return w.DataCSV() + ".gz"
}

func (w WorkDir) MetaCSVGz() string {
	return w.MetaCSV() + ".gz"
}

// Database is the transient embedded database file, discarded on completion.
func (w WorkDir) Database() string {
	return filepath.Join(w.Path(), "data.duckdb")
}

// Parquet is the exported columnar data file, the durable output of the
// pipeline.
func (w WorkDir) Parquet() string {
	return filepath.Join(w.Path(), "data.parquet")
}
