// Package filestore abstracts the blob storage holding source CSV uploads.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Store streams uploaded blobs. The pipeline only ever reads; writes happen
// upstream of the import trigger.
type Store interface {
	// StreamBlob opens a blob for reading. The caller closes the stream.
	StreamBlob(ctx context.Context, container, path string) (io.ReadCloser, error)
}

type LocalConfig struct {
	Logger *slog.Logger
	// Root is the directory standing in for blob storage; containers are its
	// immediate subdirectories.
	Root string
}

func (cfg *LocalConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Root == "" {
		return errors.New("root directory is required")
	}
	return nil
}

// Local serves blobs from a local directory tree. Used by tests and the dev
// loop.
type Local struct {
	log *slog.Logger
	cfg LocalConfig
}

func NewLocal(cfg LocalConfig) (*Local, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Local{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

func (s *Local) StreamBlob(ctx context.Context, container, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(s.cfg.Root, container, filepath.FromSlash(path))
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s/%s: %w", container, path, err)
	}
	return f, nil
}
