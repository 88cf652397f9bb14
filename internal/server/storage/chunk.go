package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

// ChunkWriter reassembles a file from chunks written at explicit offsets.
// Chunks may arrive in any order; the chunk at offset 0 restarts the file.
type ChunkWriter struct {
	layout Layout
	logger logging.Logger
}

func NewChunkWriter(layout Layout, logger logging.Logger) *ChunkWriter {
	return &ChunkWriter{layout: layout, logger: logger}
}

// WriteChunk writes r into the stored file of ownerID at offset and returns
// the number of bytes written. Overlapping chunks overwrite each other.
func (w *ChunkWriter) WriteChunk(ctx context.Context, ownerID int64, name string, r io.Reader, offset int64) (n int64, err error) {
	if err := validOwner(ownerID); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", common.ErrInvalidRequest, offset)
	}
	path, err := w.layout.FilePath(ownerID, name)
	if err != nil {
		return 0, err
	}

	if err := filex.EnsureDir(w.layout.OwnerDir(ownerID)); err != nil {
		return 0, err
	}

	if offset == 0 {
		if err := filex.RemoveIfExists(path); err != nil {
			return 0, err
		}
	}

	// O_APPEND would make positioned writes fail.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, filex.FilePerm)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cErr)
		}
	}()

	n, err = io.Copy(io.NewOffsetWriter(f, offset), r)
	if err != nil {
		return n, fmt.Errorf("write %s at %d: %w", path, offset, err)
	}

	logging.FromContext(ctx, w.logger).Debug(ctx, "chunk written",
		"owner_id", ownerID, "file", name, "offset", offset, "bytes", n)

	return n, nil
}
