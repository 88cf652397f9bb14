package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

// Stager moves files into an owner's backup area before a destructive
// database change, so they can be put back if the change rolls back.
// Callers must hold the owner's edit lock.
type Stager struct {
	layout Layout
	logger logging.Logger
}

func NewStager(layout Layout, logger logging.Logger) *Stager {
	return &Stager{layout: layout, logger: logger}
}

// Staging tracks the files moved by one edit.
type Staging struct {
	layout    Layout
	ownerID   int64
	dir       string
	backupDir string
	staged    []string
	logger    logging.Logger
}

// Begin opens a staging session for ownerID. A backup area that already
// still holds files belongs to an earlier aborted edit; Begin refuses to
// proceed with common.ErrStaleBackup rather than mix or purge those files.
func (s *Stager) Begin(ctx context.Context, ownerID int64) (*Staging, error) {
	if err := validOwner(ownerID); err != nil {
		return nil, err
	}

	backupDir := s.layout.BackupDir(ownerID)
	entries, err := os.ReadDir(backupDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", backupDir, err)
	case len(entries) > 0:
		return nil, fmt.Errorf("owner %d: %w", ownerID, common.ErrStaleBackup)
	default:
		// an empty area holds nothing to restore
		if err := os.Remove(backupDir); err != nil {
			return nil, fmt.Errorf("remove %s: %w", backupDir, err)
		}
	}

	return &Staging{
		layout:    s.layout,
		ownerID:   ownerID,
		dir:       s.layout.OwnerDir(ownerID),
		backupDir: backupDir,
		logger:    logging.FromContext(ctx, s.logger).With("owner_id", ownerID),
	}, nil
}

// Stage copies name into the backup area and then deletes the original.
// A name counts as staged once its copy exists, even if the delete failed.
func (st *Staging) Stage(ctx context.Context, name string) error {
	if err := st.layout.ValidateName(name); err != nil {
		return err
	}
	if err := filex.EnsureDir(st.backupDir); err != nil {
		return err
	}

	src := filepath.Join(st.dir, name)
	dst := filepath.Join(st.backupDir, name)
	if err := filex.CopyFile(src, dst); err != nil {
		return fmt.Errorf("backup %s: %w", name, err)
	}
	st.staged = append(st.staged, name)

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	st.logger.Debug(ctx, "file staged", "file", name)
	return nil
}

// Staged returns the names moved so far, in staging order.
func (st *Staging) Staged() []string {
	return append([]string(nil), st.staged...)
}

// Purge permanently deletes the backup area.
func (st *Staging) Purge(ctx context.Context) error {
	if err := os.RemoveAll(st.backupDir); err != nil {
		return fmt.Errorf("purge %s: %w", st.backupDir, err)
	}
	st.logger.Debug(ctx, "backup purged", "files", len(st.staged))
	return nil
}

// Restore copies every staged file back to its original place and then
// deletes the backup area. Every file is attempted; the backup area is kept
// if any copy failed so nothing is lost.
func (st *Staging) Restore(ctx context.Context) error {
	var errs []error
	for _, name := range st.staged {
		src := filepath.Join(st.backupDir, name)
		dst := filepath.Join(st.dir, name)
		if err := filex.CopyFile(src, dst); err != nil {
			st.logger.Error(ctx, "restore failed", "file", name, "err", err)
			errs = append(errs, fmt.Errorf("restore %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if err := os.RemoveAll(st.backupDir); err != nil {
		return fmt.Errorf("remove %s: %w", st.backupDir, err)
	}
	st.logger.Info(ctx, "staged files restored", "files", len(st.staged))
	return nil
}
