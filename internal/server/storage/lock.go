package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

// LockManager guards edits of one owner with a zero-byte marker file.
// Acquisition never waits: a present marker means another edit is running.
// There is no expiry; a marker left by a crash is removed by an operator or
// through the release endpoint.
type LockManager struct {
	layout Layout
	logger logging.Logger
}

func NewLockManager(layout Layout, logger logging.Logger) *LockManager {
	return &LockManager{layout: layout, logger: logger}
}

// TryAcquire creates the marker with O_EXCL so that exactly one of several
// concurrent callers succeeds. The others get common.ErrLocked.
func (m *LockManager) TryAcquire(ctx context.Context, ownerID int64) error {
	if err := validOwner(ownerID); err != nil {
		return err
	}
	if err := filex.EnsureDir(m.layout.OwnerDir(ownerID)); err != nil {
		return err
	}

	path := m.layout.LockPath(ownerID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filex.FilePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("owner %d: %w", ownerID, common.ErrLocked)
		}
		return fmt.Errorf("create lock %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		logging.FromContext(ctx, m.logger).Warn(ctx, "lock marker close failed", "owner_id", ownerID, "err", err)
	}

	logging.FromContext(ctx, m.logger).Debug(ctx, "lock acquired", "owner_id", ownerID)
	return nil
}

// Release removes the marker. It is idempotent and never fails the caller;
// problems are logged.
func (m *LockManager) Release(ctx context.Context, ownerID int64) {
	if err := filex.RemoveIfExists(m.layout.LockPath(ownerID)); err != nil {
		logging.FromContext(ctx, m.logger).Error(ctx, "lock release failed", "owner_id", ownerID, "err", err)
		return
	}
	logging.FromContext(ctx, m.logger).Debug(ctx, "lock released", "owner_id", ownerID)
}

// Locked reports whether the marker of ownerID exists.
func (m *LockManager) Locked(ownerID int64) (bool, error) {
	return filex.Exists(m.layout.LockPath(ownerID))
}
