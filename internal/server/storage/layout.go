// Package storage owns the on-disk side of the document store: one
// directory per owning record holding the uploaded files, the edit lock
// marker and the backup staging area of an edit in progress.
package storage

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/common"
)

// Layout resolves paths below Root. The lock file and backup folder names
// are reserved inside every owner directory.
type Layout struct {
	Root             string
	LockFileName     string
	BackupFolderName string
}

func (l Layout) OwnerDir(ownerID int64) string {
	return filepath.Join(l.Root, strconv.FormatInt(ownerID, 10))
}

func (l Layout) LockPath(ownerID int64) string {
	return filepath.Join(l.OwnerDir(ownerID), l.LockFileName)
}

func (l Layout) BackupDir(ownerID int64) string {
	return filepath.Join(l.OwnerDir(ownerID), l.BackupFolderName)
}

// FilePath returns the stored path of name after validating it.
func (l Layout) FilePath(ownerID int64, name string) (string, error) {
	if err := l.ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.OwnerDir(ownerID), name), nil
}

// ValidateName accepts plain file names only: no separators, no dot
// entries and none of the reserved names.
func (l Layout) ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: bad file name %q", common.ErrInvalidRequest, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: file name %q contains a path separator", common.ErrInvalidRequest, name)
	case name == l.LockFileName, name == l.BackupFolderName:
		return fmt.Errorf("%w: file name %q is reserved", common.ErrInvalidRequest, name)
	}
	return nil
}

func validOwner(ownerID int64) error {
	if ownerID <= 0 {
		return fmt.Errorf("%w: owner id %d", common.ErrInvalidRequest, ownerID)
	}
	return nil
}
