package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/replica"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/sales"
	"github.com/dmitrijs2005/docsync/internal/server/storage"
)

// Locker is the non-blocking, per-owner edit lock.
type Locker interface {
	TryAcquire(ctx context.Context, ownerID int64) error
	Release(ctx context.Context, ownerID int64)
}

// EditCoordinator applies an edit to the database and the owner directory
// so that both change or neither does.
type EditCoordinator struct {
	runner  *dbx.Runner
	locks   Locker
	stager  *storage.Stager
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewEditCoordinator(runner *dbx.Runner, locks Locker, stager *storage.Stager, mt *metrics.Metrics, logger logging.Logger) *EditCoordinator {
	return &EditCoordinator{runner: runner, locks: locks, stager: stager, metrics: mt, logger: logger}
}

// ApplyEdit runs one edit of ownerID:
//
//  1. take the edit lock, failing fast with common.ErrLocked;
//  2. move every file of filesToDelete into the backup area;
//  3. run mutate in a single transaction;
//  4. on commit, purge the backup area;
//  5. on rollback, copy the staged files back and drop the backup area;
//  6. release the lock on every path.
//
// If step 2 fails no transaction is started and the files staged so far
// stay in the backup area; later edits of the owner then fail with
// common.ErrStaleBackup until an operator restores them.
//
// Chunk uploads do not take the edit lock. An upload of a name that is being
// staged or restored at the same time may be overwritten by the restore or
// moved into the backup area; the outcome is undefined.
func (c *EditCoordinator) ApplyEdit(ctx context.Context, ownerID int64, mutate dbx.TxFunc, filesToDelete []string) error {
	log := logging.FromContext(ctx, c.logger).With("owner_id", ownerID)

	if err := c.locks.TryAcquire(ctx, ownerID); err != nil {
		if errors.Is(err, common.ErrLocked) {
			c.metrics.Edits.WithLabelValues(metrics.EditConflict).Inc()
			log.Info(ctx, "edit rejected, owner is locked")
		}
		return err
	}
	defer c.locks.Release(ctx, ownerID)

	staging, err := c.stager.Begin(ctx, ownerID)
	if err != nil {
		c.metrics.Edits.WithLabelValues(metrics.EditStagingFailed).Inc()
		log.Error(ctx, "staging not started", "err", err)
		return err
	}

	for _, name := range filesToDelete {
		if err := staging.Stage(ctx, name); err != nil {
			c.metrics.Edits.WithLabelValues(metrics.EditStagingFailed).Inc()
			log.Error(ctx, "staging failed, staged files left in backup",
				"file", name, "staged", staging.Staged(), "err", err)
			return err
		}
	}

	if err := c.runner.InTx(ctx, mutate); err != nil {
		c.metrics.Edits.WithLabelValues(metrics.EditRolledBack).Inc()
		if rErr := staging.Restore(ctx); rErr != nil {
			c.metrics.RestoreFailures.Inc()
			log.Error(ctx, "restore after rollback failed, files remain in backup",
				"staged", staging.Staged(), "err", rErr, "tx_err", err)
		}
		return err
	}

	c.metrics.Edits.WithLabelValues(metrics.EditCommitted).Inc()
	if err := staging.Purge(ctx); err != nil {
		log.Warn(ctx, "backup purge failed after commit", "err", err)
	}
	log.Info(ctx, "edit committed", "deleted_files", len(filesToDelete))
	return nil
}

// EditService turns an edit submission into a coordinated edit.
type EditService struct {
	runner      *dbx.Runner
	repomanager repomanager.RepositoryManager
	coordinator *EditCoordinator
	locks       *storage.LockManager
	layout      storage.Layout
	replica     replica.Replicator
	logger      logging.Logger
	now         func() time.Time
}

func NewEditService(runner *dbx.Runner, m repomanager.RepositoryManager, layout storage.Layout,
	rep replica.Replicator, mt *metrics.Metrics, logger logging.Logger) *EditService {
	locks := storage.NewLockManager(layout, logger)
	return &EditService{
		runner:      runner,
		repomanager: m,
		coordinator: NewEditCoordinator(runner, locks, storage.NewStager(layout, logger), mt, logger),
		locks:       locks,
		layout:      layout,
		replica:     rep,
		logger:      logger,
		now:         now,
	}
}

// EditSale applies req as u. Field mutations, publish flag changes and row
// deletions commit together; files of deleted rows are removed only when
// no remaining row of the owner references them.
func (s *EditService) EditSale(ctx context.Context, u models.Uploader, req *models.EditRequest) error {
	if err := s.validate(req); err != nil {
		return err
	}
	if err := ensureOwner(ctx, s.repomanager, s.runner.DB(), req.OwnerID); err != nil {
		return err
	}

	deleted := uniqueBranches(req.FilesToDelete)
	var published, private []int64
	for _, f := range req.DocumentsToUpdateFlag {
		if f.Published {
			published = append(published, f.BranchNo)
		} else {
			private = append(private, f.BranchNo)
		}
	}

	files, err := s.filesToRemove(ctx, req.OwnerID, req.FilesToDelete, deleted)
	if err != nil {
		return err
	}

	at := s.now()
	mutate := func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sales(tx).Update(ctx, req.OwnerID, req.FieldMutations, u.UserID, at); err != nil {
			return err
		}
		docs := s.repomanager.Documents(tx)
		if _, err := docs.UpdatePublishFlag(ctx, req.OwnerID, published, true, u.UserID, at); err != nil {
			return err
		}
		if _, err := docs.UpdatePublishFlag(ctx, req.OwnerID, private, false, u.UserID, at); err != nil {
			return err
		}
		if _, err := docs.DeleteBranches(ctx, req.OwnerID, deleted); err != nil {
			return err
		}
		return nil
	}

	if err := s.coordinator.ApplyEdit(ctx, req.OwnerID, mutate, files); err != nil {
		return err
	}

	s.replica.Delete(ctx, req.OwnerID, files...)
	return nil
}

// ReleaseLock removes the owner's lock marker. It is best effort and safe
// to call when no lock is held.
func (s *EditService) ReleaseLock(ctx context.Context, ownerID int64) {
	if ownerID <= 0 {
		return
	}
	s.locks.Release(ctx, ownerID)
}

func (s *EditService) validate(req *models.EditRequest) error {
	if req == nil || req.OwnerID <= 0 {
		return fmt.Errorf("%w: owner id is required", common.ErrInvalidRequest)
	}
	if err := sales.ValidateFields(req.FieldMutations); err != nil {
		return err
	}
	for _, f := range req.DocumentsToUpdateFlag {
		if f.DocumentID != req.OwnerID {
			return fmt.Errorf("%w: document %d/%d does not belong to owner %d",
				common.ErrInvalidRequest, f.DocumentID, f.BranchNo, req.OwnerID)
		}
	}
	for _, f := range req.FilesToDelete {
		if f.DocumentID != req.OwnerID {
			return fmt.Errorf("%w: document %d/%d does not belong to owner %d",
				common.ErrInvalidRequest, f.DocumentID, f.BranchNo, req.OwnerID)
		}
		if err := s.layout.ValidateName(f.FileName); err != nil {
			return err
		}
	}
	return nil
}

// filesToRemove picks the physical files to stage: each name once, only if
// no surviving row references it and only if it still exists on disk. Every
// entry must name the file stored on its row.
// References are counted before the lock is taken; a registration racing
// the edit can still add a row for a name about to be removed.
func (s *EditService) filesToRemove(ctx context.Context, ownerID int64, files []models.FileToDelete, deleted []int64) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	log := logging.FromContext(ctx, s.logger).With("owner_id", ownerID)
	docs := s.repomanager.Documents(s.runner.DB())

	rows, err := docs.ListByDocumentID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	stored := make(map[int64]string, len(rows))
	for _, d := range rows {
		stored[d.BranchNo] = d.FileName
	}
	for _, f := range files {
		name, ok := stored[f.BranchNo]
		if !ok {
			return nil, fmt.Errorf("document %d/%d: %w", ownerID, f.BranchNo, common.ErrorNotFound)
		}
		if name != f.FileName {
			return nil, fmt.Errorf("%w: document %d/%d stores %q, not %q",
				common.ErrInvalidRequest, ownerID, f.BranchNo, name, f.FileName)
		}
	}

	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f.FileName]; ok {
			continue
		}
		seen[f.FileName] = struct{}{}

		refs, err := docs.CountFileReferences(ctx, ownerID, f.FileName, deleted)
		if err != nil {
			return nil, err
		}
		if refs > 0 {
			log.Debug(ctx, "file kept, still referenced", "file", f.FileName, "refs", refs)
			continue
		}

		path, err := s.layout.FilePath(ownerID, f.FileName)
		if err != nil {
			return nil, err
		}
		exists, err := filex.Exists(path)
		if err != nil {
			return nil, err
		}
		if !exists {
			log.Warn(ctx, "file already missing, deleting row only", "file", f.FileName)
			continue
		}
		out = append(out, f.FileName)
	}
	return out, nil
}

func uniqueBranches(files []models.FileToDelete) []int64 {
	set := make(map[int64]struct{}, len(files))
	out := make([]int64, 0, len(files))
	for _, f := range files {
		if _, ok := set[f.BranchNo]; ok {
			continue
		}
		set[f.BranchNo] = struct{}{}
		out = append(out, f.BranchNo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
