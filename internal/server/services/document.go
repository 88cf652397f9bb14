package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/replica"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docsync/internal/server/storage"
)

// DocumentService reassembles chunked uploads and registers finished files
// as Document rows.
type DocumentService struct {
	runner      *dbx.Runner
	repomanager repomanager.RepositoryManager
	sequences   Sequencer
	chunks      *storage.ChunkWriter
	layout      storage.Layout
	replica     replica.Replicator
	metrics     *metrics.Metrics
	logger      logging.Logger
	now         func() time.Time
}

func NewDocumentService(runner *dbx.Runner, m repomanager.RepositoryManager, seq Sequencer,
	layout storage.Layout, rep replica.Replicator, mt *metrics.Metrics, logger logging.Logger) *DocumentService {
	return &DocumentService{
		runner:      runner,
		repomanager: m,
		sequences:   seq,
		chunks:      storage.NewChunkWriter(layout, logger),
		layout:      layout,
		replica:     rep,
		metrics:     mt,
		logger:      logger,
		now:         now,
	}
}

// now strips the monotonic reading so stored timestamps compare cleanly.
func now() time.Time {
	return time.Now().UTC().Round(0)
}

// UploadChunk writes one chunk. The last chunk also registers the file; the
// chunk is acknowledged only after the registration committed.
//
// The owner is looked up on the first and on the last chunk only. Uploads
// do not take the edit lock.
func (s *DocumentService) UploadChunk(ctx context.Context, u models.Uploader, c models.Chunk, data io.Reader) (*models.UploadResult, error) {
	if c.OwnerID <= 0 {
		return nil, fmt.Errorf("%w: owner id %d", common.ErrInvalidRequest, c.OwnerID)
	}
	if err := s.layout.ValidateName(c.FileName); err != nil {
		return nil, err
	}
	if c.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", common.ErrInvalidRequest, c.Offset)
	}

	if c.Offset == 0 || c.IsLast {
		if err := s.ensureOwner(ctx, c.OwnerID); err != nil {
			return nil, err
		}
	}

	n, err := s.chunks.WriteChunk(ctx, c.OwnerID, c.FileName, data, c.Offset)
	s.metrics.UploadBytes.Add(float64(n))
	if err != nil {
		return nil, err
	}

	res := &models.UploadResult{Written: n}
	if !c.IsLast {
		return res, nil
	}

	branchNo, err := s.Register(ctx, u, c.OwnerID, c.FileName, c.Published)
	if err != nil {
		return nil, err
	}
	res.Registered = true
	res.BranchNo = branchNo
	return res, nil
}

// Register allocates a branch number and inserts the Document row in one
// transaction. On failure the stored file is left in place.
func (s *DocumentService) Register(ctx context.Context, u models.Uploader, ownerID int64, name string, published bool) (int64, error) {
	log := logging.FromContext(ctx, s.logger).With("owner_id", ownerID, "file", name)

	var branchNo int64
	err := s.runner.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.sequences.Next(ctx, tx, common.SequenceBranchNo)
		if err != nil {
			return err
		}
		doc := &models.Document{
			DocumentID:   ownerID,
			BranchNo:     n,
			UpdFactoryID: u.FactoryID,
			FileName:     name,
			Published:    published,
			UpdateDate:   s.now(),
			UpdateUserID: u.UserID,
		}
		if err := s.repomanager.Documents(tx).Insert(ctx, doc); err != nil {
			return err
		}
		branchNo = n
		return nil
	})
	if err != nil {
		s.metrics.Registrations.WithLabelValues("error").Inc()
		log.Error(ctx, "registration failed; stored file kept", "err", err)
		return 0, fmt.Errorf("register %s: %w", name, err)
	}

	s.metrics.Registrations.WithLabelValues("ok").Inc()
	log.Info(ctx, "document registered", "branch_no", branchNo)

	if path, err := s.layout.FilePath(ownerID, name); err == nil {
		s.replica.Put(ctx, ownerID, name, path)
	}
	return branchNo, nil
}

// List returns the Document rows of ownerID, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID int64) ([]*models.Document, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: owner id %d", common.ErrInvalidRequest, ownerID)
	}
	if err := s.ensureOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.repomanager.Documents(s.runner.DB()).ListByDocumentID(ctx, ownerID)
}

func (s *DocumentService) ensureOwner(ctx context.Context, ownerID int64) error {
	return ensureOwner(ctx, s.repomanager, s.runner.DB(), ownerID)
}

func ensureOwner(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, ownerID int64) error {
	ok, err := m.Sales(db).Exists(ctx, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("owner %d: %w", ownerID, common.ErrorNotFound)
	}
	return nil
}
