package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/replica"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docsync/internal/server/storage"
)

// SaleService creates owning records and their storage directories.
type SaleService struct {
	runner      *dbx.Runner
	repomanager repomanager.RepositoryManager
	sequences   Sequencer
	layout      storage.Layout
	replica     replica.Replicator
	logger      logging.Logger
	now         func() time.Time
}

func NewSaleService(runner *dbx.Runner, m repomanager.RepositoryManager, seq Sequencer,
	layout storage.Layout, rep replica.Replicator, logger logging.Logger) *SaleService {
	return &SaleService{
		runner:      runner,
		repomanager: m,
		sequences:   seq,
		layout:      layout,
		replica:     rep,
		logger:      logger,
		now:         now,
	}
}

// Create allocates a sale id, inserts the sale and creates its directory.
// A failed mkdir is logged only; the first upload creates it again.
func (s *SaleService) Create(ctx context.Context, u models.Uploader, in models.SaleInput) (int64, error) {
	var id int64
	err := s.runner.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if id, err = s.sequences.Next(ctx, tx, common.SequenceSaleID); err != nil {
			return err
		}
		return s.repomanager.Sales(tx).Create(ctx, s.newSale(id, u, in))
	})
	if err != nil {
		return 0, fmt.Errorf("create sale: %w", err)
	}

	log := logging.FromContext(ctx, s.logger).With("owner_id", id)
	if err := filex.EnsureDir(s.layout.OwnerDir(id)); err != nil {
		log.Warn(ctx, "owner directory not created", "err", err)
	}
	log.Info(ctx, "sale created")
	return id, nil
}

// CopyAdd creates a sale from req.Sale and registers a copy of each named
// file of req.FromSaleID under it. If the transaction fails the copied
// files are removed again.
func (s *SaleService) CopyAdd(ctx context.Context, u models.Uploader, req models.CopyAddRequest) (int64, error) {
	if req.FromSaleID <= 0 {
		return 0, fmt.Errorf("%w: source sale id is required", common.ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(req.Files))
	for _, name := range req.Files {
		if err := s.layout.ValidateName(name); err != nil {
			return 0, err
		}
		if _, ok := seen[name]; ok {
			return 0, fmt.Errorf("%w: file %q listed twice", common.ErrInvalidRequest, name)
		}
		seen[name] = struct{}{}
	}
	if err := ensureOwner(ctx, s.repomanager, s.runner.DB(), req.FromSaleID); err != nil {
		return 0, err
	}

	var (
		id     int64
		copied []string
	)
	err := s.runner.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if id, err = s.sequences.Next(ctx, tx, common.SequenceSaleID); err != nil {
			return err
		}
		if err := s.repomanager.Sales(tx).Create(ctx, s.newSale(id, u, req.Sale)); err != nil {
			return err
		}

		dst := s.layout.OwnerDir(id)
		if err := filex.EnsureDir(dst); err != nil {
			return err
		}

		at := s.now()
		docs := s.repomanager.Documents(tx)
		for _, name := range req.Files {
			src := filepath.Join(s.layout.OwnerDir(req.FromSaleID), name)
			if err := filex.CopyFile(src, filepath.Join(dst, name)); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("file %q of sale %d: %w", name, req.FromSaleID, common.ErrorNotFound)
				}
				return err
			}
			copied = append(copied, name)

			branchNo, err := s.sequences.Next(ctx, tx, common.SequenceBranchNo)
			if err != nil {
				return err
			}
			if err := docs.Insert(ctx, &models.Document{
				DocumentID:   id,
				BranchNo:     branchNo,
				UpdFactoryID: u.FactoryID,
				FileName:     name,
				Published:    req.Published,
				UpdateDate:   at,
				UpdateUserID: u.UserID,
			}); err != nil {
				return err
			}
		}
		return nil
	})

	log := logging.FromContext(ctx, s.logger).With("from_sale_id", req.FromSaleID, "owner_id", id)
	if err != nil {
		for _, name := range copied {
			if rErr := filex.RemoveIfExists(filepath.Join(s.layout.OwnerDir(id), name)); rErr != nil {
				log.Error(ctx, "copied file not removed", "file", name, "err", rErr)
			}
		}
		if id > 0 {
			// only succeeds when the directory is empty
			_ = os.Remove(s.layout.OwnerDir(id))
		}
		return 0, fmt.Errorf("copy sale %d: %w", req.FromSaleID, err)
	}

	for _, name := range copied {
		s.replica.Put(ctx, id, name, filepath.Join(s.layout.OwnerDir(id), name))
	}
	log.Info(ctx, "sale copied", "files", len(copied))
	return id, nil
}

func (s *SaleService) newSale(id int64, u models.Uploader, in models.SaleInput) *models.Sale {
	return &models.Sale{
		SaleID:       id,
		DocumentID:   id,
		ProductNo:    in.ProductNo,
		Quantity:     in.Quantity,
		Remarks:      in.Remarks,
		Status:       in.Status,
		FactoryID:    u.FactoryID,
		UpdateDate:   s.now(),
		UpdateUserID: u.UserID,
	}
}
