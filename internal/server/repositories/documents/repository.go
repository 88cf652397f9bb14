// Package documents persists Document rows (document_mng).
package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docsync/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, doc *models.Document) error
	ListByDocumentID(ctx context.Context, documentID int64) ([]*models.Document, error)
	UpdatePublishFlag(ctx context.Context, documentID int64, branchNos []int64, published bool, userID int64, at time.Time) (int64, error)
	DeleteBranches(ctx context.Context, documentID int64, branchNos []int64) (int64, error)
	// CountFileReferences counts rows of documentID that reference fileName,
	// ignoring the rows listed in excludeBranches.
	CountFileReferences(ctx context.Context, documentID int64, fileName string, excludeBranches []int64) (int64, error)
}
