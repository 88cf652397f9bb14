// Package sales persists owning records (sale_mng).
package sales

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, sale *models.Sale) error
	Exists(ctx context.Context, saleID int64) (bool, error)
	// Update sets the given columns of one sale. Unknown columns are
	// rejected with common.ErrInvalidRequest, a missing sale with
	// common.ErrorNotFound.
	Update(ctx context.Context, saleID int64, fields map[string]any, userID int64, at time.Time) error
}
