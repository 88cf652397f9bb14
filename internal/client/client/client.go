// Package client talks to the document sync server over HTTP: chunked
// uploads, lock release and document listing.
//
// Failures are reported as sentinel errors matched with errors.Is:
// ErrUnavailable for transport failures and ErrUnauthorized, ErrBadRequest,
// ErrNotFound, ErrConflict, ErrServer by response status. The server's
// message is kept in the error text.
package client

import (
	"context"

	"github.com/dmitrijs2005/docsync/internal/client/models"
)

type Client interface {
	UploadFile(ctx context.Context, ownerID int64, path string, published bool) (int64, error)
	Unlock(ctx context.Context, ownerID int64) error
	List(ctx context.Context, ownerID int64) ([]models.Document, error)
}
