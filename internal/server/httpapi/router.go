// Package httpapi exposes the document pipeline over HTTP: chunked uploads,
// edit submissions, lock release, listing and owning-record creation.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// DocumentService is the upload and listing side of the pipeline.
type DocumentService interface {
	UploadChunk(ctx context.Context, u models.Uploader, c models.Chunk, data io.Reader) (*models.UploadResult, error)
	List(ctx context.Context, ownerID int64) ([]*models.Document, error)
}

// EditService applies edit submissions and releases edit locks.
type EditService interface {
	EditSale(ctx context.Context, u models.Uploader, req *models.EditRequest) error
	ReleaseLock(ctx context.Context, ownerID int64)
}

// SaleService creates owning records.
type SaleService interface {
	Create(ctx context.Context, u models.Uploader, in models.SaleInput) (int64, error)
	CopyAdd(ctx context.Context, u models.Uploader, req models.CopyAddRequest) (int64, error)
}

// Options configures NewRouter.
type Options struct {
	Documents     DocumentService
	Edits         EditService
	Sales         SaleService
	Metrics       *metrics.Metrics
	Logger        logging.Logger
	SecretKey     []byte
	MaxChunkBytes int64
}

func NewRouter(o Options) *mux.Router {
	logger := o.Logger.With("module", "http_server")

	router := mux.NewRouter()
	router.Use(traceMiddleware(logger), metricsMiddleware(o.Metrics), recoverMiddleware(logger))
	router.Handle("/metrics", o.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware(o.SecretKey, logger))

	filesHandler := newFilesHandler(o.Documents, o.Edits, o.MaxChunkBytes, logger)
	api.HandleFunc("/files/upload/{id}/{flg}", filesHandler.Upload).Methods(http.MethodPost)
	api.HandleFunc("/files/remove/{id}", filesHandler.RemoveLock).Methods(http.MethodGet)

	documentsHandler := newDocumentsHandler(o.Documents, logger)
	api.HandleFunc("/documents/select", documentsHandler.Select).Methods(http.MethodPost)

	salesHandler := newSalesHandler(o.Sales, o.Edits, logger)
	api.HandleFunc("/sales/update", salesHandler.Update).Methods(http.MethodPost)
	api.HandleFunc("/sales/register", salesHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/sales/copyadd", salesHandler.CopyAdd).Methods(http.MethodPost)

	return router
}
