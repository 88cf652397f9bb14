package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// multipartOverhead bounds the non-blob parts of an upload request.
const multipartOverhead = 64 << 10

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

type filesHandler struct {
	documents     DocumentService
	edits         EditService
	maxChunkBytes int64
	logger        logging.Logger
}

func newFilesHandler(d DocumentService, e EditService, maxChunkBytes int64, l logging.Logger) *filesHandler {
	return &filesHandler{documents: d, edits: e, maxChunkBytes: maxChunkBytes, logger: l}
}

// Upload accepts one multipart chunk with the parts filename, offset,
// isLastChunk and blob.
func (h *filesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u, _ := uploaderFrom(r.Context())

	ownerID, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	published, err := strconv.ParseBool(mux.Vars(r)["flg"])
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: publish flag %q", common.ErrInvalidRequest, mux.Vars(r)["flg"]))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxChunkBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxChunkBytes); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: %v", common.ErrInvalidRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	offset, err := strconv.ParseInt(r.FormValue("offset"), 10, 64)
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: offset %q", common.ErrInvalidRequest, r.FormValue("offset")))
		return
	}
	isLast, err := formBool(r, "isLastChunk")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	blob, hdr, err := r.FormFile("blob")
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: blob: %v", common.ErrInvalidRequest, err))
		return
	}
	defer blob.Close()
	if hdr.Size > h.maxChunkBytes {
		writeError(w, r, h.logger, fmt.Errorf("%w: chunk of %d bytes exceeds %d", common.ErrInvalidRequest, hdr.Size, h.maxChunkBytes))
		return
	}

	chunk := models.Chunk{
		OwnerID:   ownerID,
		FileName:  r.FormValue("filename"),
		Published: published,
		Offset:    offset,
		IsLast:    isLast,
	}
	if offset == 0 {
		logging.FromContext(r.Context(), h.logger).Info(r.Context(), "upload started", "owner_id", ownerID, "file", chunk.FileName)
	}

	res, err := h.documents.UploadChunk(r.Context(), u, chunk, blob)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, res)
}

// RemoveLock releases the owner's edit lock. It always answers 200.
func (h *filesHandler) RemoveLock(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathID(r)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Warn(r.Context(), "lock release ignored", "err", err)
		writeJSON(w, http.StatusOK, envelope{OK: false, Message: "lock not removed"})
		return
	}

	h.edits.ReleaseLock(r.Context(), ownerID)
	writeJSON(w, http.StatusOK, envelope{OK: true, Message: "lock removed"})
}

type documentsHandler struct {
	documents DocumentService
	logger    logging.Logger
}

func newDocumentsHandler(d DocumentService, l logging.Logger) *documentsHandler {
	return &documentsHandler{documents: d, logger: l}
}

type selectRequest struct {
	OwnerID int64 `json:"ownerId"`
}

func (h *documentsHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	docs, err := h.documents.List(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	writeOK(w, docs)
}

type salesHandler struct {
	sales  SaleService
	edits  EditService
	logger logging.Logger
}

func newSalesHandler(s SaleService, e EditService, l logging.Logger) *salesHandler {
	return &salesHandler{sales: s, edits: e, logger: l}
}

type saleResponse struct {
	SaleID int64 `json:"saleId"`
}

// Update applies an edit submission.
func (h *salesHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, _ := uploaderFrom(r.Context())

	var req models.EditRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.edits.EditSale(r.Context(), u, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, nil)
}

func (h *salesHandler) Register(w http.ResponseWriter, r *http.Request) {
	u, _ := uploaderFrom(r.Context())

	var in models.SaleInput
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.sales.Create(r.Context(), u, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, saleResponse{SaleID: id})
}

func (h *salesHandler) CopyAdd(w http.ResponseWriter, r *http.Request) {
	u, _ := uploaderFrom(r.Context())

	var req models.CopyAddRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	id, err := h.sales.CopyAdd(r.Context(), u, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, saleResponse{SaleID: id})
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: owner id %q", common.ErrInvalidRequest, raw)
	}
	return id, nil
}

// formBool parses an optional boolean form field; an absent field is false.
func formBool(r *http.Request, key string) (bool, error) {
	if _, ok := r.MultipartForm.Value[key]; !ok {
		return false, nil
	}
	raw := r.FormValue(key)
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s %q", common.ErrInvalidRequest, key, raw)
	}
	return v, nil
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", common.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidRequest, err)
	}
	return nil
}
