package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

// envelope is the body of every API response.
type envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Data: data})
}

// writeError maps err to a status code. Server-side failures are logged
// with the request logger and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, fallback logging.Logger, err error) {
	status := statusFor(err)
	log := logging.FromContext(r.Context(), fallback)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "err", err)
		msg = common.ErrorInternal.Error()
	} else {
		log.Info(r.Context(), "request rejected", "status", status, "err", err)
	}

	writeJSON(w, status, envelope{OK: false, Message: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrLocked),
		errors.Is(err, common.ErrAlreadyExists),
		errors.Is(err, common.ErrStaleBackup):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
