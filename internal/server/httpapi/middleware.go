package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/auth"
	"github.com/dmitrijs2005/docsync/internal/server/metrics"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

type ctxKey string

const uploaderKey ctxKey = "uploader"

func uploaderFrom(ctx context.Context) (models.Uploader, bool) {
	u, ok := ctx.Value(uploaderKey).(models.Uploader)
	return u, ok
}

// traceMiddleware assigns every request a trace id, echoes it in the
// response and stores a logger carrying it in the request context.
func traceMiddleware(logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(common.TraceHeaderName)
			if traceID == "" {
				traceID = strings.ReplaceAll(uuid.New().String(), "-", "")
			}
			w.Header().Set(common.TraceHeaderName, traceID)

			l := logger.With("trace_id", traceID, "route", routeName(r))
			next.ServeHTTP(w, r.WithContext(logging.WithContext(r.Context(), l)))
		})
	}
}

// authMiddleware requires a valid bearer token and stores the uploader it
// names in the request context.
func authMiddleware(secret []byte, logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, r, logger, fmt.Errorf("missing token: %w", common.ErrorUnauthorized))
				return
			}

			u, err := auth.ParseToken(token, secret)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), uploaderKey, u)
			l := logging.FromContext(ctx, logger).With("user_id", u.UserID)
			next.ServeHTTP(w, r.WithContext(logging.WithContext(ctx, l)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return r.Header.Get(common.AccessTokenHeaderName)
}

// metricsMiddleware observes the duration of every routed request.
func metricsMiddleware(mt *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			mt.RequestDuration.WithLabelValues(routeName(r), strconv.Itoa(rec.status)).
				Observe(time.Since(started).Seconds())
		})
	}
}

// recoverMiddleware turns a handler panic into a 500 response.
func recoverMiddleware(logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					writeError(w, r, logger, fmt.Errorf("panic: %v", p))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
