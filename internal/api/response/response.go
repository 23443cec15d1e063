// Package response provides helpers for writing API responses, including
// the conditional-GET handling shared by the dashboard endpoints.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aipulse/aipulse/internal/api/middleware"
	"github.com/aipulse/aipulse/internal/api/models"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Conditional writes data with an ETag and freshness headers, answering
// 304 Not Modified with an empty body when the client's If-None-Match
// matches the current fingerprint. The Cache-Control max-age advertises
// the poll interval, plus a stale-while-revalidate window of twice that,
// so intermediary caches mirror the server's own SWR behavior.
func Conditional(w http.ResponseWriter, r *http.Request, etag string, pollInterval time.Duration, data any) {
	if etag != "" {
		w.Header().Set("ETag", `"`+etag+`"`)
	}
	maxAge := int(pollInterval.Seconds())
	if maxAge > 0 {
		w.Header().Set("Cache-Control",
			fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", maxAge, 2*maxAge))
	}

	if etag != "" && ifNoneMatchHit(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	JSON(w, r, http.StatusOK, data)
}

// ifNoneMatchHit compares the If-None-Match header against the current tag,
// tolerating quoted and unquoted client values.
func ifNoneMatchHit(header, etag string) bool {
	if header == "" {
		return false
	}
	return header == etag || header == `"`+etag+`"` || header == "*"
}

// Error writes a Problem+JSON response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}
