package httpadapter

import (
	"net/http"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// mapErrorToHTTPStatus translates domain error kinds to status codes.
// An unavailable index is 409 rather than 503: it reflects the durable
// state of the knowledge base, not a transient outage, so retrying the
// same request will not help until documents are processed.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrKnowledgeBaseNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
