package qdrant

import (
	"context"
	"errors"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
)

// classifyQdrantError leans on the temporary-error wrapping the client
// applies at the transport layer: connection failures, 5xx, and 429 are
// already marked temporary, so those retry and count against the
// breaker. Anything else, like a missing collection, fails straight
// through without recording.
func classifyQdrantError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err), domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
}
