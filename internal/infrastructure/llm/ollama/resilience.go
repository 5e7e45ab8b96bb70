package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
)

// HTTPStatusError carries a non-2xx response from the Ollama API along
// with the failing call, so the classifier can separate overload from
// bad requests such as an unknown model name.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, body)
}

var (
	retryRecorded = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	callerFault   = resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	hardFailure   = resilience.ErrorClassification{Retryable: false, RecordFailure: true}
)

// classifyOllamaError decides retry and breaker accounting for a failed
// generation or embedding call. Context cancellation belongs to the
// caller and never counts against the breaker.
func classifyOllamaError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return callerFault
	case resilience.IsCircuitOpen(err):
		return retryRecorded
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if retryableOllamaStatus(statusErr.StatusCode) {
			return retryRecorded
		}
		return callerFault
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retryRecorded
	}
	return hardFailure
}

// wrapTemporaryIfNeeded marks retryable and short-circuited failures as
// temporary so the query path can degrade to lexical-only retrieval
// instead of failing the request outright.
func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOllamaError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func retryableOllamaStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
