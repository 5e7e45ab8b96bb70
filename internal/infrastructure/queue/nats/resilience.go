package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
)

var (
	brokerTransient = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	callerCanceled  = resilience.ErrorClassification{Retryable: false, RecordFailure: false}
)

// classifyNATSError treats connection-level broker failures as
// transient. Anything else, such as a bad subject, is not worth a
// retry and still counts against the breaker.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return callerCanceled
	case resilience.IsCircuitOpen(err):
		return brokerTransient
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected):
		return brokerTransient
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// wrapTemporaryIfNeeded lets publish failures surface as temporary so
// document uploads report 503 rather than a generic server error when
// the broker is down.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
