package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeRejected    = "rejected"
)

var GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "billing",
	Subsystem: "gateway",
	Name:      "calls_total",
	Help:      "Gateway calls by operation and outcome",
}, []string{"operation", "outcome"})

var LifecycleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "billing",
	Subsystem: "lifecycle",
	Name:      "operations_total",
	Help:      "Lifecycle operations by operation and result",
}, []string{"operation", "result"})

func recordGatewayCall(op, outcome string) {
	GatewayCalls.WithLabelValues(op, outcome).Inc()
}

func recordOperation(op string, err error) {
	LifecycleOperations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbiddenRole):
		return "forbidden_role"
	case errors.Is(err, ErrNoActiveSubscription):
		return "no_active_subscription"
	case errors.Is(err, ErrAlreadySubscribed):
		return "already_subscribed"
	case errors.Is(err, ErrNoPaymentOnRecord):
		return "no_payment_on_record"
	case errors.Is(err, ErrPaymentNotVerified):
		return "payment_not_verified"
	case errors.Is(err, ErrRefundWindowExpired):
		return "refund_window_expired"
	case errors.Is(err, ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, ErrGateway):
		return "gateway_error"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}
