package app

import "errors"

// Typed errors for the billing app layer. These enable HTTP mapping without
// relying on gateway or storage error types at the transport layer.
var (
	// ErrForbiddenRole indicates an admin account attempted a purchase-side operation.
	ErrForbiddenRole = errors.New("forbidden for this role")
	// ErrNoActiveSubscription indicates the account has no subscription to act on.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrAlreadySubscribed indicates the account already holds an active subscription.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrNoPaymentOnRecord indicates a cancellation found no verified payment.
	ErrNoPaymentOnRecord = errors.New("no payment on record")
	// ErrPaymentNotVerified indicates the payment signature did not match.
	ErrPaymentNotVerified = errors.New("payment not verified")
	// ErrRefundWindowExpired indicates the subscription was cancelled but is no
	// longer eligible for a refund. The cancellation must not be retried.
	ErrRefundWindowExpired = errors.New("refund window expired")
	// ErrGatewayUnavailable indicates the gateway could not be reached or timed out;
	// the remote effect may or may not have been applied.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrGateway indicates the gateway rejected the request.
	ErrGateway = errors.New("gateway error")
	// ErrAccountNotFound indicates the account id does not resolve.
	ErrAccountNotFound = errors.New("account not found")
	// ErrBadRequest indicates missing or invalid input.
	ErrBadRequest = errors.New("bad request")
	// ErrDatabase indicates a database-related failure.
	ErrDatabase = errors.New("database error")
)
