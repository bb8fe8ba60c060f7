package router

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/app"
	gw "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway"
)

// toStatus maps app errors onto gRPC status codes; the gateway mux turns those
// into HTTP statuses.
func toStatus(err error) error {
	switch {
	case errors.Is(err, app.ErrBadRequest), errors.Is(err, app.ErrPaymentNotVerified):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, app.ErrForbiddenRole):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, app.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, app.ErrNoActiveSubscription),
		errors.Is(err, app.ErrNoPaymentOnRecord),
		errors.Is(err, app.ErrAlreadySubscribed),
		errors.Is(err, app.ErrRefundWindowExpired):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, app.ErrGatewayUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, app.ErrGateway):
		var gwErr *gw.Error
		if errors.As(err, &gwErr) {
			return status.Error(codeFromHTTP(gwErr.StatusCode), gwErr.Description)
		}
		return status.Error(codes.Unknown, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// codeFromHTTP keeps the gateway's HTTP-like status visible to callers.
func codeFromHTTP(code int) codes.Code {
	switch code {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.Aborted
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	}
	if code >= 500 {
		return codes.Unavailable
	}
	return codes.Unknown
}
