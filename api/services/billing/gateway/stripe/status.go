package stripegw

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go"

	gw "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway"
)

// mapStatus folds Stripe subscription states into the gateway states the
// billing core understands. Unknown or empty input yields "".
func mapStatus(s string) gw.Status {
	switch s {
	case "incomplete":
		return gw.StatusCreated
	case "active", "trialing":
		return gw.StatusActive
	case "past_due", "unpaid":
		return gw.StatusHalted
	case "canceled":
		return gw.StatusCanceled
	case "incomplete_expired":
		return gw.StatusExpired
	case "":
		return ""
	default:
		return gw.StatusPending
	}
}

func mapRefundStatus(s string) gw.RefundStatus {
	switch s {
	case "succeeded":
		return gw.RefundStatusProcessed
	case "pending":
		return gw.RefundStatusPending
	case "failed", "canceled":
		return gw.RefundStatusFailed
	default:
		return ""
	}
}

// convertError turns SDK errors into the gateway error domain. Anything that is
// not an explicit Stripe answer is treated as unavailable: the request may
// have reached Stripe.
func convertError(ctx context.Context, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		desc := se.Msg
		if desc == "" {
			desc = err.Error()
		}
		return &gw.Error{StatusCode: se.HTTPStatusCode, Code: string(se.Code), Description: desc}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", gw.ErrUnavailable, ctxErr)
	}
	return fmt.Errorf("%w: %v", gw.ErrUnavailable, err)
}
