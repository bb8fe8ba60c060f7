package gateway

//go:generate mockgen -destination=mock/gateway.go -package mock github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway Gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Gateway abstracts the payment provider operations the billing lifecycle needs.
// Every call is a blocking network round trip; callers bound it through ctx.
// Methods return values (not pointers) to keep gateway shapes out of the domain.
type Gateway interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (Subscription, error)
	RefundPayment(ctx context.Context, paymentID string, speed RefundSpeed) (Refund, error)
	ListSubscriptions(ctx context.Context, count, skip int) ([]Subscription, error)
}

// Status is the gateway-reported state of a subscription.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusHalted    Status = "halted"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// RefundSpeed is the processing speed requested for a refund.
type RefundSpeed string

const (
	RefundSpeedNormal  RefundSpeed = "normal"
	RefundSpeedOptimum RefundSpeed = "optimum"
)

// RefundStatus is the gateway-reported state of a refund.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

// CreateSubscriptionRequest describes a new recurring subscription.
type CreateSubscriptionRequest struct {
	PlanID      string
	AutoNotify  bool
	TotalCycles int
}

// Subscription is a gateway subscription as seen by the billing core.
type Subscription struct {
	ID      string
	Status  Status
	StartAt time.Time
}

// Refund is the gateway acknowledgement of a refund request.
type Refund struct {
	ID        string
	PaymentID string
	Status    RefundStatus
}

// Accepted reports whether the gateway took the refund on (pending or processed).
func (r Refund) Accepted() bool {
	return r.Status == RefundStatusPending || r.Status == RefundStatusProcessed
}

var (
	// ErrUnavailable marks failures where the gateway may or may not have applied
	// the effect: transport errors, timeouts and 5xx/429 answers.
	ErrUnavailable = errors.New("gateway unavailable")
	// ErrMalformedResponse marks gateway answers missing required fields.
	ErrMalformedResponse = errors.New("malformed gateway response")
)

// Error is a gateway rejection carrying the provider's description and an
// HTTP-like status code.
type Error struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Description)
}

// Temporary reports whether the rejection is worth retrying.
func (e *Error) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Is lets temporary rejections match ErrUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable && e.Temporary()
}

// ValidateSubscription fails fast on a subscription missing id or status.
// Listings additionally need the start timestamp.
func ValidateSubscription(s Subscription, requireStart bool) error {
	if s.ID == "" {
		return fmt.Errorf("%w: subscription id missing", ErrMalformedResponse)
	}
	if s.Status == "" {
		return fmt.Errorf("%w: status missing for subscription %s", ErrMalformedResponse, s.ID)
	}
	if requireStart && s.StartAt.IsZero() {
		return fmt.Errorf("%w: start timestamp missing for subscription %s", ErrMalformedResponse, s.ID)
	}
	return nil
}

// ValidateRefund fails fast on a refund missing id or status.
func ValidateRefund(r Refund) error {
	if r.ID == "" {
		return fmt.Errorf("%w: refund id missing", ErrMalformedResponse)
	}
	if r.Status == "" {
		return fmt.Errorf("%w: status missing for refund %s", ErrMalformedResponse, r.ID)
	}
	return nil
}
