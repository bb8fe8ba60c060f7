package ledger

import (
	"context"
	"errors"
	"time"
)

// PaymentRecord is a verified payment. Records are never updated; they are
// removed only once the payment has been refunded.
type PaymentRecord struct {
	ID                    string    `json:"id"`
	GatewayPaymentID      string    `json:"gatewayPaymentId"`
	GatewaySubscriptionID string    `json:"gatewaySubscriptionId"`
	Signature             string    `json:"signature"`
	CreatedAt             time.Time `json:"createdAt"`
}

var ErrNotFound = errors.New("payment record not found")

// Ledger is the append-only store of verified payments.
type Ledger interface {
	// Create inserts record unless one with the same GatewayPaymentID exists.
	// It returns the stored record and whether this call created it.
	Create(ctx context.Context, record PaymentRecord) (PaymentRecord, bool, error)
	// FindBySubscriptionID returns the most recent record for the subscription
	// or ErrNotFound.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (PaymentRecord, error)
	Delete(ctx context.Context, record PaymentRecord) error
	// List returns records newest first.
	List(ctx context.Context, count, skip int) ([]PaymentRecord, error)
}
