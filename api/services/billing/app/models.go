package app

import (
	"time"

	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/account"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/sales"
)

// CreateSubscriptionResponse is the domain response returned by the app layer.
// HTTP layer will translate this into JSON.
type CreateSubscriptionResponse struct {
	SubscriptionID string                    `json:"subscriptionId"`
	Status         account.SubscriptionState `json:"status"`
}

// VerifyPaymentRequest carries the gateway's payment confirmation as relayed by the client.
type VerifyPaymentRequest struct {
	PaymentID      string `json:"paymentId"`
	SubscriptionID string `json:"subscriptionId"`
	Signature      string `json:"signature"`
}

type VerifyPaymentResponse struct {
	Verified bool `json:"verified"`
	// AlreadyRecorded is true when the payment had been verified before.
	AlreadyRecorded bool `json:"alreadyRecorded"`
}

type CancelSubscriptionResponse struct {
	Canceled bool `json:"canceled"`
	Refunded bool `json:"refunded"`
}

// SubscriptionItem is one gateway subscription in a listing.
type SubscriptionItem struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	StartAt time.Time `json:"startAt"`
}

type ListPaymentsResponse struct {
	Items  []SubscriptionItem `json:"items"`
	Report sales.Report       `json:"report"`
}

// LedgerItem is a verified payment as reported; the signature is never exposed.
type LedgerItem struct {
	ID                    string    `json:"id"`
	GatewayPaymentID      string    `json:"gatewayPaymentId"`
	GatewaySubscriptionID string    `json:"gatewaySubscriptionId"`
	CreatedAt             time.Time `json:"createdAt"`
}

type LedgerReportResponse struct {
	Items  []LedgerItem `json:"items"`
	Report sales.Report `json:"report"`
}
