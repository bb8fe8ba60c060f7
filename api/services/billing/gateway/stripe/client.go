package stripegw

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/client"

	gw "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway"
)

// stripeClient is the Stripe SDK-backed implementation of the gateway. It owns its
// own API handle so no package-level key is shared across the process.
type stripeClient struct {
	api *client.API
}

// New returns a Gateway backed by the official Stripe SDK.
func New(secretKey string) gw.Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return stripeClient{api: api}
}

// CreateSubscription creates a customer and a subscription on the plan that
// ends after TotalCycles monthly charges.
func (c stripeClient) CreateSubscription(ctx context.Context, req gw.CreateSubscriptionRequest) (gw.Subscription, error) {
	custParams := &stripe.CustomerParams{}
	custParams.Context = ctx
	custParams.AddMetadata("plan_id", req.PlanID)
	cust, err := c.api.Customers.New(custParams)
	if err != nil {
		return gw.Subscription{}, convertError(ctx, err)
	}
	if cust == nil || cust.ID == "" {
		return gw.Subscription{}, fmt.Errorf("%w: customer id missing", gw.ErrMalformedResponse)
	}

	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(cust.ID),
		Items:           []*stripe.SubscriptionItemsParams{{Plan: stripe.String(req.PlanID)}},
		PaymentBehavior: stripe.String("allow_incomplete"),
	}
	if req.TotalCycles > 0 {
		params.CancelAt = stripe.Int64(time.Now().AddDate(0, req.TotalCycles, 0).Unix())
	}
	params.Context = ctx
	params.AddMetadata("total_count", strconv.Itoa(req.TotalCycles))
	params.AddMetadata("customer_notify", strconv.FormatBool(req.AutoNotify))

	created, err := c.api.Subscriptions.New(params)
	if err != nil {
		return gw.Subscription{}, convertError(ctx, err)
	}
	return toSubscription(created, false)
}

// CancelSubscription cancels immediately. Cancelling an already cancelled
// subscription reports success with the cancelled state.
func (c stripeClient) CancelSubscription(ctx context.Context, subscriptionID string) (gw.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	canceled, err := c.api.Subscriptions.Cancel(subscriptionID, params)
	if err == nil {
		return toSubscription(canceled, false)
	}

	var se *stripe.Error
	if !errors.As(err, &se) || se.HTTPStatusCode >= 500 {
		return gw.Subscription{}, convertError(ctx, err)
	}
	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	current, getErr := c.api.Subscriptions.Get(subscriptionID, getParams)
	if getErr == nil && current != nil && current.Status == stripe.SubscriptionStatusCanceled {
		return toSubscription(current, false)
	}
	return gw.Subscription{}, convertError(ctx, err)
}

// RefundPayment refunds the full amount of a charge. The idempotency key makes
// repeated refunds of the same payment collapse into one.
func (c stripeClient) RefundPayment(ctx context.Context, paymentID string, speed gw.RefundSpeed) (gw.Refund, error) {
	params := &stripe.RefundParams{Charge: stripe.String(paymentID)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + paymentID)
	params.AddMetadata("speed", string(speed))

	r, err := c.api.Refunds.New(params)
	if err != nil {
		return gw.Refund{}, convertError(ctx, err)
	}
	if r == nil {
		return gw.Refund{}, fmt.Errorf("%w: empty refund", gw.ErrMalformedResponse)
	}
	refund := gw.Refund{ID: r.ID, PaymentID: paymentID, Status: mapRefundStatus(string(r.Status))}
	if err := gw.ValidateRefund(refund); err != nil {
		return gw.Refund{}, err
	}
	return refund, nil
}

// ListSubscriptions returns up to count subscriptions after skipping skip,
// newest first, in every state.
func (c stripeClient) ListSubscriptions(ctx context.Context, count, skip int) ([]gw.Subscription, error) {
	pageSize := count + skip
	if pageSize > 100 {
		pageSize = 100
	}
	params := &stripe.SubscriptionListParams{Status: string(stripe.SubscriptionStatusAll)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(pageSize))

	out := make([]gw.Subscription, 0, count)
	seen := 0
	it := c.api.Subscriptions.List(params)
	for len(out) < count && it.Next() {
		seen++
		if seen <= skip {
			continue
		}
		s, err := toSubscription(it.Subscription(), true)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := it.Err(); err != nil {
		return nil, convertError(ctx, err)
	}
	return out, nil
}

func toSubscription(s *stripe.Subscription, requireStart bool) (gw.Subscription, error) {
	if s == nil {
		return gw.Subscription{}, fmt.Errorf("%w: empty subscription", gw.ErrMalformedResponse)
	}
	start := s.StartDate
	if start == 0 {
		start = s.Created
	}
	out := gw.Subscription{ID: s.ID, Status: mapStatus(string(s.Status))}
	if start > 0 {
		out.StartAt = time.Unix(start, 0).UTC()
	}
	if err := gw.ValidateSubscription(out, requireStart); err != nil {
		return gw.Subscription{}, err
	}
	return out, nil
}
