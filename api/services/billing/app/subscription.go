package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tbeaudouin05/billing-lifecycle/api/config"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/account"
	gw "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
)

// CreateSubscription opens a recurring subscription for a non-admin account.
// The account is written only after the gateway has answered successfully.
func (s serviceImpl) CreateSubscription(ctx context.Context, accountID string) (resp CreateSubscriptionResponse, err error) {
	defer func() { recordOperation("create", err) }()

	unlock := s.locks.lock(accountID)
	defer unlock()

	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return CreateSubscriptionResponse{}, err
	}
	if acct.IsAdmin() {
		return CreateSubscriptionResponse{}, fmt.Errorf("%w: admins cannot purchase a subscription", ErrForbiddenRole)
	}
	if acct.Subscription.ID != "" && acct.Subscription.Status == account.StateActive {
		return CreateSubscriptionResponse{}, fmt.Errorf("%w: subscription %s is active", ErrAlreadySubscribed, acct.Subscription.ID)
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	created, err := s.gw.CreateSubscription(gwCtx, gw.CreateSubscriptionRequest{
		PlanID:      s.planID,
		AutoNotify:  config.CustomerNotify,
		TotalCycles: config.TotalBillingCycles,
	})
	cancel()
	if err != nil {
		return CreateSubscriptionResponse{}, gatewayError("create_subscription", err)
	}
	if err := gw.ValidateSubscription(created, false); err != nil {
		return CreateSubscriptionResponse{}, gatewayError("create_subscription", err)
	}
	recordGatewayCall("create_subscription", outcomeOK)

	state := stateFromGateway(created.Status)
	if state == account.StateActive {
		// Only a verified payment may activate a subscription.
		slog.Warn("gateway reported new subscription as active, storing as created",
			"account_id", accountID, "subscription_id", created.ID)
		state = account.StateCreated
	}

	if err := s.saveSubscription(ctx, &acct, func(cur account.Subscription) (account.Subscription, error) {
		if cur.ID != "" && cur.Status == account.StateActive {
			return cur, fmt.Errorf("%w: subscription %s became active meanwhile", ErrAlreadySubscribed, cur.ID)
		}
		return account.Subscription{ID: created.ID, Status: state}, nil
	}); err != nil {
		slog.Error("subscription created at gateway but not stored",
			"account_id", accountID, "subscription_id", created.ID, "err", err)
		return CreateSubscriptionResponse{}, err
	}

	slog.Info("subscription created", "account_id", accountID, "subscription_id", created.ID, "status", state)
	return CreateSubscriptionResponse{SubscriptionID: created.ID, Status: state}, nil
}

// VerifyPayment checks the gateway signature of a payment against the
// subscription stored on the account, records the payment and activates the
// subscription. Verifying the same payment twice records it once.
func (s serviceImpl) VerifyPayment(ctx context.Context, accountID string, req VerifyPaymentRequest) (resp VerifyPaymentResponse, err error) {
	defer func() { recordOperation("verify", err) }()

	if req.PaymentID == "" || req.Signature == "" {
		return VerifyPaymentResponse{}, fmt.Errorf("%w: payment id and signature are required", ErrBadRequest)
	}

	unlock := s.locks.lock(accountID)
	defer unlock()

	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return VerifyPaymentResponse{}, err
	}
	subscriptionID := acct.Subscription.ID
	if subscriptionID == "" || acct.Subscription.Status == account.StateCanceled {
		return VerifyPaymentResponse{}, fmt.Errorf("%w: nothing to verify a payment against", ErrNoActiveSubscription)
	}

	// The stored id is signed over, never the claimed one.
	if !s.verifier.Verify(subscriptionID, req.PaymentID, req.Signature) {
		slog.Warn("payment signature mismatch", "account_id", accountID, "payment_id", req.PaymentID)
		return VerifyPaymentResponse{}, fmt.Errorf("%w: signature mismatch for payment %s", ErrPaymentNotVerified, req.PaymentID)
	}
	if req.SubscriptionID != "" && req.SubscriptionID != subscriptionID {
		slog.Warn("claimed subscription id differs from stored one",
			"account_id", accountID, "claimed", req.SubscriptionID, "subscription_id", subscriptionID)
	}

	record, created, err := s.payments.Create(ctx, ledger.PaymentRecord{
		GatewayPaymentID:      req.PaymentID,
		GatewaySubscriptionID: subscriptionID,
		Signature:             req.Signature,
		CreatedAt:             s.now().UTC(),
	})
	if err != nil {
		return VerifyPaymentResponse{}, fmt.Errorf("%w: error recording payment: %v", ErrDatabase, err)
	}

	if acct.Subscription.Status != account.StateActive {
		if err := s.saveSubscription(ctx, &acct, func(cur account.Subscription) (account.Subscription, error) {
			if cur.ID != subscriptionID || cur.Status == account.StateCanceled {
				return cur, fmt.Errorf("%w: subscription %s changed while verifying", ErrNoActiveSubscription, subscriptionID)
			}
			return account.Subscription{ID: subscriptionID, Status: account.StateActive}, nil
		}); err != nil {
			if created {
				// The payment was not applied; drop the record so a refunded payment is not resurrected.
				if delErr := s.payments.Delete(ctx, record); delErr != nil && !errors.Is(delErr, ledger.ErrNotFound) {
					slog.Error("failed to drop payment record after rejected activation",
						"account_id", accountID, "payment_id", req.PaymentID, "err", delErr)
				}
			}
			return VerifyPaymentResponse{}, err
		}
	}

	slog.Info("payment verified", "account_id", accountID, "subscription_id", subscriptionID,
		"payment_id", req.PaymentID, "first_seen", created)
	return VerifyPaymentResponse{Verified: true, AlreadyRecorded: !created}, nil
}

// CancelSubscription cancels at the gateway, then refunds the last verified
// payment when it is inside the refund window.
//
// Order is fixed: gateway cancel, refund, then ledger delete and account clear
// in one commit. A failure after the gateway cancel leaves the subscription id
// and ledger record in place so calling CancelSubscription again resumes the
// sequence.
// When the refund window has passed the response reports Canceled and the
// error is ErrRefundWindowExpired; subscription id and record are kept.
func (s serviceImpl) CancelSubscription(ctx context.Context, accountID string) (resp CancelSubscriptionResponse, err error) {
	defer func() { recordOperation("cancel", err) }()

	unlock := s.locks.lock(accountID)
	defer unlock()

	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return CancelSubscriptionResponse{}, err
	}
	if acct.IsAdmin() {
		return CancelSubscriptionResponse{}, fmt.Errorf("%w: admins cannot cancel a subscription", ErrForbiddenRole)
	}
	subscriptionID := acct.Subscription.ID
	if subscriptionID == "" {
		return CancelSubscriptionResponse{}, fmt.Errorf("%w: account has no subscription", ErrNoActiveSubscription)
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	canceled, err := s.gw.CancelSubscription(gwCtx, subscriptionID)
	cancel()
	if err != nil {
		return CancelSubscriptionResponse{}, gatewayError("cancel_subscription", err)
	}
	if err := gw.ValidateSubscription(canceled, false); err != nil {
		return CancelSubscriptionResponse{}, gatewayError("cancel_subscription", err)
	}
	recordGatewayCall("cancel_subscription", outcomeOK)
	if canceled.Status != gw.StatusCanceled {
		slog.Warn("gateway cancel returned unexpected status",
			"account_id", accountID, "subscription_id", subscriptionID, "status", canceled.Status)
	}

	if err := s.saveSubscription(ctx, &acct, func(cur account.Subscription) (account.Subscription, error) {
		if cur.ID != subscriptionID {
			return cur, fmt.Errorf("%w: subscription %s was replaced while canceling", ErrNoActiveSubscription, subscriptionID)
		}
		return account.Subscription{ID: subscriptionID, Status: account.StateCanceled}, nil
	}); err != nil {
		return CancelSubscriptionResponse{Canceled: true}, err
	}
	resp = CancelSubscriptionResponse{Canceled: true}

	record, err := s.payments.FindBySubscriptionID(ctx, subscriptionID)
	if errors.Is(err, ledger.ErrNotFound) {
		return resp, fmt.Errorf("%w: subscription %s", ErrNoPaymentOnRecord, subscriptionID)
	}
	if err != nil {
		return resp, fmt.Errorf("%w: error retrieving payment: %v", ErrDatabase, err)
	}

	elapsed := s.now().Sub(record.CreatedAt)
	if elapsed >= s.window {
		slog.Warn("subscription canceled outside refund window",
			"account_id", accountID, "subscription_id", subscriptionID, "payment_id", record.GatewayPaymentID, "elapsed", elapsed)
		return resp, fmt.Errorf("%w: payment %s verified %s ago", ErrRefundWindowExpired, record.GatewayPaymentID, elapsed.Round(time.Second))
	}

	gwCtx, cancel = s.gatewayContext(ctx)
	refund, err := s.gw.RefundPayment(gwCtx, record.GatewayPaymentID, gw.RefundSpeedOptimum)
	cancel()
	if err == nil {
		err = gw.ValidateRefund(refund)
	}
	if err == nil && !refund.Accepted() {
		err = &gw.Error{Description: fmt.Sprintf("refund %s reported %s", refund.ID, refund.Status)}
	}
	if err != nil {
		slog.Error("subscription canceled but refund failed",
			"account_id", accountID, "subscription_id", subscriptionID, "payment_id", record.GatewayPaymentID, "err", err)
		return resp, gatewayError("refund_payment", err)
	}
	recordGatewayCall("refund_payment", outcomeOK)

	cleared, err := s.settler.Settle(ctx, accountID, record)
	if err != nil {
		slog.Error("refund accepted but not settled locally",
			"account_id", accountID, "subscription_id", subscriptionID, "refund_id", refund.ID, "err", err)
		return resp, fmt.Errorf("%w: error settling refund: %v", ErrDatabase, err)
	}
	if !cleared {
		slog.Warn("account holds another subscription, left untouched",
			"account_id", accountID, "subscription_id", subscriptionID)
	}

	slog.Info("subscription canceled and refunded",
		"account_id", accountID, "subscription_id", subscriptionID, "refund_id", refund.ID)
	return CancelSubscriptionResponse{Canceled: true, Refunded: true}, nil
}

// GetSubscription returns the account's subscription sub-record.
func (s serviceImpl) GetSubscription(ctx context.Context, accountID string) (account.Subscription, error) {
	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return account.Subscription{}, err
	}
	return acct.Subscription, nil
}

// stateFromGateway folds gateway states into the local state machine.
func stateFromGateway(st gw.Status) account.SubscriptionState {
	switch st {
	case gw.StatusActive, gw.StatusHalted:
		return account.StateActive
	case gw.StatusCanceled, gw.StatusCompleted, gw.StatusExpired:
		return account.StateCanceled
	default:
		return account.StateCreated
	}
}
