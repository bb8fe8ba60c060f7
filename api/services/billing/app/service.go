package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tbeaudouin05/billing-lifecycle/api/config"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/account"
	gw "github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/settlement"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/signature"
)

// Service defines the business operations of the subscription billing lifecycle.
type Service interface {
	CreateSubscription(ctx context.Context, accountID string) (CreateSubscriptionResponse, error)
	VerifyPayment(ctx context.Context, accountID string, req VerifyPaymentRequest) (VerifyPaymentResponse, error)
	CancelSubscription(ctx context.Context, accountID string) (CancelSubscriptionResponse, error)
	GetSubscription(ctx context.Context, accountID string) (account.Subscription, error)
	// ListPayments and LedgerReport are restricted to admin accounts.
	ListPayments(ctx context.Context, accountID string, count, skip int) (ListPaymentsResponse, error)
	LedgerReport(ctx context.Context, accountID string, count, skip int) (LedgerReportResponse, error)
}

// Settings carries the billing parameters the service is built with.
// Zero values fall back to the constants in config.
type Settings struct {
	PlanID          string
	SignatureSecret string
	GatewayTimeout  time.Duration
	RefundWindow    time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

type serviceImpl struct {
	gw       gw.Gateway
	accounts account.Store
	payments ledger.Ledger
	settler  settlement.Settler
	verifier signature.Verifier
	planID   string
	timeout  time.Duration
	window   time.Duration
	now      func() time.Time
	locks    *accountLocks
}

func NewService(g gw.Gateway, accounts account.Store, payments ledger.Ledger, settler settlement.Settler, s Settings) Service {
	if s.GatewayTimeout <= 0 {
		s.GatewayTimeout = config.DefaultGatewayTimeout
	}
	if s.RefundWindow <= 0 {
		s.RefundWindow = config.RefundWindow
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return serviceImpl{
		gw:       g,
		accounts: accounts,
		payments: payments,
		settler:  settler,
		verifier: signature.NewVerifier(s.SignatureSecret),
		planID:   s.PlanID,
		timeout:  s.GatewayTimeout,
		window:   s.RefundWindow,
		now:      s.Now,
		locks:    newAccountLocks(),
	}
}

// gatewayContext bounds a single gateway call.
func (s serviceImpl) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// gatewayError classifies an adapter failure. Timeouts and transport failures
// are retryable (ErrGatewayUnavailable); explicit rejections keep the
// gateway's description in the chain (ErrGateway).
func gatewayError(op string, err error) error {
	if errors.Is(err, gw.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		recordGatewayCall(op, outcomeUnavailable)
		return fmt.Errorf("%w: %s: %w", ErrGatewayUnavailable, op, err)
	}
	recordGatewayCall(op, outcomeRejected)
	return fmt.Errorf("%w: %s: %w", ErrGateway, op, err)
}

func (s serviceImpl) loadAccount(ctx context.Context, accountID string) (account.Account, error) {
	if accountID == "" {
		return account.Account{}, fmt.Errorf("%w: account id is required", ErrBadRequest)
	}
	acct, err := s.accounts.Get(ctx, accountID)
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("%w: error retrieving account: %v", ErrDatabase, err)
	}
	return acct, nil
}

const maxSaveAttempts = 3

// saveSubscription writes the sub-record returned by next. next receives the
// sub-record currently stored and may refuse the write with an error. On a
// version conflict the account is reloaded and next runs again against the
// fresh state, so a concurrent writer's change is always seen before retrying.
func (s serviceImpl) saveSubscription(ctx context.Context, acct *account.Account, next func(current account.Subscription) (account.Subscription, error)) error {
	for attempt := 1; ; attempt++ {
		sub, err := next(acct.Subscription)
		if err != nil {
			return err
		}
		version, err := s.accounts.UpdateSubscription(ctx, acct.ID, acct.Version, sub)
		if err == nil {
			acct.Subscription = sub
			acct.Version = version
			return nil
		}
		if !errors.Is(err, account.ErrVersionConflict) || attempt == maxSaveAttempts {
			return fmt.Errorf("%w: error saving subscription: %v", ErrDatabase, err)
		}
		fresh, err := s.accounts.Get(ctx, acct.ID)
		if err != nil {
			return fmt.Errorf("%w: error reloading account: %v", ErrDatabase, err)
		}
		*acct = fresh
	}
}
