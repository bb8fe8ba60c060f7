package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tbeaudouin05/billing-lifecycle/api/config"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/sales"
)

// normalizePage applies listing defaults: count 10 when zero, capped at MaxListCount.
func normalizePage(count, skip int) (int, int, error) {
	if count < 0 || skip < 0 {
		return 0, 0, fmt.Errorf("%w: count and skip must not be negative", ErrBadRequest)
	}
	if count == 0 {
		count = config.DefaultListCount
	}
	if count > config.MaxListCount {
		count = config.MaxListCount
	}
	return count, skip, nil
}

// requireAdmin resolves the caller and rejects anyone but an admin.
func (s serviceImpl) requireAdmin(ctx context.Context, accountID string) error {
	acct, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !acct.IsAdmin() {
		return fmt.Errorf("%w: payment reports are restricted to admins", ErrForbiddenRole)
	}
	return nil
}

// ListPayments lists gateway subscriptions and buckets them by start month.
func (s serviceImpl) ListPayments(ctx context.Context, accountID string, count, skip int) (resp ListPaymentsResponse, err error) {
	defer func() { recordOperation("list_payments", err) }()

	if err := s.requireAdmin(ctx, accountID); err != nil {
		return ListPaymentsResponse{}, err
	}
	count, skip, err = normalizePage(count, skip)
	if err != nil {
		return ListPaymentsResponse{}, err
	}

	gwCtx, cancel := s.gatewayContext(ctx)
	subs, err := s.gw.ListSubscriptions(gwCtx, count, skip)
	cancel()
	if err != nil {
		return ListPaymentsResponse{}, gatewayError("list_subscriptions", err)
	}
	recordGatewayCall("list_subscriptions", outcomeOK)

	items := make([]SubscriptionItem, 0, len(subs))
	starts := make([]time.Time, 0, len(subs))
	for _, sub := range subs {
		items = append(items, SubscriptionItem{ID: sub.ID, Status: string(sub.Status), StartAt: sub.StartAt})
		starts = append(starts, sub.StartAt)
	}
	return ListPaymentsResponse{Items: items, Report: sales.Build(starts)}, nil
}

// LedgerReport lists verified payments, newest first, bucketed by verification month.
func (s serviceImpl) LedgerReport(ctx context.Context, accountID string, count, skip int) (resp LedgerReportResponse, err error) {
	defer func() { recordOperation("ledger_report", err) }()

	if err := s.requireAdmin(ctx, accountID); err != nil {
		return LedgerReportResponse{}, err
	}
	count, skip, err = normalizePage(count, skip)
	if err != nil {
		return LedgerReportResponse{}, err
	}
	records, err := s.payments.List(ctx, count, skip)
	if err != nil {
		return LedgerReportResponse{}, fmt.Errorf("%w: error listing payments: %v", ErrDatabase, err)
	}
	items := make([]LedgerItem, 0, len(records))
	starts := make([]time.Time, 0, len(records))
	for _, rec := range records {
		items = append(items, ledgerItem(rec))
		starts = append(starts, rec.CreatedAt)
	}
	return LedgerReportResponse{Items: items, Report: sales.Build(starts)}, nil
}

func ledgerItem(rec ledger.PaymentRecord) LedgerItem {
	return LedgerItem{
		ID:                    rec.ID,
		GatewayPaymentID:      rec.GatewayPaymentID,
		GatewaySubscriptionID: rec.GatewaySubscriptionID,
		CreatedAt:             rec.CreatedAt,
	}
}
