package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/account"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/gateway/mock"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/ledger"
	"github.com/tbeaudouin05/billing-lifecycle/api/services/billing/signature"
)

const (
	testSecret = "test-signature-secret"
	testPlanID = "plan_monthly"
	userID     = "user-1"
	adminID    = "admin-1"
)

var testNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

// fakeAccounts is an in-memory account.Store with an optional injected conflict.
// interfere, when set, is the other writer's change applied on each conflict.
type fakeAccounts struct {
	mu        sync.Mutex
	accounts  map[string]account.Account
	conflicts int
	interfere func(*account.Subscription)
	writes    int
}

func newFakeAccounts(accts ...account.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[string]account.Account)}
	for _, a := range accts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) Get(_ context.Context, id string) (account.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) UpdateSubscription(_ context.Context, id string, version int64, sub account.Subscription) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return 0, account.ErrNotFound
	}
	if f.conflicts > 0 {
		// Simulate a writer in another process bumping the version.
		f.conflicts--
		if f.interfere != nil {
			f.interfere(&a.Subscription)
		}
		a.Version++
		f.accounts[id] = a
		return 0, account.ErrVersionConflict
	}
	if a.Version != version {
		return 0, account.ErrVersionConflict
	}
	a.Subscription = sub
	a.Version++
	f.accounts[id] = a
	f.writes++
	return a.Version, nil
}

func (f *fakeAccounts) get(t *testing.T, id string) account.Account {
	t.Helper()
	a, err := f.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("account %s: %v", id, err)
	}
	return a
}

// fakeLedger is an in-memory ledger.Ledger keyed by gateway payment id.
type fakeLedger struct {
	mu      sync.Mutex
	records map[string]ledger.PaymentRecord
}

func newFakeLedger(recs ...ledger.PaymentRecord) *fakeLedger {
	f := &fakeLedger{records: make(map[string]ledger.PaymentRecord)}
	for _, r := range recs {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		f.records[r.GatewayPaymentID] = r
	}
	return f
}

func (f *fakeLedger) Create(_ context.Context, rec ledger.PaymentRecord) (ledger.PaymentRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.records[rec.GatewayPaymentID]; ok {
		return existing, false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	f.records[rec.GatewayPaymentID] = rec
	return rec, true, nil
}

func (f *fakeLedger) FindBySubscriptionID(_ context.Context, subscriptionID string) (ledger.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *ledger.PaymentRecord
	for _, r := range f.records {
		r := r
		if r.GatewaySubscriptionID != subscriptionID {
			continue
		}
		if found == nil || r.CreatedAt.After(found.CreatedAt) {
			found = &r
		}
	}
	if found == nil {
		return ledger.PaymentRecord{}, ledger.ErrNotFound
	}
	return *found, nil
}

func (f *fakeLedger) Delete(_ context.Context, rec ledger.PaymentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.GatewayPaymentID]; !ok {
		return ledger.ErrNotFound
	}
	delete(f.records, rec.GatewayPaymentID)
	return nil
}

func (f *fakeLedger) List(_ context.Context, count, skip int) ([]ledger.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]ledger.PaymentRecord, 0, len(f.records))
	for _, r := range f.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if count < len(all) {
		all = all[:count]
	}
	return all, nil
}

func (f *fakeLedger) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// fakeSettler settles against the in-memory stores. A pending failure leaves
// both untouched, like a rolled back transaction.
type fakeSettler struct {
	accounts *fakeAccounts
	payments *fakeLedger
	failures int
}

func (f *fakeSettler) Settle(_ context.Context, accountID string, rec ledger.PaymentRecord) (bool, error) {
	f.payments.mu.Lock()
	defer f.payments.mu.Unlock()
	f.accounts.mu.Lock()
	defer f.accounts.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return false, errors.New("connection reset by peer")
	}
	delete(f.payments.records, rec.GatewayPaymentID)
	a, ok := f.accounts.accounts[accountID]
	if !ok || a.Subscription.ID != rec.GatewaySubscriptionID {
		return false, nil
	}
	a.Subscription = account.Subscription{}
	a.Version++
	f.accounts.accounts[accountID] = a
	f.accounts.writes++
	return true, nil
}

type fixture struct {
	gw       *mock.MockGateway
	accounts *fakeAccounts
	payments *fakeLedger
	settler  *fakeSettler
	now      time.Time
	svc      Service
}

func newFixture(t *testing.T, accts []account.Account, recs ...ledger.PaymentRecord) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		gw:       mock.NewMockGateway(ctrl),
		accounts: newFakeAccounts(accts...),
		payments: newFakeLedger(recs...),
		now:      testNow,
	}
	f.settler = &fakeSettler{accounts: f.accounts, payments: f.payments}
	f.svc = NewService(f.gw, f.accounts, f.payments, f.settler, Settings{
		PlanID:          testPlanID,
		SignatureSecret: testSecret,
		GatewayTimeout:  50 * time.Millisecond,
		Now:             func() time.Time { return f.now },
	})
	return f
}

func user(sub account.Subscription) account.Account {
	return account.Account{ID: userID, Role: account.RoleUser, Subscription: sub}
}

func admin(sub account.Subscription) account.Account {
	return account.Account{ID: adminID, Role: account.RoleAdmin, Subscription: sub}
}

func sign(subscriptionID, paymentID string) string {
	return signature.Sign(testSecret, subscriptionID, paymentID)
}
