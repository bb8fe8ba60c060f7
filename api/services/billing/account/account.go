package account

import (
	"context"
	"errors"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// SubscriptionState is the locally tracked state of an account's subscription.
type SubscriptionState string

const (
	StateNone     SubscriptionState = ""
	StateCreated  SubscriptionState = "created"
	StateActive   SubscriptionState = "active"
	StateCanceled SubscriptionState = "canceled"
)

// Subscription is the only part of an account the billing lifecycle writes.
type Subscription struct {
	ID     string            `json:"id"`
	Status SubscriptionState `json:"status"`
}

// Account is the billing view of a user account. Version increments on every
// subscription write and guards against lost updates across processes.
type Account struct {
	ID           string
	Role         Role
	Subscription Subscription
	Version      int64
}

func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

var (
	ErrNotFound        = errors.New("account not found")
	ErrVersionConflict = errors.New("account was modified concurrently")
)

// Store loads accounts and writes their subscription sub-record.
type Store interface {
	Get(ctx context.Context, id string) (Account, error)
	// UpdateSubscription writes sub if the stored version still equals version
	// and returns the new version. A stale version yields ErrVersionConflict.
	UpdateSubscription(ctx context.Context, id string, version int64, sub Subscription) (int64, error)
}
