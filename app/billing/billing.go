// Package billing talks to the remote billing gateway (Stripe). The gateway
// owns products, prices, subscriptions and schedules; this service only
// mirrors them.
package billing

import (
	"context"
	"time"
)

type Product struct {
	ID       string
	Name     string
	Active   bool
	Metadata map[string]string
}

type Recurring struct {
	Interval string
}

type Price struct {
	ID         string
	ProductID  string
	Currency   string
	UnitAmount int64
	Active     bool
	Recurring  *Recurring
	Metadata   map[string]string
}

type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

type Schedule struct {
	ID string
}

// Gateway is the remote billing API surface this service consumes. Write
// operations take an idempotency key because a timed-out call may have had a
// side effect on the remote system and must not be retried blindly.
type Gateway interface {
	ListActiveProducts(ctx context.Context) ([]Product, error)
	ListPrices(ctx context.Context, productID string) ([]Price, error)
	UpdateSubscription(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*Subscription, error)
	CreateSchedule(ctx context.Context, subscriptionID, priceID string, effectiveAt time.Time, idempotencyKey string) (*Schedule, error)
	ReleaseSchedule(ctx context.Context, scheduleID string) error
}

// GatewayError wraps any transport or remote failure from the gateway. It is
// retryable from the caller's perspective; write retries must reuse the
// original idempotency key.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return "billing gateway " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
