package billing

import (
	"context"
	"time"
)

// FakeGateway is an in-memory Gateway for tests and local development.
// Unset function fields succeed with zero values.
type FakeGateway struct {
	ListActiveProductsFn func(ctx context.Context) ([]Product, error)
	ListPricesFn         func(ctx context.Context, productID string) ([]Price, error)
	UpdateSubscriptionFn func(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*Subscription, error)
	CreateScheduleFn     func(ctx context.Context, subscriptionID, priceID string, effectiveAt time.Time, idempotencyKey string) (*Schedule, error)
	ReleaseScheduleFn    func(ctx context.Context, scheduleID string) error
}

func (f *FakeGateway) ListActiveProducts(ctx context.Context) ([]Product, error) {
	if f.ListActiveProductsFn != nil {
		return f.ListActiveProductsFn(ctx)
	}
	return nil, nil
}

func (f *FakeGateway) ListPrices(ctx context.Context, productID string) ([]Price, error) {
	if f.ListPricesFn != nil {
		return f.ListPricesFn(ctx, productID)
	}
	return nil, nil
}

func (f *FakeGateway) UpdateSubscription(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*Subscription, error) {
	if f.UpdateSubscriptionFn != nil {
		return f.UpdateSubscriptionFn(ctx, subscriptionID, priceID, idempotencyKey)
	}
	return &Subscription{ID: subscriptionID, Status: "active"}, nil
}

func (f *FakeGateway) CreateSchedule(ctx context.Context, subscriptionID, priceID string, effectiveAt time.Time, idempotencyKey string) (*Schedule, error) {
	if f.CreateScheduleFn != nil {
		return f.CreateScheduleFn(ctx, subscriptionID, priceID, effectiveAt, idempotencyKey)
	}
	return &Schedule{ID: "sched_fake"}, nil
}

func (f *FakeGateway) ReleaseSchedule(ctx context.Context, scheduleID string) error {
	if f.ReleaseScheduleFn != nil {
		return f.ReleaseScheduleFn(ctx, scheduleID)
	}
	return nil
}
