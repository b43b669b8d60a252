package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/service"
)

type fakePlanService struct {
	listFn   func(ctx context.Context) ([]*entity.Plan, error)
	getFn    func(ctx context.Context, stripeProductID string) (*entity.Plan, error)
	deleteFn func(ctx context.Context, stripeProductID string) error
}

func (s *fakePlanService) ListVisiblePlans(ctx context.Context) ([]*entity.Plan, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *fakePlanService) GetPlanByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error) {
	if s.getFn != nil {
		return s.getFn(ctx, stripeProductID)
	}
	return nil, service.ErrPlanNotFound
}

func (s *fakePlanService) DeletePlan(ctx context.Context, stripeProductID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, stripeProductID)
	}
	return nil
}

type fakePlanSyncService struct {
	syncFn func(ctx context.Context) (*service.SyncReport, error)
}

func (s *fakePlanSyncService) SyncProducts(ctx context.Context) (*service.SyncReport, error) {
	if s.syncFn != nil {
		return s.syncFn(ctx)
	}
	return &service.SyncReport{}, nil
}

func TestHealth(t *testing.T) {
	ctrl := NewPlanController(&fakePlanService{}, &fakePlanSyncService{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.Health(e.NewContext(req, rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListPlans(t *testing.T) {
	now := time.Now().UTC()
	ctrl := NewPlanController(&fakePlanService{
		listFn: func(context.Context) ([]*entity.Plan, error) {
			return []*entity.Plan{{
				ID:              1,
				StripeProductID: "prod_123",
				Name:            "Pro",
				Currency:        "eur",
				BillingOptions:  []entity.BillingOption{{Interval: entity.BillingIntervalMonth, StripePriceID: "price_abc", Amount: 1500, Tier: 2}},
				IsActive:        true,
				IsVisible:       true,
				CreatedAt:       now,
				UpdatedAt:       now,
			}}, nil
		},
	}, &fakePlanSyncService{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/plans", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.ListPlans(e.NewContext(req, rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Plans []struct {
			StripeProductID string `json:"stripe_product_id"`
			BillingOptions  []struct {
				StripePriceID string `json:"stripe_price_id"`
			} `json:"billing_options"`
		} `json:"plans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(payload.Plans) != 1 || payload.Plans[0].StripeProductID != "prod_123" {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}
	if len(payload.Plans[0].BillingOptions) != 1 || payload.Plans[0].BillingOptions[0].StripePriceID != "price_abc" {
		t.Fatalf("billing options missing: %s", rec.Body.String())
	}
}

func TestGetPlanNotFound(t *testing.T) {
	ctrl := NewPlanController(&fakePlanService{}, &fakePlanSyncService{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/plans/prod_missing", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("stripe_product_id")
	ctx.SetParamValues("prod_missing")

	_ = ctrl.GetPlan(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPlanMissingID(t *testing.T) {
	ctrl := NewPlanController(&fakePlanService{}, &fakePlanSyncService{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/plans/", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.GetPlan(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeletePlanNotFound(t *testing.T) {
	ctrl := NewPlanController(&fakePlanService{
		deleteFn: func(context.Context, string) error { return service.ErrPlanNotFound },
	}, &fakePlanSyncService{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/plans/prod_missing", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("stripe_product_id")
	ctx.SetParamValues("prod_missing")

	_ = ctrl.DeletePlan(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSyncPlansReportsFailures(t *testing.T) {
	ctrl := NewPlanController(&fakePlanService{}, &fakePlanSyncService{
		syncFn: func(context.Context) (*service.SyncReport, error) {
			return &service.SyncReport{
				Synced: 2,
				Failed: []service.ProductSyncError{{StripeProductID: "prod_broken", Err: errors.New("boom")}},
			}, nil
		},
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/plans/sync", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.SyncPlans(e.NewContext(req, rec))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Synced int `json:"synced"`
		Failed []struct {
			StripeProductID string `json:"stripe_product_id"`
		} `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Synced != 2 || len(payload.Failed) != 1 || payload.Failed[0].StripeProductID != "prod_broken" {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}
}

func TestSyncPlansGatewayUnavailable(t *testing.T) {
	ctrl := NewPlanController(&fakePlanService{}, &fakePlanSyncService{
		syncFn: func(context.Context) (*service.SyncReport, error) {
			return nil, errors.New("gateway down")
		},
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/plans/sync", nil)
	rec := httptest.NewRecorder()

	_ = ctrl.SyncPlans(e.NewContext(req, rec))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
