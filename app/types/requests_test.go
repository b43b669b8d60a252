package types

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func jsonContext(method, target, body string, paramNames, paramValues []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	if len(paramNames) > 0 {
		ctx.SetParamNames(paramNames...)
		ctx.SetParamValues(paramValues...)
	}
	return ctx
}

func TestCreateCompanyRequestTrimsAndValidates(t *testing.T) {
	ctx := jsonContext(http.MethodPost, "/companies", `{"name":"  Acme  ","stripe_customer_id":" cus_1 "}`, nil, nil)
	req, err := NewCreateCompanyRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Name != "Acme" || req.StripeCustomerID != "cus_1" {
		t.Fatalf("fields not trimmed: %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestCreateCompanyRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		req  CreateCompanyRequest
	}{
		{"missing name", CreateCompanyRequest{StripeCustomerID: "cus_1"}},
		{"missing customer id", CreateCompanyRequest{Name: "Acme"}},
		{"price without product", CreateCompanyRequest{Name: "Acme", StripeCustomerID: "cus_1", StripePriceID: "price_1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestCompanyIDRequestFromContext(t *testing.T) {
	ctx := jsonContext(http.MethodGet, "/companies/7", "", []string{"id"}, []string{"7"})
	req, err := NewCompanyIDRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.ID != 7 {
		t.Fatalf("expected id=7, got %d", req.ID)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	ctx = jsonContext(http.MethodGet, "/companies/abc", "", []string{"id"}, []string{"abc"})
	if _, err := NewCompanyIDRequestFromContext(ctx); err == nil {
		t.Error("expected an error for a non-numeric id")
	}

	zero := &CompanyIDRequest{}
	if err := zero.Validate(); err == nil {
		t.Error("expected a validation error for id 0")
	}
}

func TestPlanChangeRequestFromContext(t *testing.T) {
	body := `{"stripe_product_id":"prod_basic","stripe_price_id":"price_basic","effective_at":"2026-10-01T00:00:00Z"}`
	ctx := jsonContext(http.MethodPost, "/companies/7/plan-change", body, []string{"id"}, []string{"7"})
	req, err := NewPlanChangeRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.CompanyID != 7 || req.StripeProductID != "prod_basic" || req.StripePriceID != "price_basic" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestPlanChangeRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		req  PlanChangeRequest
	}{
		{"missing company id", PlanChangeRequest{StripeProductID: "prod_1", StripePriceID: "price_1"}},
		{"missing product", PlanChangeRequest{CompanyID: 1, StripePriceID: "price_1"}},
		{"missing price", PlanChangeRequest{CompanyID: 1, StripeProductID: "prod_1"}},
		{"bad effective_at", PlanChangeRequest{CompanyID: 1, StripeProductID: "prod_1", StripePriceID: "price_1", EffectiveAt: "tomorrow"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	immediate := PlanChangeRequest{CompanyID: 1, StripeProductID: "prod_1", StripePriceID: "price_1"}
	if err := immediate.Validate(); err != nil {
		t.Errorf("empty effective_at means an immediate change, got %v", err)
	}
}

func TestPlanIDRequest(t *testing.T) {
	ctx := jsonContext(http.MethodGet, "/plans/prod_123", "", []string{"stripe_product_id"}, []string{" prod_123 "})
	req, err := NewPlanIDRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.StripeProductID != "prod_123" {
		t.Fatalf("expected trimmed id, got %q", req.StripeProductID)
	}

	empty := &PlanIDRequest{}
	if err := empty.Validate(); err == nil {
		t.Error("expected a validation error for empty id")
	}
}
