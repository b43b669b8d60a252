package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type CreateCompanyRequest struct {
	Name                 string `json:"name"`
	StripeCustomerID     string `json:"stripe_customer_id"`
	StripeSubscriptionID string `json:"stripe_subscription_id"`
	StripeProductID      string `json:"stripe_product_id"`
	StripePriceID        string `json:"stripe_price_id"`
}

func NewCreateCompanyRequestFromContext(ctx echo.Context) (*CreateCompanyRequest, error) {
	var body CreateCompanyRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Name = strings.TrimSpace(body.Name)
	body.StripeCustomerID = strings.TrimSpace(body.StripeCustomerID)
	body.StripeSubscriptionID = strings.TrimSpace(body.StripeSubscriptionID)
	body.StripeProductID = strings.TrimSpace(body.StripeProductID)
	body.StripePriceID = strings.TrimSpace(body.StripePriceID)
	return &body, nil
}

func (r *CreateCompanyRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.StripeCustomerID == "" {
		return errors.New("stripe_customer_id is required")
	}
	if r.StripePriceID != "" && r.StripeProductID == "" {
		return errors.New("stripe_product_id is required when stripe_price_id is set")
	}
	return nil
}

func (r *CreateCompanyRequest) GetName() string                 { return r.Name }
func (r *CreateCompanyRequest) GetStripeCustomerID() string     { return r.StripeCustomerID }
func (r *CreateCompanyRequest) GetStripeSubscriptionID() string { return r.StripeSubscriptionID }
func (r *CreateCompanyRequest) GetStripeProductID() string      { return r.StripeProductID }
func (r *CreateCompanyRequest) GetStripePriceID() string        { return r.StripePriceID }

type CompanyIDRequest struct {
	ID uint64
}

func NewCompanyIDRequestFromContext(ctx echo.Context) (*CompanyIDRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &CompanyIDRequest{ID: id}, nil
}

func (r *CompanyIDRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid company id")
	}
	return nil
}

type PlanChangeRequest struct {
	CompanyID       uint64 `json:"-"`
	StripeProductID string `json:"stripe_product_id"`
	StripePriceID   string `json:"stripe_price_id"`
	EffectiveAt     string `json:"effective_at"`
}

func NewPlanChangeRequestFromContext(ctx echo.Context) (*PlanChangeRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body PlanChangeRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.CompanyID = id
	body.StripeProductID = strings.TrimSpace(body.StripeProductID)
	body.StripePriceID = strings.TrimSpace(body.StripePriceID)
	body.EffectiveAt = strings.TrimSpace(body.EffectiveAt)
	return &body, nil
}

func (r *PlanChangeRequest) Validate() error {
	if r.CompanyID == 0 {
		return errors.New("invalid company id")
	}
	if r.StripeProductID == "" {
		return errors.New("stripe_product_id is required")
	}
	if r.StripePriceID == "" {
		return errors.New("stripe_price_id is required")
	}
	if r.EffectiveAt != "" {
		if _, err := time.Parse(time.RFC3339, r.EffectiveAt); err != nil {
			return errors.New("effective_at must be RFC3339")
		}
	}
	return nil
}

func (r *PlanChangeRequest) GetCompanyID() uint64       { return r.CompanyID }
func (r *PlanChangeRequest) GetStripeProductID() string { return r.StripeProductID }
func (r *PlanChangeRequest) GetStripePriceID() string   { return r.StripePriceID }
func (r *PlanChangeRequest) GetEffectiveAt() string     { return r.EffectiveAt }

type PlanIDRequest struct {
	StripeProductID string
}

func NewPlanIDRequestFromContext(ctx echo.Context) (*PlanIDRequest, error) {
	return &PlanIDRequest{StripeProductID: strings.TrimSpace(ctx.Param("stripe_product_id"))}, nil
}

func (r *PlanIDRequest) Validate() error {
	if r.StripeProductID == "" {
		return errors.New("stripe_product_id is required")
	}
	return nil
}
