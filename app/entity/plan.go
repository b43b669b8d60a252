package entity

import "time"

type BillingInterval string

const (
	BillingIntervalDay     BillingInterval = "day"
	BillingIntervalWeek    BillingInterval = "week"
	BillingIntervalMonth   BillingInterval = "month"
	BillingIntervalYear    BillingInterval = "year"
	BillingIntervalOneTime BillingInterval = "one_time"
)

func IsBillingIntervalAllowed(interval BillingInterval) bool {
	switch interval {
	case BillingIntervalDay, BillingIntervalWeek, BillingIntervalMonth, BillingIntervalYear, BillingIntervalOneTime:
		return true
	default:
		return false
	}
}

type BillingOption struct {
	Interval      BillingInterval `json:"interval"`
	StripePriceID string          `json:"stripe_price_id"`
	Amount        int64           `json:"amount"`
	Tier          int32           `json:"tier"`
}

type Allowances struct {
	AllowedUsers       int32 `json:"allowed_users"`
	AllowedTranscripts int32 `json:"allowed_transcripts"`
	AllowedReviews     int32 `json:"allowed_reviews"`
}

type Plan struct {
	ID              uint64
	StripeProductID string
	Name            string
	Currency        string
	BillingOptions  []BillingOption
	Allowances      Allowances
	IsActive        bool
	IsVisible       bool
	Features        []string
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BillingOptionByPriceID returns the option carrying the given external price
// id, or nil when the price does not belong to this plan.
func (p *Plan) BillingOptionByPriceID(stripePriceID string) *BillingOption {
	for i := range p.BillingOptions {
		if p.BillingOptions[i].StripePriceID == stripePriceID {
			return &p.BillingOptions[i]
		}
	}
	return nil
}
