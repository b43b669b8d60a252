package entity

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
)

func IsSubscriptionStatusAllowed(status SubscriptionStatus) bool {
	switch status {
	case SubscriptionStatusIncomplete,
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}

// PlanSnapshot is the denormalized view of the plan a company is on. It must
// answer entitlement questions without a plan-store or gateway lookup.
type PlanSnapshot struct {
	StripeProductID string     `json:"stripe_product_id"`
	StripePriceID   string     `json:"stripe_price_id"`
	Tier            int32      `json:"tier"`
	Allowances      Allowances `json:"allowances"`
}

// ScheduledUpdate is a plan change recorded to take effect in the future.
// At most one exists per company.
type ScheduledUpdate struct {
	PlanSnapshot
	EffectiveAt      time.Time `json:"effective_at"`
	StripeScheduleID string    `json:"stripe_schedule_id"`
}

type Company struct {
	ID                   uint64
	Name                 string
	StripeCustomerID     string
	StripeSubscriptionID *string
	SubscriptionStatus   SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	Plan                 PlanSnapshot
	ScheduledUpdate      *ScheduledUpdate
	// Version is checked-and-incremented on every subscription-state write so
	// concurrent reconciliations for the same company cannot clobber each other.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
