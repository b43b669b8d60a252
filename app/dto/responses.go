package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type BillingOptionResponse struct {
	Interval      string `json:"interval"`
	StripePriceID string `json:"stripe_price_id"`
	Amount        int64  `json:"amount"`
	Tier          int32  `json:"tier"`
}

type AllowancesResponse struct {
	AllowedUsers       int32 `json:"allowed_users"`
	AllowedTranscripts int32 `json:"allowed_transcripts"`
	AllowedReviews     int32 `json:"allowed_reviews"`
}

type PlanResponse struct {
	ID              uint64                  `json:"id"`
	StripeProductID string                  `json:"stripe_product_id"`
	Name            string                  `json:"name"`
	Currency        string                  `json:"currency"`
	BillingOptions  []BillingOptionResponse `json:"billing_options"`
	Allowances      AllowancesResponse      `json:"allowances"`
	IsActive        bool                    `json:"is_active"`
	IsVisible       bool                    `json:"is_visible"`
	Features        []string                `json:"features"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
}

type ListPlansResponse struct {
	Plans []*PlanResponse `json:"plans"`
}

type PlanEnvelopeResponse struct {
	Plan *PlanResponse `json:"plan"`
}

type PlanSnapshotResponse struct {
	StripeProductID string             `json:"stripe_product_id"`
	StripePriceID   string             `json:"stripe_price_id"`
	Tier            int32              `json:"tier"`
	Allowances      AllowancesResponse `json:"allowances"`
}

type ScheduledUpdateResponse struct {
	PlanSnapshotResponse
	EffectiveAt      string `json:"effective_at"`
	StripeScheduleID string `json:"stripe_schedule_id"`
}

type CompanyResponse struct {
	ID                   uint64                   `json:"id"`
	Name                 string                   `json:"name"`
	StripeCustomerID     string                   `json:"stripe_customer_id"`
	StripeSubscriptionID string                   `json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   string                   `json:"subscription_status"`
	CurrentPeriodStart   string                   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     string                   `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool                     `json:"cancel_at_period_end"`
	Plan                 PlanSnapshotResponse     `json:"plan"`
	ScheduledUpdate      *ScheduledUpdateResponse `json:"scheduled_update,omitempty"`
	CreatedAt            string                   `json:"created_at"`
	UpdatedAt            string                   `json:"updated_at"`
}

type CompanyEnvelopeResponse struct {
	Company *CompanyResponse `json:"company"`
}

type EntitlementsResponse struct {
	CompanyID  uint64             `json:"company_id"`
	Status     string             `json:"status"`
	Tier       int32              `json:"tier"`
	Allowances AllowancesResponse `json:"allowances"`
}

type ProductSyncErrorResponse struct {
	StripeProductID string `json:"stripe_product_id"`
	Error           string `json:"error"`
}

type SyncReportResponse struct {
	Synced int                        `json:"synced"`
	Failed []ProductSyncErrorResponse `json:"failed"`
}
