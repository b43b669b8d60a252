package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/billing"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

type createCompanyRequest interface {
	GetName() string
	GetStripeCustomerID() string
	GetStripeSubscriptionID() string
	GetStripeProductID() string
	GetStripePriceID() string
}

type planChangeRequest interface {
	GetCompanyID() uint64
	GetStripeProductID() string
	GetStripePriceID() string
	GetEffectiveAt() string
}

type companyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	UpdateSubscriptionState(ctx context.Context, company *entity.Company) error
	FindByID(ctx context.Context, id uint64) (*entity.Company, error)
	FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*entity.Company, error)
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*entity.Company, error)
	ListWithScheduledUpdates(ctx context.Context) ([]*entity.Company, error)
}

type planLookupRepository interface {
	FindByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error)
}

type scheduleGateway interface {
	UpdateSubscription(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*billing.Subscription, error)
	CreateSchedule(ctx context.Context, subscriptionID, priceID string, effectiveAt time.Time, idempotencyKey string) (*billing.Schedule, error)
	ReleaseSchedule(ctx context.Context, scheduleID string) error
}

type Entitlements struct {
	CompanyID  uint64
	Status     entity.SubscriptionStatus
	Tier       int32
	Allowances entity.Allowances
}

// SubscriptionService keeps each company's subscription snapshot consistent
// with billing reality. Status transitions come exclusively from gateway
// events; the only local writes it invents are the optimistic snapshot update
// on an immediate plan change and the promotion of a due scheduled change.
type SubscriptionService struct {
	companyRepo companyRepository
	planRepo    planLookupRepository
	gateway     scheduleGateway
	logger      logrus.FieldLogger
}

func NewSubscriptionService(
	companyRepo companyRepository,
	planRepo planLookupRepository,
	gateway scheduleGateway,
) *SubscriptionService {
	return &SubscriptionService{
		companyRepo: companyRepo,
		planRepo:    planRepo,
		gateway:     gateway,
		logger:      factory.NewModuleLogger("subscription-service"),
	}
}

func (s *SubscriptionService) CreateCompany(ctx context.Context, req createCompanyRequest) (*entity.Company, error) {
	name := strings.TrimSpace(req.GetName())
	customerID := strings.TrimSpace(req.GetStripeCustomerID())
	if name == "" || customerID == "" {
		return nil, fmt.Errorf("%w: name and stripe_customer_id are required", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	company := &entity.Company{
		Name:               name,
		StripeCustomerID:   customerID,
		SubscriptionStatus: entity.SubscriptionStatusIncomplete,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if subscriptionID := strings.TrimSpace(req.GetStripeSubscriptionID()); subscriptionID != "" {
		company.StripeSubscriptionID = &subscriptionID
	}

	if productID := strings.TrimSpace(req.GetStripeProductID()); productID != "" {
		plan, err := s.planRepo.FindByStripeProductID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, ErrPlanNotFound
		}
		snapshot, err := snapshotFromPlan(plan, strings.TrimSpace(req.GetStripePriceID()))
		if err != nil {
			return nil, err
		}
		company.Plan = snapshot
	}

	if err := s.companyRepo.Create(ctx, company); err != nil {
		if errors.Is(err, repository.ErrCompanyAlreadyExists) {
			return nil, ErrCompanyAlreadyExists
		}
		return nil, err
	}

	return company, nil
}

func (s *SubscriptionService) GetCompany(ctx context.Context, id uint64) (*entity.Company, error) {
	company, err := s.companyRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return company, nil
}

// Entitlements answers "what can this tenant do right now" from the
// denormalized snapshot; no remote call is made.
func (s *SubscriptionService) Entitlements(ctx context.Context, companyID uint64) (*Entitlements, error) {
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	return &Entitlements{
		CompanyID:  company.ID,
		Status:     company.SubscriptionStatus,
		Tier:       company.Plan.Tier,
		Allowances: company.Plan.Allowances,
	}, nil
}

// ChangePlan applies an immediate change when effective_at is absent and
// records a scheduled update otherwise.
func (s *SubscriptionService) ChangePlan(ctx context.Context, req planChangeRequest) (*entity.Company, error) {
	company, err := s.GetCompany(ctx, req.GetCompanyID())
	if err != nil {
		return nil, err
	}
	if company.StripeSubscriptionID == nil {
		return nil, ErrNoActiveSubscription
	}

	plan, err := s.planRepo.FindByStripeProductID(ctx, strings.TrimSpace(req.GetStripeProductID()))
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	snapshot, err := snapshotFromPlan(plan, strings.TrimSpace(req.GetStripePriceID()))
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.GetEffectiveAt()) == "" {
		return s.changePlanNow(ctx, company, snapshot)
	}

	effectiveAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.GetEffectiveAt()))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid effective_at format", ErrInvalidRequest)
	}
	return s.schedulePlanChange(ctx, company, snapshot, effectiveAt.UTC())
}

// changePlanNow requests the change at the gateway, then optimistically
// updates the local snapshot in the same operation. The gateway's subsequent
// confirmation event is the authoritative recheck; a mismatch there is
// surfaced, not auto-corrected.
func (s *SubscriptionService) changePlanNow(ctx context.Context, company *entity.Company, snapshot entity.PlanSnapshot) (*entity.Company, error) {
	idempotencyKey := uuid.NewString()
	sub, err := s.gateway.UpdateSubscription(ctx, *company.StripeSubscriptionID, snapshot.StripePriceID, idempotencyKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	company.Plan = snapshot
	if entity.IsSubscriptionStatusAllowed(entity.SubscriptionStatus(sub.Status)) {
		company.SubscriptionStatus = entity.SubscriptionStatus(sub.Status)
	}
	if !sub.CurrentPeriodStart.IsZero() {
		start := sub.CurrentPeriodStart
		company.CurrentPeriodStart = &start
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		company.CurrentPeriodEnd = &end
	}
	company.UpdatedAt = now

	if err := s.updateState(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// schedulePlanChange records a scheduled update instead of mutating the
// active snapshot. At most one scheduled update exists: a prior one is
// released at the gateway before the replacement is created, and every remote
// call must succeed before any local mutation.
func (s *SubscriptionService) schedulePlanChange(ctx context.Context, company *entity.Company, snapshot entity.PlanSnapshot, effectiveAt time.Time) (*entity.Company, error) {
	now := time.Now().UTC()
	if !effectiveAt.After(now) {
		return nil, fmt.Errorf("%w: effective_at must be in the future", ErrInvalidRequest)
	}
	if company.CurrentPeriodEnd != nil && !effectiveAt.After(*company.CurrentPeriodEnd) {
		return nil, fmt.Errorf("%w: effective_at must be after the current period end", ErrInvalidRequest)
	}

	if company.ScheduledUpdate != nil {
		if err := s.gateway.ReleaseSchedule(ctx, company.ScheduledUpdate.StripeScheduleID); err != nil {
			return nil, err
		}
	}

	schedule, err := s.gateway.CreateSchedule(ctx, *company.StripeSubscriptionID, snapshot.StripePriceID, effectiveAt, uuid.NewString())
	if err != nil {
		if company.ScheduledUpdate != nil {
			// The prior remote schedule is already released; the local field
			// still points at it until a retry succeeds.
			s.logger.WithError(err).
				WithField("company_id", company.ID).
				WithField("released_schedule_id", company.ScheduledUpdate.StripeScheduleID).
				Warn("Schedule replacement failed after remote release")
		}
		return nil, err
	}

	company.ScheduledUpdate = &entity.ScheduledUpdate{
		PlanSnapshot:     snapshot,
		EffectiveAt:      effectiveAt,
		StripeScheduleID: schedule.ID,
	}
	company.UpdatedAt = now

	if err := s.updateState(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// CancelScheduledChange releases the remote schedule first; the local field
// is cleared only after the remote call succeeds so a failed cancel never
// leaves an orphaned local-only cancellation.
func (s *SubscriptionService) CancelScheduledChange(ctx context.Context, companyID uint64) (*entity.Company, error) {
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company.ScheduledUpdate == nil {
		return nil, ErrScheduleNotFound
	}

	if err := s.gateway.ReleaseSchedule(ctx, company.ScheduledUpdate.StripeScheduleID); err != nil {
		return nil, err
	}

	company.ScheduledUpdate = nil
	company.UpdatedAt = time.Now().UTC()

	if err := s.updateState(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// ApplyGatewayEvent maps an authoritative gateway event onto the company's
// subscription state. Events for unknown companies are reported and dropped
// as no-ops so the webhook can be acknowledged.
func (s *SubscriptionService) ApplyGatewayEvent(ctx context.Context, ev *billing.Event) error {
	company, err := s.findCompanyForEvent(ctx, ev)
	if err != nil {
		return err
	}
	if company == nil {
		s.logger.WithField("event_id", ev.ID).
			WithField("event_type", ev.Type).
			WithField("stripe_customer_id", ev.CustomerID).
			Info("Gateway event for unknown company, skipping")
		return nil
	}

	now := time.Now().UTC()
	switch ev.Type {
	case billing.EventTypeSubscriptionCreated, billing.EventTypeSubscriptionUpdated:
		s.applySubscriptionEvent(ctx, company, ev)
	case billing.EventTypeSubscriptionDeleted:
		company.SubscriptionStatus = entity.SubscriptionStatusCanceled
	case billing.EventTypeInvoicePaid:
		company.SubscriptionStatus = entity.SubscriptionStatusActive
	case billing.EventTypeInvoicePaymentFailed:
		company.SubscriptionStatus = entity.SubscriptionStatusPastDue
	default:
		return nil
	}
	company.UpdatedAt = now

	return s.updateState(ctx, company)
}

func (s *SubscriptionService) applySubscriptionEvent(ctx context.Context, company *entity.Company, ev *billing.Event) {
	if ev.SubscriptionID != "" {
		subscriptionID := ev.SubscriptionID
		company.StripeSubscriptionID = &subscriptionID
	}
	if entity.IsSubscriptionStatusAllowed(entity.SubscriptionStatus(ev.Status)) {
		company.SubscriptionStatus = entity.SubscriptionStatus(ev.Status)
	} else if ev.Status != "" {
		s.logger.WithField("event_id", ev.ID).
			WithField("status", ev.Status).
			Warn("Gateway event carries unknown subscription status")
	}
	if ev.CurrentPeriodStart != nil {
		company.CurrentPeriodStart = ev.CurrentPeriodStart
	}
	if ev.CurrentPeriodEnd != nil {
		company.CurrentPeriodEnd = ev.CurrentPeriodEnd
	}
	company.CancelAtPeriodEnd = ev.CancelAtPeriodEnd

	if ev.StripeProductID == "" {
		return
	}

	if company.Plan.StripeProductID == "" {
		company.Plan = s.snapshotFromEvent(ctx, ev)
		return
	}

	// The event is the authoritative reconfirmation of the last optimistic
	// local write. Drift is surfaced for operator review, never healed here.
	if company.Plan.StripeProductID != ev.StripeProductID ||
		company.Plan.StripePriceID != ev.StripePriceID ||
		(ev.Tier != 0 && company.Plan.Tier != ev.Tier) {
		s.logger.WithField("event_id", ev.ID).
			WithField("company_id", company.ID).
			WithField("local_product_id", company.Plan.StripeProductID).
			WithField("local_price_id", company.Plan.StripePriceID).
			WithField("local_tier", company.Plan.Tier).
			WithField("remote_product_id", ev.StripeProductID).
			WithField("remote_price_id", ev.StripePriceID).
			WithField("remote_tier", ev.Tier).
			Warn("inconsistency_detected")
	}
}

func (s *SubscriptionService) snapshotFromEvent(ctx context.Context, ev *billing.Event) entity.PlanSnapshot {
	snapshot := entity.PlanSnapshot{
		StripeProductID: ev.StripeProductID,
		StripePriceID:   ev.StripePriceID,
		Tier:            ev.Tier,
	}

	plan, err := s.planRepo.FindByStripeProductID(ctx, ev.StripeProductID)
	if err != nil || plan == nil {
		if err != nil {
			s.logger.WithError(err).
				WithField("stripe_product_id", ev.StripeProductID).
				Warn("Plan lookup failed while adopting event snapshot")
		}
		return snapshot
	}

	snapshot.Allowances = plan.Allowances
	if option := plan.BillingOptionByPriceID(ev.StripePriceID); option != nil {
		snapshot.Tier = option.Tier
	}
	return snapshot
}

// PromoteDueSchedules is the periodic catch-up sweep. A scheduled change
// whose effective date has passed, or falls on or before the current period
// end, is promoted into the active snapshot exactly once; the versioned
// update makes a concurrent sweep or manual trigger lose cleanly.
func (s *SubscriptionService) PromoteDueSchedules(ctx context.Context) error {
	now := time.Now().UTC()
	companies, err := s.companyRepo.ListWithScheduledUpdates(ctx)
	if err != nil {
		return err
	}

	for _, company := range companies {
		su := company.ScheduledUpdate
		if su == nil || !isScheduleDue(su, company.CurrentPeriodEnd, now) {
			continue
		}

		company.Plan = su.PlanSnapshot
		company.ScheduledUpdate = nil
		company.UpdatedAt = now

		if err := s.companyRepo.UpdateSubscriptionState(ctx, company); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				// Another writer (or a concurrent sweep) already moved this
				// company; promotion must not happen twice.
				continue
			}
			s.logger.WithError(err).
				WithField("company_id", company.ID).
				Error("Scheduled update promotion failed")
			continue
		}

		s.logger.WithField("company_id", company.ID).
			WithField("stripe_product_id", company.Plan.StripeProductID).
			Info("Scheduled update promoted")
	}

	return nil
}

func isScheduleDue(su *entity.ScheduledUpdate, periodEnd *time.Time, now time.Time) bool {
	if !su.EffectiveAt.After(now) {
		return true
	}
	return periodEnd != nil && !su.EffectiveAt.After(*periodEnd)
}

func (s *SubscriptionService) findCompanyForEvent(ctx context.Context, ev *billing.Event) (*entity.Company, error) {
	if ev.CustomerID != "" {
		company, err := s.companyRepo.FindByStripeCustomerID(ctx, ev.CustomerID)
		if err != nil || company != nil {
			return company, err
		}
	}
	if ev.SubscriptionID != "" {
		return s.companyRepo.FindByStripeSubscriptionID(ctx, ev.SubscriptionID)
	}
	return nil, nil
}

func (s *SubscriptionService) updateState(ctx context.Context, company *entity.Company) error {
	if err := s.companyRepo.UpdateSubscriptionState(ctx, company); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

func snapshotFromPlan(plan *entity.Plan, stripePriceID string) (entity.PlanSnapshot, error) {
	snapshot := entity.PlanSnapshot{
		StripeProductID: plan.StripeProductID,
		Allowances:      plan.Allowances,
	}
	if stripePriceID == "" {
		return snapshot, nil
	}

	option := plan.BillingOptionByPriceID(stripePriceID)
	if option == nil {
		return entity.PlanSnapshot{}, fmt.Errorf("%w: price %s does not belong to plan %s", ErrInvalidRequest, stripePriceID, plan.StripeProductID)
	}
	snapshot.StripePriceID = option.StripePriceID
	snapshot.Tier = option.Tier
	return snapshot, nil
}
