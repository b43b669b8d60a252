package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/billing"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

const (
	metadataKeyAllowedUsers       = "allowedUsers"
	metadataKeyAllowedTranscripts = "allowedTranscripts"
	metadataKeyAllowedReviews     = "allowedReviews"
	metadataKeyFeatures           = "features"
	metadataKeyVisible            = "visible"
	metadataKeyTier               = "tier"
)

type planUpsertRepository interface {
	Upsert(ctx context.Context, plan *entity.Plan) error
	FindByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error)
}

type catalogGateway interface {
	ListActiveProducts(ctx context.Context) ([]billing.Product, error)
	ListPrices(ctx context.Context, productID string) ([]billing.Price, error)
}

type ProductSyncError struct {
	StripeProductID string
	Err             error
}

type SyncReport struct {
	Synced int
	Failed []ProductSyncError
}

type PlanSyncService struct {
	gateway  catalogGateway
	planRepo planUpsertRepository
	logger   logrus.FieldLogger
}

func NewPlanSyncService(gateway catalogGateway, planRepo planUpsertRepository) *PlanSyncService {
	return &PlanSyncService{
		gateway:  gateway,
		planRepo: planRepo,
		logger:   factory.NewModuleLogger("plan-sync-service"),
	}
}

// SyncProducts reconciles the gateway's active catalog into the plan store.
// Each product is processed independently: one failing product is recorded in
// the report and the loop continues. Re-running with unchanged remote data is
// a no-op apart from update timestamps.
func (s *PlanSyncService) SyncProducts(ctx context.Context) (*SyncReport, error) {
	products, err := s.gateway.ListActiveProducts(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for _, product := range products {
		if err := s.syncProduct(ctx, product); err != nil {
			s.logger.WithError(err).
				WithField("stripe_product_id", product.ID).
				Error("Product sync failed")
			report.Failed = append(report.Failed, ProductSyncError{StripeProductID: product.ID, Err: err})
			continue
		}
		report.Synced++
	}

	return report, nil
}

func (s *PlanSyncService) syncProduct(ctx context.Context, product billing.Product) error {
	prices, err := s.gateway.ListPrices(ctx, product.ID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	plan := buildPlan(product, prices, now)

	existing, err := s.planRepo.FindByStripeProductID(ctx, product.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		plan.ID = existing.ID
		plan.CreatedAt = existing.CreatedAt
	}

	return s.planRepo.Upsert(ctx, plan)
}

// buildPlan maps a remote product and its prices onto a plan upsert payload.
// A product with zero prices still yields a plan with empty billing options.
func buildPlan(product billing.Product, prices []billing.Price, now time.Time) *entity.Plan {
	plan := &entity.Plan{
		StripeProductID: product.ID,
		Name:            product.Name,
		BillingOptions:  make([]entity.BillingOption, 0, len(prices)),
		Allowances: entity.Allowances{
			AllowedUsers:       parseMetadataInt(product.Metadata, metadataKeyAllowedUsers),
			AllowedTranscripts: parseMetadataInt(product.Metadata, metadataKeyAllowedTranscripts),
			AllowedReviews:     parseMetadataInt(product.Metadata, metadataKeyAllowedReviews),
		},
		IsActive:  product.Active,
		IsVisible: product.Metadata[metadataKeyVisible] != "false",
		Features:  parseFeatures(product.Metadata[metadataKeyFeatures]),
		Metadata:  product.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, price := range prices {
		interval := entity.BillingIntervalOneTime
		if price.Recurring != nil {
			candidate := entity.BillingInterval(price.Recurring.Interval)
			if entity.IsBillingIntervalAllowed(candidate) {
				interval = candidate
			}
		}
		plan.BillingOptions = append(plan.BillingOptions, entity.BillingOption{
			Interval:      interval,
			StripePriceID: price.ID,
			Amount:        price.UnitAmount,
			Tier:          parseMetadataInt(price.Metadata, metadataKeyTier),
		})
	}

	if len(prices) > 0 {
		plan.Currency = strings.ToLower(prices[0].Currency)
	}

	return plan
}

// parseMetadataInt defaults to zero for absent or non-numeric values; a bad
// metadata entry must not fail the sync.
func parseMetadataInt(metadata map[string]string, key string) int32 {
	raw, ok := metadata[key]
	if !ok {
		return 0
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || value < 0 {
		return 0
	}
	return int32(value)
}

func parseFeatures(raw string) []string {
	features := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			features = append(features, trimmed)
		}
	}
	return features
}
