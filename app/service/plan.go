package service

import (
	"context"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

type planRepository interface {
	FindByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error)
	ListVisible(ctx context.Context) ([]*entity.Plan, error)
	DeleteByStripeProductID(ctx context.Context, stripeProductID string) error
}

// PlanService is the plan-store query surface consumed by unrelated feature
// modules (public plan listing) and by admins for explicit removal.
type PlanService struct {
	planRepo planRepository
}

func NewPlanService(planRepo planRepository) *PlanService {
	return &PlanService{planRepo: planRepo}
}

func (s *PlanService) ListVisiblePlans(ctx context.Context) ([]*entity.Plan, error) {
	return s.planRepo.ListVisible(ctx)
}

func (s *PlanService) GetPlanByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error) {
	if strings.TrimSpace(stripeProductID) == "" {
		return nil, ErrInvalidRequest
	}

	plan, err := s.planRepo.FindByStripeProductID(ctx, stripeProductID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (s *PlanService) DeletePlan(ctx context.Context, stripeProductID string) error {
	if strings.TrimSpace(stripeProductID) == "" {
		return ErrInvalidRequest
	}

	if err := s.planRepo.DeleteByStripeProductID(ctx, stripeProductID); err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	return nil
}
