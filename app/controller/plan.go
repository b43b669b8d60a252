package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/dto"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

type planService interface {
	ListVisiblePlans(ctx context.Context) ([]*entity.Plan, error)
	GetPlanByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error)
	DeletePlan(ctx context.Context, stripeProductID string) error
}

type planSyncService interface {
	SyncProducts(ctx context.Context) (*service.SyncReport, error)
}

type PlanController struct {
	planService     planService
	planSyncService planSyncService
	logger          logrus.FieldLogger
}

func NewPlanController(planService planService, planSyncService planSyncService) *PlanController {
	return &PlanController{
		planService:     planService,
		planSyncService: planSyncService,
		logger:          factory.NewModuleLogger("plans-controller"),
	}
}

func (c *PlanController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

func (c *PlanController) ListPlans(ctx echo.Context) error {
	items, err := c.planService.ListVisiblePlans(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("List plans failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.ListPlansResponse{Plans: mapper.PlansToResponse(items)})
}

func (c *PlanController) GetPlan(ctx echo.Context) error {
	req, err := types.NewPlanIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.planService.GetPlanByStripeProductID(ctx.Request().Context(), req.StripeProductID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found")
		default:
			c.logger.WithError(err).Error("Get plan failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &dto.PlanEnvelopeResponse{Plan: mapper.PlanToResponse(item)})
}

func (c *PlanController) DeletePlan(ctx echo.Context) error {
	req, err := types.NewPlanIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.planService.DeletePlan(ctx.Request().Context(), req.StripeProductID); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found")
		default:
			c.logger.WithError(err).Error("Delete plan failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &dto.MessageResponse{Message: "Plan deleted successfully"})
}

func (c *PlanController) SyncPlans(ctx echo.Context) error {
	report, err := c.planSyncService.SyncProducts(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("Plan sync failed")
		return c.writeError(ctx, http.StatusBadGateway, "billing gateway unavailable")
	}

	return ctx.JSON(http.StatusOK, mapper.SyncReportToResponse(report))
}

func (c *PlanController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
