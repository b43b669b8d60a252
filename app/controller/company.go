package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/billing"
	"github.com/vibast-solutions/ms-go-billing/app/dto"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

type CompanyController struct {
	subscriptionService *service.SubscriptionService
	logger              logrus.FieldLogger
}

func NewCompanyController(subscriptionService *service.SubscriptionService) *CompanyController {
	return &CompanyController{
		subscriptionService: subscriptionService,
		logger:              factory.NewModuleLogger("companies-controller"),
	}
}

func (c *CompanyController) CreateCompany(ctx echo.Context) error {
	req, err := types.NewCreateCompanyRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	company, err := c.subscriptionService.CreateCompany(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found")
		case errors.Is(err, service.ErrCompanyAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, "company already exists")
		default:
			c.logger.WithError(err).Error("Create company failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &dto.CompanyEnvelopeResponse{Company: mapper.CompanyToResponse(company)})
}

func (c *CompanyController) GetCompany(ctx echo.Context) error {
	req, err := types.NewCompanyIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	company, err := c.subscriptionService.GetCompany(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrCompanyNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "company not found")
		}
		c.logger.WithError(err).Error("Get company failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.CompanyEnvelopeResponse{Company: mapper.CompanyToResponse(company)})
}

func (c *CompanyController) GetEntitlements(ctx echo.Context) error {
	req, err := types.NewCompanyIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	entitlements, err := c.subscriptionService.Entitlements(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrCompanyNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "company not found")
		}
		c.logger.WithError(err).Error("Get entitlements failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.EntitlementsToResponse(entitlements))
}

func (c *CompanyController) ChangePlan(ctx echo.Context) error {
	req, err := types.NewPlanChangeRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	company, err := c.subscriptionService.ChangePlan(ctx.Request().Context(), req)
	if err != nil {
		return c.writeCompanyError(ctx, err, "Change plan failed")
	}

	return ctx.JSON(http.StatusOK, &dto.CompanyEnvelopeResponse{Company: mapper.CompanyToResponse(company)})
}

func (c *CompanyController) CancelScheduledUpdate(ctx echo.Context) error {
	req, err := types.NewCompanyIDRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	company, err := c.subscriptionService.CancelScheduledChange(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeCompanyError(ctx, err, "Cancel scheduled update failed")
	}

	return ctx.JSON(http.StatusOK, &dto.CompanyEnvelopeResponse{Company: mapper.CompanyToResponse(company)})
}

func (c *CompanyController) writeCompanyError(ctx echo.Context, err error, logMessage string) error {
	var gatewayErr *billing.GatewayError
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrNoActiveSubscription):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCompanyNotFound):
		return c.writeError(ctx, http.StatusNotFound, "company not found")
	case errors.Is(err, service.ErrPlanNotFound):
		return c.writeError(ctx, http.StatusNotFound, "plan not found")
	case errors.Is(err, service.ErrScheduleNotFound):
		return c.writeError(ctx, http.StatusNotFound, "no scheduled update exists")
	case errors.Is(err, service.ErrVersionConflict):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.As(err, &gatewayErr):
		c.logger.WithError(err).Warn(logMessage)
		return c.writeError(ctx, http.StatusBadGateway, "billing gateway unavailable, retry later")
	default:
		c.logger.WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *CompanyController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
