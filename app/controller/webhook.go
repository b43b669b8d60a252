package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/billing"
	"github.com/vibast-solutions/ms-go-billing/app/dto"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

const signatureTolerance = 5 * time.Minute

type eventApplier interface {
	ApplyGatewayEvent(ctx context.Context, ev *billing.Event) error
}

type WebhookController struct {
	subscriptionService eventApplier
	webhookSecret       string
	logger              logrus.FieldLogger
}

func NewWebhookController(subscriptionService eventApplier, webhookSecret string) *WebhookController {
	return &WebhookController{
		subscriptionService: subscriptionService,
		webhookSecret:       webhookSecret,
		logger:              factory.NewModuleLogger("webhooks-controller"),
	}
}

// BillingEvents receives gateway webhooks. The response is 2xx only after the
// event is fully processed or decided to be a no-op; any local failure yields
// a 5xx so the gateway's retry mechanism resends the event.
func (c *WebhookController) BillingEvents(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "unreadable request body")
	}

	if c.webhookSecret != "" {
		signature := ctx.Request().Header.Get("Stripe-Signature")
		if err := billing.VerifySignature(payload, signature, c.webhookSecret, time.Now(), signatureTolerance); err != nil {
			factory.LoggerWithContext(c.logger, ctx).Warn("Webhook signature verification failed")
			return c.writeError(ctx, http.StatusBadRequest, "invalid signature")
		}
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		if errors.Is(err, billing.ErrEventIgnored) {
			return ctx.JSON(http.StatusOK, &dto.MessageResponse{Message: "Event ignored"})
		}
		return c.writeError(ctx, http.StatusBadRequest, "invalid event payload")
	}

	if err := c.subscriptionService.ApplyGatewayEvent(ctx.Request().Context(), event); err != nil {
		c.logger.WithError(err).
			WithField("event_id", event.ID).
			WithField("event_type", event.Type).
			Error("Gateway event processing failed")
		return c.writeError(ctx, http.StatusInternalServerError, "event processing failed")
	}

	return ctx.JSON(http.StatusOK, &dto.MessageResponse{Message: "Event processed"})
}

func (c *WebhookController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
