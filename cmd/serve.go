package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-billing/app/auth"
	"github.com/vibast-solutions/ms-go-billing/app/billing"
	"github.com/vibast-solutions/ms-go-billing/app/controller"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the billing service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	planRepo := repository.NewPlanRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	gateway := billing.NewStripeGateway(cfg.Billing.StripeAPIKey, cfg.Billing.StripeBaseURL, cfg.Billing.RequestTimeout)
	planService := service.NewPlanService(planRepo)
	planSyncService := service.NewPlanSyncService(gateway, planRepo)
	subscriptionService := service.NewSubscriptionService(companyRepo, planRepo, gateway)

	planController := controller.NewPlanController(planService, planSyncService)
	companyController := controller.NewCompanyController(subscriptionService)
	webhookController := controller.NewWebhookController(subscriptionService, cfg.Billing.StripeWebhookSecret)
	apiKeyMiddleware := auth.NewAPIKeyMiddleware(cfg.App.APIKey)

	e := setupHTTPServer(planController, companyController, webhookController, apiKeyMiddleware)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	planController *controller.PlanController,
	companyController *controller.CompanyController,
	webhookController *controller.WebhookController,
	apiKeyMiddleware *auth.APIKeyMiddleware,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))

	e.GET("/health", planController.Health)

	// Webhooks authenticate with the gateway's payload signature, not the
	// internal API key.
	webhooks := e.Group("/webhooks")
	webhooks.POST("/billing", webhookController.BillingEvents)

	plans := e.Group("/plans", apiKeyMiddleware.RequireInternalAccess())
	plans.GET("", planController.ListPlans)
	plans.POST("/sync", planController.SyncPlans)
	plans.GET("/:stripe_product_id", planController.GetPlan)
	plans.DELETE("/:stripe_product_id", planController.DeletePlan)

	companies := e.Group("/companies", apiKeyMiddleware.RequireInternalAccess())
	companies.POST("", companyController.CreateCompany)
	companies.GET("/:id", companyController.GetCompany)
	companies.GET("/:id/entitlements", companyController.GetEntitlements)
	companies.POST("/:id/plan-change", companyController.ChangePlan)
	companies.DELETE("/:id/scheduled-update", companyController.CancelScheduledUpdate)

	return e
}
