package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-billing/app/billing"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/config"

	_ "github.com/go-sql-driver/mysql"
)

var (
	syncPlansWorker        bool
	promoteSchedulesWorker bool
)

var syncPlansCmd = &cobra.Command{
	Use:   "sync-plans",
	Short: "Reconcile the remote product catalog into the plan store",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"sync_plans",
			syncPlansWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.PlanSyncInterval },
			func(services *jobServices, ctx context.Context) error {
				report, err := services.planSync.SyncProducts(ctx)
				if err != nil {
					return err
				}
				logrus.WithField("synced", report.Synced).
					WithField("failed", len(report.Failed)).
					Info("plan_sync_report")
				return nil
			},
		)
	},
}

var promoteSchedulesCmd = &cobra.Command{
	Use:   "promote-schedules",
	Short: "Promote due scheduled plan changes into the active snapshot",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"promote_schedules",
			promoteSchedulesWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SchedulePromotionInterval },
			func(services *jobServices, ctx context.Context) error {
				return services.subscription.PromoteDueSchedules(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(syncPlansCmd)
	rootCmd.AddCommand(promoteSchedulesCmd)

	syncPlansCmd.Flags().BoolVar(&syncPlansWorker, "worker", false, "Run continuously using configured interval")
	promoteSchedulesCmd.Flags().BoolVar(&promoteSchedulesWorker, "worker", false, "Run continuously using configured interval")
}

type jobServices struct {
	planSync     *service.PlanSyncService
	subscription *service.SubscriptionService
}

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(services *jobServices, ctx context.Context) error,
) {
	cfg, services, cleanup := mustCreateJobServices()
	defer cleanup()

	if worker {
		runWorker(name, intervalResolver(cfg), services, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(services, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	services *jobServices,
	fn func(services *jobServices, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(services, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(services, ctx) })
		}
	}
}

func mustCreateJobServices() (*config.Config, *jobServices, func()) {
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

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	planRepo := repository.NewPlanRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	gateway := billing.NewStripeGateway(cfg.Billing.StripeAPIKey, cfg.Billing.StripeBaseURL, cfg.Billing.RequestTimeout)

	services := &jobServices{
		planSync:     service.NewPlanSyncService(gateway, planRepo),
		subscription: service.NewSubscriptionService(companyRepo, planRepo, gateway),
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, services, cleanup
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
