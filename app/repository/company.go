package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrCompanyNotFound      = errors.New("company not found")
	ErrCompanyAlreadyExists = errors.New("company already exists")
	ErrVersionConflict      = errors.New("company version conflict")
)

type CompanyRepository struct {
	db DBTX
}

func NewCompanyRepository(db DBTX) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	scheduledUpdate, err := marshalScheduledUpdate(company.ScheduledUpdate)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO companies (
			name, stripe_customer_id, stripe_subscription_id, subscription_status,
			current_period_start, current_period_end, cancel_at_period_end,
			plan_stripe_product_id, plan_stripe_price_id, plan_tier,
			allowed_users, allowed_transcripts, allowed_reviews,
			scheduled_update, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		company.Name,
		company.StripeCustomerID,
		nullableStringValue(company.StripeSubscriptionID),
		string(company.SubscriptionStatus),
		nullableTimeValue(company.CurrentPeriodStart),
		nullableTimeValue(company.CurrentPeriodEnd),
		company.CancelAtPeriodEnd,
		company.Plan.StripeProductID,
		company.Plan.StripePriceID,
		company.Plan.Tier,
		company.Plan.Allowances.AllowedUsers,
		company.Plan.Allowances.AllowedTranscripts,
		company.Plan.Allowances.AllowedReviews,
		scheduledUpdate,
		company.Version,
		company.CreatedAt,
		company.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCompanyAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	company.ID = uint64(id)
	return nil
}

// UpdateSubscriptionState writes the subscription snapshot guarded by the
// optimistic version token. Zero affected rows means another writer got there
// first (or the row is gone); callers treat both as a conflict and re-read.
func (r *CompanyRepository) UpdateSubscriptionState(ctx context.Context, company *entity.Company) error {
	scheduledUpdate, err := marshalScheduledUpdate(company.ScheduledUpdate)
	if err != nil {
		return err
	}

	query := `
		UPDATE companies
		SET stripe_subscription_id = ?, subscription_status = ?,
		    current_period_start = ?, current_period_end = ?, cancel_at_period_end = ?,
		    plan_stripe_product_id = ?, plan_stripe_price_id = ?, plan_tier = ?,
		    allowed_users = ?, allowed_transcripts = ?, allowed_reviews = ?,
		    scheduled_update = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(company.StripeSubscriptionID),
		string(company.SubscriptionStatus),
		nullableTimeValue(company.CurrentPeriodStart),
		nullableTimeValue(company.CurrentPeriodEnd),
		company.CancelAtPeriodEnd,
		company.Plan.StripeProductID,
		company.Plan.StripePriceID,
		company.Plan.Tier,
		company.Plan.Allowances.AllowedUsers,
		company.Plan.Allowances.AllowedTranscripts,
		company.Plan.Allowances.AllowedReviews,
		scheduledUpdate,
		company.UpdatedAt,
		company.ID,
		company.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	company.Version++
	return nil
}

func (r *CompanyRepository) FindByID(ctx context.Context, id uint64) (*entity.Company, error) {
	query := companySelectColumns + ` WHERE id = ?`
	return r.findOne(ctx, query, id)
}

func (r *CompanyRepository) FindByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*entity.Company, error) {
	query := companySelectColumns + ` WHERE stripe_customer_id = ?`
	return r.findOne(ctx, query, stripeCustomerID)
}

func (r *CompanyRepository) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*entity.Company, error) {
	query := companySelectColumns + ` WHERE stripe_subscription_id = ?`
	return r.findOne(ctx, query, stripeSubscriptionID)
}

// ListWithScheduledUpdates returns every company carrying a scheduled plan
// change; due-date filtering happens in the service so the tie-break against
// the current period end stays in one place.
func (r *CompanyRepository) ListWithScheduledUpdates(ctx context.Context) ([]*entity.Company, error) {
	query := companySelectColumns + ` WHERE scheduled_update IS NOT NULL ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Company, 0)
	for rows.Next() {
		item, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *CompanyRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Company, error) {
	item, err := scanCompany(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

const companySelectColumns = `
	SELECT id, name, stripe_customer_id, stripe_subscription_id, subscription_status,
	       current_period_start, current_period_end, cancel_at_period_end,
	       plan_stripe_product_id, plan_stripe_price_id, plan_tier,
	       allowed_users, allowed_transcripts, allowed_reviews,
	       scheduled_update, version, created_at, updated_at
	FROM companies
`

func scanCompany(scanner rowScanner) (*entity.Company, error) {
	item := &entity.Company{}
	var subscriptionID sql.NullString
	var status string
	var periodStart sql.NullTime
	var periodEnd sql.NullTime
	var scheduledUpdate []byte

	err := scanner.Scan(
		&item.ID,
		&item.Name,
		&item.StripeCustomerID,
		&subscriptionID,
		&status,
		&periodStart,
		&periodEnd,
		&item.CancelAtPeriodEnd,
		&item.Plan.StripeProductID,
		&item.Plan.StripePriceID,
		&item.Plan.Tier,
		&item.Plan.Allowances.AllowedUsers,
		&item.Plan.Allowances.AllowedTranscripts,
		&item.Plan.Allowances.AllowedReviews,
		&scheduledUpdate,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.SubscriptionStatus = entity.SubscriptionStatus(status)
	if subscriptionID.Valid {
		item.StripeSubscriptionID = &subscriptionID.String
	}
	if periodStart.Valid {
		item.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		item.CurrentPeriodEnd = &periodEnd.Time
	}
	if len(scheduledUpdate) > 0 {
		su := &entity.ScheduledUpdate{}
		if err := json.Unmarshal(scheduledUpdate, su); err != nil {
			return nil, fmt.Errorf("unmarshal scheduled update: %w", err)
		}
		item.ScheduledUpdate = su
	}

	return item, nil
}

func marshalScheduledUpdate(su *entity.ScheduledUpdate) (interface{}, error) {
	if su == nil {
		return nil, nil
	}
	data, err := json.Marshal(su)
	if err != nil {
		return nil, fmt.Errorf("marshal scheduled update: %w", err)
	}
	return data, nil
}

func nullableStringValue(v *string) interface{} {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return strings.TrimSpace(*v)
}

func nullableTimeValue(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
