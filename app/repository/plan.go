package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var ErrPlanNotFound = errors.New("plan not found")

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// Upsert inserts or replaces a plan keyed on its external product id. The
// synchronizer depends on this being idempotent for unchanged payloads.
func (r *PlanRepository) Upsert(ctx context.Context, plan *entity.Plan) error {
	billingOptions, err := json.Marshal(plan.BillingOptions)
	if err != nil {
		return fmt.Errorf("marshal billing options: %w", err)
	}
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	metadata, err := json.Marshal(plan.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO plans (
			stripe_product_id, name, currency, billing_options,
			allowed_users, allowed_transcripts, allowed_reviews,
			is_active, is_visible, features, metadata,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			currency = VALUES(currency),
			billing_options = VALUES(billing_options),
			allowed_users = VALUES(allowed_users),
			allowed_transcripts = VALUES(allowed_transcripts),
			allowed_reviews = VALUES(allowed_reviews),
			is_active = VALUES(is_active),
			is_visible = VALUES(is_visible),
			features = VALUES(features),
			metadata = VALUES(metadata),
			updated_at = VALUES(updated_at)
	`

	result, err := r.db.ExecContext(ctx, query,
		plan.StripeProductID,
		plan.Name,
		plan.Currency,
		billingOptions,
		plan.Allowances.AllowedUsers,
		plan.Allowances.AllowedTranscripts,
		plan.Allowances.AllowedReviews,
		plan.IsActive,
		plan.IsVisible,
		features,
		metadata,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if id, err := result.LastInsertId(); err == nil && id > 0 {
		plan.ID = uint64(id)
	}
	return nil
}

func (r *PlanRepository) FindByStripeProductID(ctx context.Context, stripeProductID string) (*entity.Plan, error) {
	query := planSelectColumns + ` WHERE stripe_product_id = ?`

	item, err := scanPlan(r.db.QueryRowContext(ctx, query, stripeProductID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *PlanRepository) ListVisible(ctx context.Context) ([]*entity.Plan, error) {
	query := planSelectColumns + ` WHERE is_active = 1 AND is_visible = 1 ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Plan, 0)
	for rows.Next() {
		item, err := scanPlan(rows)
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

func (r *PlanRepository) DeleteByStripeProductID(ctx context.Context, stripeProductID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE stripe_product_id = ?`, stripeProductID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPlanNotFound
	}

	return nil
}

const planSelectColumns = `
	SELECT id, stripe_product_id, name, currency, billing_options,
	       allowed_users, allowed_transcripts, allowed_reviews,
	       is_active, is_visible, features, metadata,
	       created_at, updated_at
	FROM plans
`

func scanPlan(scanner rowScanner) (*entity.Plan, error) {
	item := &entity.Plan{}
	var billingOptions []byte
	var features []byte
	var metadata []byte

	err := scanner.Scan(
		&item.ID,
		&item.StripeProductID,
		&item.Name,
		&item.Currency,
		&billingOptions,
		&item.Allowances.AllowedUsers,
		&item.Allowances.AllowedTranscripts,
		&item.Allowances.AllowedReviews,
		&item.IsActive,
		&item.IsVisible,
		&features,
		&metadata,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(billingOptions) > 0 {
		if err := json.Unmarshal(billingOptions, &item.BillingOptions); err != nil {
			return nil, fmt.Errorf("unmarshal billing options: %w", err)
		}
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &item.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return item, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
