package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/dto"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/service"
)

func PlanToResponse(item *entity.Plan) *dto.PlanResponse {
	if item == nil {
		return nil
	}

	options := make([]dto.BillingOptionResponse, 0, len(item.BillingOptions))
	for _, option := range item.BillingOptions {
		options = append(options, dto.BillingOptionResponse{
			Interval:      string(option.Interval),
			StripePriceID: option.StripePriceID,
			Amount:        option.Amount,
			Tier:          option.Tier,
		})
	}

	features := item.Features
	if features == nil {
		features = make([]string, 0)
	}

	return &dto.PlanResponse{
		ID:              item.ID,
		StripeProductID: item.StripeProductID,
		Name:            item.Name,
		Currency:        item.Currency,
		BillingOptions:  options,
		Allowances:      allowancesToResponse(item.Allowances),
		IsActive:        item.IsActive,
		IsVisible:       item.IsVisible,
		Features:        features,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PlansToResponse(items []*entity.Plan) []*dto.PlanResponse {
	result := make([]*dto.PlanResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PlanToResponse(item))
	}
	return result
}

func CompanyToResponse(item *entity.Company) *dto.CompanyResponse {
	if item == nil {
		return nil
	}

	resp := &dto.CompanyResponse{
		ID:                 item.ID,
		Name:               item.Name,
		StripeCustomerID:   item.StripeCustomerID,
		SubscriptionStatus: string(item.SubscriptionStatus),
		CurrentPeriodStart: formatTime(item.CurrentPeriodStart),
		CurrentPeriodEnd:   formatTime(item.CurrentPeriodEnd),
		CancelAtPeriodEnd:  item.CancelAtPeriodEnd,
		Plan:               planSnapshotToResponse(item.Plan),
		CreatedAt:          item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.StripeSubscriptionID != nil {
		resp.StripeSubscriptionID = *item.StripeSubscriptionID
	}
	if item.ScheduledUpdate != nil {
		resp.ScheduledUpdate = &dto.ScheduledUpdateResponse{
			PlanSnapshotResponse: planSnapshotToResponse(item.ScheduledUpdate.PlanSnapshot),
			EffectiveAt:          item.ScheduledUpdate.EffectiveAt.UTC().Format(time.RFC3339),
			StripeScheduleID:     item.ScheduledUpdate.StripeScheduleID,
		}
	}

	return resp
}

func EntitlementsToResponse(item *service.Entitlements) *dto.EntitlementsResponse {
	if item == nil {
		return nil
	}

	return &dto.EntitlementsResponse{
		CompanyID:  item.CompanyID,
		Status:     string(item.Status),
		Tier:       item.Tier,
		Allowances: allowancesToResponse(item.Allowances),
	}
}

func SyncReportToResponse(report *service.SyncReport) *dto.SyncReportResponse {
	if report == nil {
		return nil
	}

	failed := make([]dto.ProductSyncErrorResponse, 0, len(report.Failed))
	for _, failure := range report.Failed {
		failed = append(failed, dto.ProductSyncErrorResponse{
			StripeProductID: failure.StripeProductID,
			Error:           failure.Err.Error(),
		})
	}

	return &dto.SyncReportResponse{Synced: report.Synced, Failed: failed}
}

func planSnapshotToResponse(snapshot entity.PlanSnapshot) dto.PlanSnapshotResponse {
	return dto.PlanSnapshotResponse{
		StripeProductID: snapshot.StripeProductID,
		StripePriceID:   snapshot.StripePriceID,
		Tier:            snapshot.Tier,
		Allowances:      allowancesToResponse(snapshot.Allowances),
	}
}

func allowancesToResponse(allowances entity.Allowances) dto.AllowancesResponse {
	return dto.AllowancesResponse{
		AllowedUsers:       allowances.AllowedUsers,
		AllowedTranscripts: allowances.AllowedTranscripts,
		AllowedReviews:     allowances.AllowedReviews,
	}
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
