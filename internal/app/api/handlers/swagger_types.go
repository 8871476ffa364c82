package handlers

import (
	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/app/service/analytics"
	"github.com/ticketwell/metering/internal/app/service/billing"
	"github.com/ticketwell/metering/internal/app/service/entitlement"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespDecision wraps an admission decision in the standard envelope.
type RespDecision struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    entitlement.Decision     `json:"data"`
}

// RespRecordUsage wraps RecordUsageResponse in the standard envelope.
type RespRecordUsage struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    RecordUsageResponse      `json:"data"`
}

// RespUsageSummary wraps UsageSummaryResponse in the standard envelope.
type RespUsageSummary struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    UsageSummaryResponse     `json:"data"`
}

// RespListUsageEvents wraps the paginated ledger listing.
type RespListUsageEvents struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    ledger.ListEventsResponse `json:"data"`
}

// RespReconcile wraps a reconciliation result.
type RespReconcile struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    aggregator.ReconcileResult `json:"data"`
}

// RespSubscription wraps a subscription row.
type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

// RespEntitlements wraps the resolved limit set.
type RespEntitlements struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    subscription.Entitlements `json:"data"`
}

// RespListPlans wraps the plan catalog listing.
type RespListPlans struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []*models.Plan           `json:"data"`
}

// RespPlan wraps one plan.
type RespPlan struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Plan              `json:"data"`
}

// RespRevenueStatistic wraps the revenue statistic response.
type RespRevenueStatistic struct {
	Code    response.APIResponseCode         `json:"code"`
	Message string                           `json:"message"`
	Data    billing.RevenueStatisticResponse `json:"data"`
}

// RespAnalyticsSummary wraps the period analytics summary.
type RespAnalyticsSummary struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    analytics.Summary        `json:"data"`
}

// RespMRRReport wraps the MRR breakdown report.
type RespMRRReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    analytics.MRRReport      `json:"data"`
}

// RespChurnReport wraps the churn report.
type RespChurnReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    analytics.ChurnReport    `json:"data"`
}

// RespConversionReport wraps the trial conversion report.
type RespConversionReport struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    analytics.ConversionReport `json:"data"`
}

// RespCLVReport wraps the paginated CLV report.
type RespCLVReport struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    analytics.CLVReport      `json:"data"`
}

// RespListBillingRecords wraps the billing record listing.
type RespListBillingRecords struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []*models.BillingRecord  `json:"data"`
}
