package analytics

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticketwell/metering/pkg/types"
)

// Service derives revenue and retention metrics from subscription state. The
// arithmetic lives in pure functions; this layer only loads their inputs.
// Every query runs against committed state and holds no locks the write path
// would contend on.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

type MRRReport struct {
	Period         types.PeriodKey `json:"period"`
	TotalCents     float64         `json:"total_cents"`
	NewCents       float64         `json:"new_cents"`
	ChurnedCents   float64         `json:"churned_cents"`
	NetGrowthCents float64         `json:"net_growth_cents"`
	Subscriptions  int64           `json:"subscriptions"`
}

type ChurnReport struct {
	Period      types.PeriodKey `json:"period"`
	Rate        float64         `json:"rate"`
	LiveAtStart int64           `json:"live_at_start"`
	Cancelled   int64           `json:"cancelled"`
}

type ConversionReport struct {
	Period        types.PeriodKey `json:"period"`
	Rate          float64         `json:"rate"`
	TrialsStarted int64           `json:"trials_started"`
	Converted     int64           `json:"converted"`
}

type CustomerRevenue struct {
	CustomerID string `json:"customer_id"`
	PaidCents  int64  `json:"paid_cents"`
}

type CLVReport struct {
	Period                 types.PeriodKey   `json:"period"`
	AvgMonthlyRevenueCents float64           `json:"avg_monthly_revenue_cents"`
	AvgLifetimeMonths      float64           `json:"avg_lifetime_months"`
	CLVCents               float64           `json:"clv_cents"`
	Customers              []CustomerRevenue `json:"customers"`
	Page                   int               `json:"page"`
	PageSize               int               `json:"page_size"`
	TotalCustomers         int64             `json:"total_customers"`
}

type Summary struct {
	Period              types.PeriodKey `json:"period"`
	MRRCents            float64         `json:"mrr_cents"`
	Subscriptions       int64           `json:"subscriptions"`
	ChurnRate           float64         `json:"churn_rate"`
	TrialConversionRate float64         `json:"trial_conversion_rate"`
	CLVCents            float64         `json:"clv_cents"`
}

const revenueLineSelect = `
SELECT s.status,
       COALESCE(p.interval, 'monthly') as interval,
       COALESCE(s.custom_price_cents, p.price_cents, 0) as price_cents
FROM subscription s
LEFT JOIN plan p ON p.id = s.plan_id
`

// loadRevenueLines resolves each counted subscription's effective price: the
// per-subscription custom price when set, else the plan price.
func (s *Service) loadRevenueLines(ctx context.Context) ([]RevenueLine, error) {
	var lines []RevenueLine
	err := s.db.WithContext(ctx).
		Raw(revenueLineSelect + `WHERE s.status IN ('active', 'trial')`).
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// GetMRRReport breaks recurring revenue down for one period: the running
// total, revenue added by subscriptions created in the period, revenue lost
// to cancellations in the period, and the net of the two.
func (s *Service) GetMRRReport(ctx context.Context, period types.PeriodKey) (*MRRReport, error) {
	start, end, err := period.Bounds()
	if err != nil {
		return nil, err
	}

	lines, err := s.loadRevenueLines(ctx)
	if err != nil {
		return nil, err
	}

	var newLines []RevenueLine
	err = s.db.WithContext(ctx).
		Raw(revenueLineSelect+`WHERE s.status IN ('active', 'trial') AND s.created_at >= ? AND s.created_at < ?`, start, end).
		Scan(&newLines).Error
	if err != nil {
		return nil, err
	}

	var churnedLines []RevenueLine
	err = s.db.WithContext(ctx).
		Raw(revenueLineSelect+`WHERE s.cancelled_at >= ? AND s.cancelled_at < ?`, start, end).
		Scan(&churnedLines).Error
	if err != nil {
		return nil, err
	}

	newCents := ComputeMRR(newLines)
	churnedCents := SumMonthlyCents(churnedLines)
	return &MRRReport{
		Period:         period,
		TotalCents:     ComputeMRR(lines),
		NewCents:       newCents,
		ChurnedCents:   churnedCents,
		NetGrowthCents: newCents - churnedCents,
		Subscriptions:  int64(len(lines)),
	}, nil
}

// GetChurnReport measures cancellations over the period against subscriptions
// live at period start.
func (s *Service) GetChurnReport(ctx context.Context, period types.PeriodKey) (*ChurnReport, error) {
	start, end, err := period.Bounds()
	if err != nil {
		return nil, err
	}

	var liveAtStart int64
	err = s.db.WithContext(ctx).Table("subscription").
		Where("created_at < ?", start).
		Where("cancelled_at IS NULL OR cancelled_at >= ?", start).
		Count(&liveAtStart).Error
	if err != nil {
		return nil, err
	}

	var cancelledDuring int64
	err = s.db.WithContext(ctx).Table("subscription").
		Where("cancelled_at >= ? AND cancelled_at < ?", start, end).
		Count(&cancelledDuring).Error
	if err != nil {
		return nil, err
	}

	return &ChurnReport{
		Period:      period,
		Rate:        ComputeChurnRate(liveAtStart, cancelledDuring),
		LiveAtStart: liveAtStart,
		Cancelled:   cancelledDuring,
	}, nil
}

// GetConversionReport measures trials started in the period that have since
// activated.
func (s *Service) GetConversionReport(ctx context.Context, period types.PeriodKey) (*ConversionReport, error) {
	start, end, err := period.Bounds()
	if err != nil {
		return nil, err
	}

	var started int64
	err = s.db.WithContext(ctx).Table("subscription").
		Where("trial_start >= ? AND trial_start < ?", start, end).
		Count(&started).Error
	if err != nil {
		return nil, err
	}

	var converted int64
	err = s.db.WithContext(ctx).Table("subscription").
		Where("trial_start >= ? AND trial_start < ?", start, end).
		Where("activated_at IS NOT NULL").
		Count(&converted).Error
	if err != nil {
		return nil, err
	}

	return &ConversionReport{
		Period:        period,
		Rate:          ComputeConversionRate(started, converted),
		TrialsStarted: started,
		Converted:     converted,
	}, nil
}

// GetCLVReport estimates lifetime value from average revenue per counted
// subscription and the period's churn rate, with a paginated per-customer
// paid-revenue breakdown for large customer bases.
func (s *Service) GetCLVReport(ctx context.Context, period types.PeriodKey, page, pageSize int) (*CLVReport, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	mrr, err := s.GetMRRReport(ctx, period)
	if err != nil {
		return nil, err
	}
	churn, err := s.GetChurnReport(ctx, period)
	if err != nil {
		return nil, err
	}

	var arpa float64
	if mrr.Subscriptions > 0 {
		arpa = mrr.TotalCents / float64(mrr.Subscriptions)
	}

	var total int64
	err = s.db.WithContext(ctx).Table("billing_record b").
		Joins("JOIN subscription s ON s.id = b.subscription_id").
		Where("b.status = ?", types.BillingStatusPaid).
		Distinct("s.customer_id").
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	var customers []CustomerRevenue
	err = s.db.WithContext(ctx).
		Raw(`
SELECT s.customer_id, SUM(b.amount_paid_cents) as paid_cents
FROM billing_record b
JOIN subscription s ON s.id = b.subscription_id
WHERE b.status = ?
GROUP BY s.customer_id
ORDER BY paid_cents DESC, s.customer_id
LIMIT ? OFFSET ?`, types.BillingStatusPaid, pageSize, (page-1)*pageSize).
		Scan(&customers).Error
	if err != nil {
		return nil, err
	}

	return &CLVReport{
		Period:                 period,
		AvgMonthlyRevenueCents: arpa,
		AvgLifetimeMonths:      ComputeLifetimeMonths(churn.Rate),
		CLVCents:               ComputeCLV(arpa, churn.Rate),
		Customers:              customers,
		Page:                   page,
		PageSize:               pageSize,
		TotalCustomers:         total,
	}, nil
}

// GetSummary assembles the period's headline metrics. CLV uses the period's
// churn rate against current average revenue per counted subscription.
func (s *Service) GetSummary(ctx context.Context, period types.PeriodKey) (*Summary, error) {
	mrr, err := s.GetMRRReport(ctx, period)
	if err != nil {
		return nil, err
	}
	churn, err := s.GetChurnReport(ctx, period)
	if err != nil {
		return nil, err
	}
	conversion, err := s.GetConversionReport(ctx, period)
	if err != nil {
		return nil, err
	}

	var arpa float64
	if mrr.Subscriptions > 0 {
		arpa = mrr.TotalCents / float64(mrr.Subscriptions)
	}

	return &Summary{
		Period:              period,
		MRRCents:            mrr.TotalCents,
		Subscriptions:       mrr.Subscriptions,
		ChurnRate:           churn.Rate,
		TrialConversionRate: conversion.Rate,
		CLVCents:            ComputeCLV(arpa, churn.Rate),
	}, nil
}
