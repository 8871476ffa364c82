package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/types"
)

type RevenueStatisticType string

const (
	RevenueStatisticTypeDailyRevenue       RevenueStatisticType = "daily_revenue"
	RevenueStatisticTypeMonthlyRevenue     RevenueStatisticType = "monthly_revenue"
	RevenueStatisticTypeCumulativeRevenue  RevenueStatisticType = "cumulative_revenue"
	RevenueStatisticTypeOutstandingBalance RevenueStatisticType = "outstanding_balance"
	RevenueStatisticTypeFailedAttemptCount RevenueStatisticType = "daily_failed_attempt_count"
)

type RevenueStatisticDataItem struct {
	ID RevenueStatisticType `json:"id"`
}

type RevenueStatisticRequest struct {
	Filters   []*types.CommonFilter       `json:"filters"`
	DataItems []*RevenueStatisticDataItem `json:"data_items"`
}

// Build composes a WHERE clause from the request filters for queries over
// billing_record.
func (f *RevenueStatisticRequest) Build(builder clause.Builder) {
	if f == nil || len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type RevenueStatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type RevenueStatisticResponse struct {
	DataItems map[RevenueStatisticType][]RevenueStatisticResponseDataItem `json:"data_items"`
}

func (s *Service) getDailyRevenue(ctx context.Context, request *RevenueStatisticRequest) ([]RevenueStatisticResponseDataItem, error) {
	var results []RevenueStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.BillingRecord{}).TableName()).
		Select("TO_CHAR(paid_at, 'YYYY-MM-DD') as date, currency as label, sum(amount_paid_cents) as value").
		Where("status = ?", types.BillingStatusPaid).
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(paid_at, 'YYYY-MM-DD')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getMonthlyRevenue(ctx context.Context, request *RevenueStatisticRequest) ([]RevenueStatisticResponseDataItem, error) {
	var results []RevenueStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.BillingRecord{}).TableName()).
		Select("TO_CHAR(paid_at, 'YYYY-MM') as date, currency as label, sum(amount_paid_cents) as value").
		Where("status = ?", types.BillingStatusPaid).
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(paid_at, 'YYYY-MM')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getCumulativeRevenue(ctx context.Context, _ *RevenueStatisticRequest) ([]RevenueStatisticResponseDataItem, error) {
	var results []RevenueStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH min_max_dates AS (
    SELECT MIN(DATE(paid_at)) as min_date, MAX(DATE(paid_at)) as max_date
    FROM billing_record WHERE status = ?
),
distinct_dates AS (
    SELECT generate_series(min_date, max_date, '1 day'::interval) as date FROM min_max_dates
),
dates AS (
    SELECT TO_CHAR(date, 'YYYY-MM-DD') as date FROM distinct_dates
),
currencies AS (
    SELECT DISTINCT currency as label FROM billing_record WHERE status = ?
),
date_currency_combinations AS (
    SELECT d.date, c.label FROM dates d CROSS JOIN currencies c
),
revenue_date AS (
    SELECT dc.date, dc.label, COALESCE(SUM(b.amount_paid_cents), 0) as value
    FROM date_currency_combinations dc
    LEFT JOIN billing_record b
      ON TO_CHAR(b.paid_at, 'YYYY-MM-DD') = dc.date
     AND b.currency = dc.label
     AND b.status = ?
    GROUP BY dc.date, dc.label
)
SELECT d.date as date, d.label as label, SUM(s.value) as value
FROM revenue_date d
LEFT JOIN revenue_date s ON s.date <= d.date AND s.label = d.label
GROUP BY d.date, d.label
ORDER BY d.date DESC, d.label ASC
`, types.BillingStatusPaid, types.BillingStatusPaid, types.BillingStatusPaid).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getOutstandingBalance(ctx context.Context, request *RevenueStatisticRequest) ([]RevenueStatisticResponseDataItem, error) {
	var results []RevenueStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.BillingRecord{}).TableName()).
		Select("currency as label, sum(amount_remaining_cents) as value").
		Where("status IN ?", []types.BillingStatus{types.BillingStatusOpen, types.BillingStatusUncollectible}).
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("currency")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyFailedAttemptCount(ctx context.Context, request *RevenueStatisticRequest) ([]RevenueStatisticResponseDataItem, error) {
	var results []RevenueStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.BillingRecord{}).TableName()).
		Select("TO_CHAR(updated_at, 'YYYY-MM-DD') as date, sum(attempt_count) as value").
		Where("attempt_count > 0").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(updated_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getRevenueStatistic(ctx context.Context, request *RevenueStatisticRequest, dataItem *RevenueStatisticDataItem) ([]RevenueStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case RevenueStatisticTypeDailyRevenue:
		return s.getDailyRevenue(ctx, request)
	case RevenueStatisticTypeMonthlyRevenue:
		return s.getMonthlyRevenue(ctx, request)
	case RevenueStatisticTypeCumulativeRevenue:
		return s.getCumulativeRevenue(ctx, request)
	case RevenueStatisticTypeOutstandingBalance:
		return s.getOutstandingBalance(ctx, request)
	case RevenueStatisticTypeFailedAttemptCount:
		return s.getDailyFailedAttemptCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetRevenueStatistic resolves the requested data items concurrently, one
// query per item.
func (s *Service) GetRevenueStatistic(ctx context.Context, request *RevenueStatisticRequest) (*RevenueStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[RevenueStatisticType, []RevenueStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *RevenueStatisticDataItem) {
			defer wg.Done()
			res, err := s.getRevenueStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[RevenueStatisticType, []RevenueStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	results := make(map[RevenueStatisticType][]RevenueStatisticResponseDataItem)
	for i := 0; i < len(request.DataItems); i++ {
		select {
		case err := <-errChan:
			if err != nil {
				return nil, err
			}
		case entry := <-resChan:
			results[entry.Key] = entry.Value
		}
	}
	return &RevenueStatisticResponse{DataItems: results}, nil
}
