package aggregator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/config"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/metrics"
	"github.com/ticketwell/metering/pkg/tool"
	"github.com/ticketwell/metering/pkg/types"
)

// Service maintains the per-period usage summaries derived from the event
// ledger. All mutation funnels through ApplyDelta, which increments counters
// in a single SQL statement; the summary row is never read-modified-written
// at the application layer, so concurrent events cannot lose updates.
type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log}
}

// ApplyDelta adds the event's counter delta to the (subscription, period)
// summary row, creating the row if this is the period's first event. The
// create races with concurrent first events; the unique index on
// (subscription, period) resolves the loser, which retries the increment.
func (s *Service) ApplyDelta(ctx context.Context, subscriptionID string, period types.PeriodKey, delta types.UsageCounts) error {
	if delta.IsZero() {
		return nil
	}

	apply := func() (int64, error) {
		res := s.db.WithContext(ctx).Model(&models.UsageSummary{}).
			Where("subscription_id = ? AND period = ?", subscriptionID, period.String()).
			Updates(map[string]any{
				"active_count":    gorm.Expr("active_count + ?", delta.Active),
				"completed_count": gorm.Expr("completed_count + ?", delta.Completed),
				"total_count":     gorm.Expr("total_count + ?", delta.Total),
				"archived_count":  gorm.Expr("archived_count + ?", delta.Archived),
			})
		return res.RowsAffected, res.Error
	}

	affected, err := apply()
	if err != nil {
		return fmt.Errorf("failed to apply usage delta: %w", err)
	}
	if affected > 0 {
		return nil
	}

	row := &models.UsageSummary{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: subscriptionID,
		Period:         period.String(),
		ActiveCount:    delta.Active,
		CompletedCount: delta.Completed,
		TotalCount:     delta.Total,
		ArchivedCount:  delta.Archived,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the first-event race; the row exists now.
			if _, err := apply(); err != nil {
				return fmt.Errorf("failed to apply usage delta after create race: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to create usage summary: %w", err)
	}
	return nil
}

// GetUsage reads the cached summary for the period. A missing row means no
// events yet and reads as all-zero counts.
func (s *Service) GetUsage(ctx context.Context, subscriptionID string, period types.PeriodKey) (types.UsageCounts, error) {
	var row models.UsageSummary
	err := s.db.WithContext(ctx).
		Where("subscription_id = ? AND period = ?", subscriptionID, period.String()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.UsageCounts{}, nil
		}
		return types.UsageCounts{}, fmt.Errorf("failed to get usage summary: %w", err)
	}
	return row.Counts(), nil
}

// Recompute derives the period's counts directly from the ledger. This is
// the authoritative read path, used by reconciliation and tests.
func (s *Service) Recompute(ctx context.Context, subscriptionID string, period types.PeriodKey) (types.UsageCounts, error) {
	var events []*models.UsageEvent
	err := s.db.WithContext(ctx).
		Where("subscription_id = ? AND period = ?", subscriptionID, period.String()).
		Order("occurred_at, id").
		Find(&events).Error
	if err != nil {
		return types.UsageCounts{}, fmt.Errorf("failed to load usage events: %w", err)
	}
	return FoldEvents(events), nil
}

// ReconcileResult reports one reconciliation pass.
type ReconcileResult struct {
	SubscriptionID string            `json:"subscription_id"`
	Period         string            `json:"period"`
	Cached         types.UsageCounts `json:"cached"`
	Recomputed     types.UsageCounts `json:"recomputed"`
	Drifted        bool              `json:"drifted"`
}

// Reconcile recomputes the period from the ledger and overwrites the cached
// summary when they disagree. Differences beyond the configured tolerance
// are logged as drift; the correction itself is never an error.
func (s *Service) Reconcile(ctx context.Context, subscriptionID string, period types.PeriodKey) (*ReconcileResult, error) {
	recomputed, err := s.Recompute(ctx, subscriptionID, period)
	if err != nil {
		return nil, err
	}
	cached, err := s.GetUsage(ctx, subscriptionID, period)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{
		SubscriptionID: subscriptionID,
		Period:         period.String(),
		Cached:         cached,
		Recomputed:     recomputed,
	}
	if cached == recomputed {
		return result, nil
	}

	tol := s.cfg.Aggregator.DriftTolerance
	if exceeds(cached.Active-recomputed.Active, tol) ||
		exceeds(cached.Completed-recomputed.Completed, tol) ||
		exceeds(cached.Total-recomputed.Total, tol) ||
		exceeds(cached.Archived-recomputed.Archived, tol) {
		result.Drifted = true
		metrics.SummaryDriftCorrections.Inc()
		logctx.FromCtx(ctx, s.log).Warnw("usage summary drift corrected",
			"subscription_id", subscriptionID,
			"period", period.String(),
			"cached", cached,
			"recomputed", recomputed,
		)
	}

	overwrite := func() (int64, error) {
		res := s.db.WithContext(ctx).Model(&models.UsageSummary{}).
			Where("subscription_id = ? AND period = ?", subscriptionID, period.String()).
			Updates(map[string]any{
				"active_count":    recomputed.Active,
				"completed_count": recomputed.Completed,
				"total_count":     recomputed.Total,
				"archived_count":  recomputed.Archived,
			})
		return res.RowsAffected, res.Error
	}

	affected, err := overwrite()
	if err != nil {
		return nil, fmt.Errorf("failed to overwrite usage summary: %w", err)
	}
	if affected > 0 {
		return result, nil
	}

	// No row to overwrite: the period's first delta never landed, e.g. when
	// ApplyDelta failed after the ledger write. Create the row with the
	// recomputed counts, same shape as ApplyDelta's first-event path.
	row := &models.UsageSummary{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: subscriptionID,
		Period:         period.String(),
		ActiveCount:    recomputed.Active,
		CompletedCount: recomputed.Completed,
		TotalCount:     recomputed.Total,
		ArchivedCount:  recomputed.Archived,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent write; the row exists now.
			if _, err := overwrite(); err != nil {
				return nil, fmt.Errorf("failed to overwrite usage summary after create race: %w", err)
			}
			return result, nil
		}
		return nil, fmt.Errorf("failed to create usage summary: %w", err)
	}
	return result, nil
}

func exceeds(diff, tolerance int64) bool {
	if diff < 0 {
		diff = -diff
	}
	return diff > tolerance
}

// Percentages expresses the counts relative to the given limits, capped at
// 100. A nil limit means unlimited and reads as 0%.
func Percentages(counts types.UsageCounts, limits types.TicketLimits) types.UsagePercentages {
	return types.UsagePercentages{
		Active:    percentOf(counts.Active, limits.Active),
		Completed: percentOf(counts.Completed, limits.Completed),
		Total:     percentOf(counts.Total, limits.Total),
	}
}

func percentOf(count int64, limit *int64) int64 {
	if limit == nil || *limit <= 0 {
		return 0
	}
	p := count * 100 / *limit
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
