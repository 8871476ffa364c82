package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/config"
)

// ErrPlanNotFound is returned when a plan id does not resolve.
var ErrPlanNotFound = errors.New("plan not found")

type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log}
}

// GetPlan resolves a plan by id. Deactivated plans still resolve so that
// existing subscriptions keep their limits; callers creating new
// subscriptions must check Active themselves.
func (s *Service) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (s *Service) ListPlans(ctx context.Context, includeInactive bool) ([]*models.Plan, error) {
	q := s.db.WithContext(ctx).Order("id")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	var plans []*models.Plan
	if err := q.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// DeactivatePlan marks a plan unavailable for new subscriptions. Plans are
// never deleted.
func (s *Service) DeactivatePlan(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	s.log.Infow("plan deactivated", "plan_id", id)
	return nil
}

// SeedPlans upserts the config-declared plan entries. Existing rows keep
// their Active flag; limits and pricing follow the config (explicit admin
// edits go through the same path).
func (s *Service) SeedPlans(ctx context.Context) error {
	for _, seed := range s.cfg.Plans {
		plan := &models.Plan{
			ID:                   seed.ID,
			Name:                 seed.Name,
			ActiveTicketLimit:    seed.ActiveTicketLimit,
			CompletedTicketLimit: seed.CompletedTicketLimit,
			TotalTicketLimit:     seed.TotalTicketLimit,
			Interval:             seed.Interval,
			PriceCents:           seed.PriceCents,
			Currency:             seed.Currency,
			Active:               true,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "active_ticket_limit", "completed_ticket_limit",
				"total_ticket_limit", "interval", "price_cents", "currency",
			}),
		}).Create(plan).Error
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", seed.ID, err)
		}
	}
	if len(s.cfg.Plans) > 0 {
		s.log.Infow("plan catalog seeded", "count", len(s.cfg.Plans))
	}
	return nil
}
