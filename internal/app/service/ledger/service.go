package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/metrics"
	"github.com/ticketwell/metering/pkg/tool"
	"github.com/ticketwell/metering/pkg/types"
)

var (
	// ErrSubscriptionNotFound is returned when recording against an unknown
	// subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrDuplicateEvent marks a replayed ledger write. It is resolved as a
	// no-op by callers, never surfaced as a failure.
	ErrDuplicateEvent = errors.New("duplicate usage event")
)

// Service is the append-only usage event ledger. It never rejects based on
// limits; admission control happens strictly before the domain action at the
// entitlement gate.
type Service struct {
	db  *gorm.DB
	agg *aggregator.Service
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, agg *aggregator.Service, log *zap.SugaredLogger) *Service {
	return &Service{db: db, agg: agg, log: log}
}

type RecordParams struct {
	SubscriptionID string
	TicketID       string
	Action         types.TicketAction
	PreviousStatus types.TicketStatus
	NewStatus      types.TicketStatus
	OccurredAt     time.Time
	Metadata       map[string]any
}

func (p *RecordParams) validate() error {
	if p.SubscriptionID == "" || p.TicketID == "" {
		return fmt.Errorf("subscription id and ticket id are required")
	}
	if !p.Action.Valid() {
		return fmt.Errorf("invalid action: %s", p.Action)
	}
	if p.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

// Record appends a usage event and applies its delta to the period summary.
// Recording the same logical event twice (same ticket, action and minute
// bucket) returns the stored row wrapped in ErrDuplicateEvent without
// touching the summary.
func (s *Service) Record(ctx context.Context, p RecordParams) (*models.UsageEvent, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("id = ?", p.SubscriptionID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, p.SubscriptionID)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	period := types.PeriodOf(p.OccurredAt)
	event := &models.UsageEvent{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: p.SubscriptionID,
		TicketID:       p.TicketID,
		Action:         p.Action,
		PreviousStatus: p.PreviousStatus,
		NewStatus:      p.NewStatus,
		OccurredAt:     p.OccurredAt,
		Period:         period.String(),
		DedupKey:       models.UsageEventDedupKey(p.SubscriptionID, p.TicketID, p.Action, p.OccurredAt),
		Metadata:       datatypes.JSONMap(p.Metadata),
	}

	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, lookupErr := s.byDedupKey(ctx, event.DedupKey)
			if lookupErr != nil {
				return nil, lookupErr
			}
			metrics.DuplicateUsageEvents.Inc()
			logctx.FromCtx(ctx, s.log).Infow("duplicate usage event ignored",
				"subscription_id", p.SubscriptionID,
				"ticket_id", p.TicketID,
				"action", p.Action,
			)
			return existing, ErrDuplicateEvent
		}
		return nil, fmt.Errorf("failed to append usage event: %w", err)
	}

	delta := aggregator.DeltaFor(p.Action, p.PreviousStatus, p.NewStatus)
	if err := s.agg.ApplyDelta(ctx, p.SubscriptionID, period, delta); err != nil {
		// The ledger row is committed; the summary catches up on the next
		// reconcile pass.
		logctx.FromCtx(ctx, s.log).Errorw("failed to apply usage delta, summary will reconcile",
			"subscription_id", p.SubscriptionID,
			"period", period.String(),
			"err", err,
		)
	}
	return event, nil
}

func (s *Service) byDedupKey(ctx context.Context, key string) (*models.UsageEvent, error) {
	var existing models.UsageEvent
	if err := s.db.WithContext(ctx).Where("dedup_key = ?", key).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing usage event: %w", err)
	}
	return &existing, nil
}

// filtersAnd combines CommonFilter values into a single clause expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

type ListEventsRequest struct {
	SubscriptionID string                `json:"subscription_id"`
	Filters        []*types.CommonFilter `json:"filters"`
	From           int                   `json:"from"`
	Size           int                   `json:"size"`
}

type ListEventsResponse struct {
	Items []*models.UsageEvent `json:"items"`
	Total int64                `json:"total"`
}

// ListEvents implements the paginated admin listing over the ledger.
func (s *Service) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsResponse, error) {
	if req == nil || req.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}
	if req.Size <= 0 {
		req.Size = 50
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.UsageEvent{}).
		Where("subscription_id = ?", req.SubscriptionID)
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count usage events: %w", err)
	}

	var rows []*models.UsageEvent
	q := tx.Order("occurred_at desc, id desc").Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}
	return &ListEventsResponse{Items: rows, Total: total}, nil
}
