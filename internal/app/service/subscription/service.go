package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticketwell/metering/internal/app/service/catalog"
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/config"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/metrics"
	"github.com/ticketwell/metering/pkg/tool"
	"github.com/ticketwell/metering/pkg/types"
)

var (
	// ErrNotFound is returned when a subscription does not resolve.
	ErrNotFound = errors.New("subscription not found")
	// ErrInvalidTransition marks a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid subscription transition")
	// ErrCustomerHasLiveSubscription enforces the one-live-subscription rule.
	ErrCustomerHasLiveSubscription = errors.New("customer already has a live subscription")
)

type Service struct {
	cfg     *config.Config
	db      *gorm.DB
	catalog *catalog.Service
	log     *zap.SugaredLogger
}

func NewService(cfg *config.Config, db *gorm.DB, cat *catalog.Service, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, catalog: cat, log: log}
}

type CreateParams struct {
	CustomerID        string
	PlanID            *string
	ExternalRef       *string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	TrialStart        *time.Time
	TrialEnd          *time.Time
	CustomLimits      *types.LimitOverride
	CustomPriceCents  *int64
	Reason            types.SubscriptionChangeReason
	EventTime         time.Time
}

// Create opens a subscription on signup, plan change or admin grant. Exactly
// one live (trial/active) subscription per customer is allowed; the check
// here is backed by the partial unique index on the table.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Subscription, error) {
	if p.CustomerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}
	if p.PlanID == nil && p.CustomLimits == nil {
		return nil, fmt.Errorf("either plan id or custom limits are required")
	}
	if p.PlanID != nil {
		plan, err := s.catalog.GetPlan(ctx, *p.PlanID)
		if err != nil {
			return nil, err
		}
		if !plan.Active {
			return nil, fmt.Errorf("plan %s is deactivated", plan.ID)
		}
	}

	status := types.SubscriptionStatusActive
	if p.TrialEnd != nil && p.TrialEnd.After(p.EventTime) {
		status = types.SubscriptionStatusTrial
	}

	sub := &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		CustomerID:         p.CustomerID,
		PlanID:             p.PlanID,
		Status:             status,
		ExternalRef:        p.ExternalRef,
		CurrentPeriodStart: p.PeriodStart,
		CurrentPeriodEnd:   p.PeriodEnd,
		TrialStart:         p.TrialStart,
		TrialEnd:           p.TrialEnd,
		CustomLimits:       datatypes.NewJSONType(p.CustomLimits),
		CustomPriceCents:   p.CustomPriceCents,
		LastEventAt:        &p.EventTime,
	}
	if status == types.SubscriptionStatusActive {
		sub.ActivatedAt = &p.EventTime
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var live int64
		err := tx.Model(&models.Subscription{}).
			Where("customer_id = ? AND status IN ?", p.CustomerID,
				[]types.SubscriptionStatus{types.SubscriptionStatusTrial, types.SubscriptionStatusActive}).
			Count(&live).Error
		if err != nil {
			return fmt.Errorf("failed to check live subscriptions: %w", err)
		}
		if live > 0 {
			return fmt.Errorf("%w: %s", ErrCustomerHasLiveSubscription, p.CustomerID)
		}
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		s.writeLog(tx, nil, sub, p.Reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription created",
		"subscription_id", sub.ID, "customer_id", p.CustomerID, "status", sub.Status)
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (s *Service) GetByExternalRef(ctx context.Context, ref string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("external_ref = ?", ref).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: external ref %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get subscription by external ref: %w", err)
	}
	return &sub, nil
}

// Entitlements is the resolved limit set for one subscription at decision
// time. The gate never caches it beyond a single request.
type Entitlements struct {
	SubscriptionID string
	Status         types.SubscriptionStatus
	Limits         types.TicketLimits
}

// ResolveEntitlements resolves a subscription's effective limits: the custom
// override when present, otherwise the plan's limits at this moment.
func (s *Service) ResolveEntitlements(ctx context.Context, subscriptionID string) (*Entitlements, error) {
	sub, err := s.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var limits types.TicketLimits
	if ov := sub.OverrideLimits(); ov != nil {
		limits = types.TicketLimits{
			Active:    ov.ActiveTicketLimit,
			Completed: ov.CompletedTicketLimit,
			Total:     ov.TotalTicketLimit,
		}
	} else if sub.PlanID != nil {
		plan, err := s.catalog.GetPlan(ctx, *sub.PlanID)
		if err != nil {
			return nil, err
		}
		limits = plan.Limits()
	}

	return &Entitlements{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
		Limits:         limits,
	}, nil
}

// mutate loads the subscription under a row lock, discards stale events and
// applies fn, persisting the result and the change log in one transaction.
// Billing events for the same subscription are thereby serialized and
// ordered by their own timestamps, not by arrival order.
func (s *Service) mutate(ctx context.Context, subscriptionID string, eventTime time.Time, reason types.SubscriptionChangeReason, fn func(sub *models.Subscription) error) (*models.Subscription, error) {
	var updated *models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", subscriptionID).First(&sub).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, subscriptionID)
			}
			return fmt.Errorf("failed to lock subscription: %w", err)
		}

		if sub.LastEventAt != nil && !eventTime.After(*sub.LastEventAt) {
			metrics.StaleBillingEvents.Inc()
			logctx.FromCtx(ctx, s.log).Infow("stale billing event discarded",
				"subscription_id", subscriptionID,
				"event_time", eventTime,
				"last_event_at", sub.LastEventAt,
			)
			updated = &sub
			return nil
		}

		before := sub
		if err := fn(&sub); err != nil {
			return err
		}
		sub.LastEventAt = &eventTime

		if err := tx.Save(&sub).Error; err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		s.writeLog(tx, &before, &sub, reason)
		updated = &sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) transitionTo(sub *models.Subscription, to types.SubscriptionStatus, at time.Time) error {
	if !CanTransition(sub.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, to)
	}
	if sub.Status != types.SubscriptionStatusActive && to == types.SubscriptionStatusActive && sub.ActivatedAt == nil {
		sub.ActivatedAt = &at
	}
	if to == types.SubscriptionStatusCancelled {
		sub.CancelledAt = &at
	}
	sub.Status = to
	return nil
}

// HandleInvoicePaid advances the billing period and settles the status. A
// pending cancel-at-period-end wins over renewal once the old period has
// been fully billed.
func (s *Service) HandleInvoicePaid(ctx context.Context, subscriptionID string, eventTime, periodStart, periodEnd time.Time) (*models.Subscription, error) {
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonPeriodRoll, func(sub *models.Subscription) error {
		if sub.CancelAtPeriodEnd && !eventTime.Before(sub.CurrentPeriodEnd) {
			return s.transitionTo(sub, types.SubscriptionStatusCancelled, eventTime)
		}
		if err := s.transitionTo(sub, types.SubscriptionStatusActive, eventTime); err != nil {
			return err
		}
		sub.CurrentPeriodStart = periodStart
		sub.CurrentPeriodEnd = periodEnd
		return nil
	})
}

// HandlePaymentFailed moves the subscription to past_due. Repeated failures
// for the same invoice are attempt-counted on the billing record, not here.
func (s *Service) HandlePaymentFailed(ctx context.Context, subscriptionID string, eventTime time.Time) (*models.Subscription, error) {
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonPaymentFailed, func(sub *models.Subscription) error {
		return s.transitionTo(sub, types.SubscriptionStatusPastDue, eventTime)
	})
}

// Cancel ends the subscription, either immediately or at the period
// boundary. Cancellation is soft; the record stays for analytics.
func (s *Service) Cancel(ctx context.Context, subscriptionID string, atPeriodEnd bool, eventTime time.Time) (*models.Subscription, error) {
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonCancel, func(sub *models.Subscription) error {
		if atPeriodEnd {
			sub.CancelAtPeriodEnd = true
			return nil
		}
		return s.transitionTo(sub, types.SubscriptionStatusCancelled, eventTime)
	})
}

// ChangePlan swaps the plan reference and clears any custom override.
func (s *Service) ChangePlan(ctx context.Context, subscriptionID, planID string, eventTime time.Time) (*models.Subscription, error) {
	plan, err := s.catalog.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("plan %s is deactivated", planID)
	}
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonPlanChange, func(sub *models.Subscription) error {
		sub.PlanID = &plan.ID
		sub.CustomLimits = datatypes.NewJSONType[*types.LimitOverride](nil)
		sub.CustomPriceCents = nil
		return nil
	})
}

// ConvertTrial promotes a trial to active, typically on the first paid
// invoice of a trialing subscription.
func (s *Service) ConvertTrial(ctx context.Context, subscriptionID string, eventTime time.Time) (*models.Subscription, error) {
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonTrialConvert, func(sub *models.Subscription) error {
		if sub.Status != types.SubscriptionStatusTrial {
			return fmt.Errorf("%w: convert from %s", ErrInvalidTransition, sub.Status)
		}
		return s.transitionTo(sub, types.SubscriptionStatusActive, eventTime)
	})
}

// Suspend and Resume are admin actions outside the billing event stream.
func (s *Service) Suspend(ctx context.Context, subscriptionID string, eventTime time.Time) (*models.Subscription, error) {
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonAdminSuspend, func(sub *models.Subscription) error {
		return s.transitionTo(sub, types.SubscriptionStatusSuspended, eventTime)
	})
}

func (s *Service) Resume(ctx context.Context, subscriptionID string, eventTime time.Time) (*models.Subscription, error) {
	return s.mutate(ctx, subscriptionID, eventTime, types.SubscriptionChangeReasonAdminResume, func(sub *models.Subscription) error {
		return s.transitionTo(sub, types.SubscriptionStatusActive, eventTime)
	})
}

// writeLog persists a change-log row inside the caller's transaction so log
// order matches commit order; analytics depend on it.
func (s *Service) writeLog(tx *gorm.DB, before, after *models.Subscription, reason types.SubscriptionChangeReason) {
	row := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: after.ID,
		CustomerID:     after.CustomerID,
		Reason:         reason,
		Before:         datatypes.NewJSONType(before),
		After:          datatypes.NewJSONType(after),
		Extra:          datatypes.JSONMap{},
	}
	if err := tx.Create(row).Error; err != nil {
		s.log.Errorf("failed to save subscription log: %v", err)
	}
}
