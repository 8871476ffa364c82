package entitlement

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/config"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/metrics"
	"github.com/ticketwell/metering/pkg/types"
)

// EntitlementResolver resolves a subscription's status and effective limits
// at decision time.
type EntitlementResolver interface {
	ResolveEntitlements(ctx context.Context, subscriptionID string) (*subscription.Entitlements, error)
}

// UsageReader reads current-period counts from the summary cache.
type UsageReader interface {
	GetUsage(ctx context.Context, subscriptionID string, period types.PeriodKey) (types.UsageCounts, error)
}

// UsageRecorder appends a ledger event.
type UsageRecorder interface {
	Record(ctx context.Context, p ledger.RecordParams) (*models.UsageEvent, error)
}

// Decision is the gate's answer. It is advisory: the gate never mutates
// state or blocks the caller's action on its own.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Reason explains a denial ("active_limit_reached",
	// "subscription_suspended", ...). Empty when allowed.
	Reason    string             `json:"reason,omitempty"`
	LimitType types.LimitType    `json:"limit_type,omitempty"`
	Usage     types.UsageCounts  `json:"usage"`
	Limits    types.TicketLimits `json:"limits"`
	// WarnThresholdHit is set when usage for the decided action crossed the
	// configured warning percentage; callers surface it as an advisory
	// "N% of plan limit used" note.
	WarnThresholdHit bool  `json:"warn_threshold_hit,omitempty"`
	UsedPercent      int64 `json:"used_percent,omitempty"`
}

// Service is the admission-control decision point. In best-effort mode two
// racing callers may both be admitted at the boundary (bounded overshoot of
// at most N-1 for N racers); strict mode serializes decide-then-record per
// subscription and never admits past the limit.
type Service struct {
	cfg      *config.Config
	subs     EntitlementResolver
	usage    UsageReader
	recorder UsageRecorder
	locks    keyedMutex
	log      *zap.SugaredLogger
}

// NewWithStores builds a gate over explicit store implementations. Production
// wiring passes the subscription, aggregator and ledger services; tests pass
// in-memory fakes.
func NewWithStores(cfg *config.Config, subs EntitlementResolver, usage UsageReader, recorder UsageRecorder, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, subs: subs, usage: usage, recorder: recorder, log: log}
}

// CanPerform answers whether the subscription may perform the action in the
// given period. Equality with the limit denies: the cap is inclusive.
func (s *Service) CanPerform(ctx context.Context, subscriptionID string, action types.GateAction, period types.PeriodKey) (*Decision, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("invalid gate action: %s", action)
	}

	ent, err := s.subs.ResolveEntitlements(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	usage, err := s.usage.GetUsage(ctx, subscriptionID, period)
	if err != nil {
		return nil, err
	}

	d := Decide(action, ent.Status, usage, ent.Limits, s.cfg.Entitlement.WarnThresholdPercent)
	metrics.AdmissionDecisions.WithLabelValues(string(action), strconv.FormatBool(d.Allowed), string(d.LimitType)).Inc()
	if !d.Allowed {
		logctx.FromCtx(ctx, s.log).Infow("admission denied",
			"subscription_id", subscriptionID,
			"action", action,
			"reason", d.Reason,
			"usage", d.Usage,
		)
	}
	return d, nil
}

// RecordAdmitted runs the decision and, when allowed, the ledger write. In
// strict mode the pair holds the subscription's admission lock so concurrent
// racers cannot jointly exceed the limit. The returned event is nil when the
// decision denied.
func (s *Service) RecordAdmitted(ctx context.Context, p ledger.RecordParams, action types.GateAction) (*Decision, *models.UsageEvent, error) {
	if s.cfg.Entitlement.Strict {
		unlock := s.locks.Lock(p.SubscriptionID)
		defer unlock()
	}

	d, err := s.CanPerform(ctx, p.SubscriptionID, action, types.PeriodOf(p.OccurredAt))
	if err != nil {
		return nil, nil, err
	}
	if !d.Allowed {
		return d, nil, nil
	}

	ev, err := s.recorder.Record(ctx, p)
	if err != nil {
		return d, ev, err
	}
	return d, ev, nil
}

// Decide is the pure admission rule: given status, usage and limits, answer
// allow/deny. Suspended and cancelled subscriptions deny outright; past_due
// keeps limit-based admission (billing grace is the provider's call to end).
func Decide(action types.GateAction, status types.SubscriptionStatus, usage types.UsageCounts, limits types.TicketLimits, warnThresholdPercent int64) *Decision {
	d := &Decision{Allowed: true, Usage: usage, Limits: limits}

	switch status {
	case types.SubscriptionStatusCancelled:
		d.Allowed = false
		d.Reason = "subscription_cancelled"
		return d
	case types.SubscriptionStatusSuspended:
		d.Allowed = false
		d.Reason = "subscription_suspended"
		return d
	}

	deny := func(limitType types.LimitType, reason string) {
		d.Allowed = false
		d.LimitType = limitType
		d.Reason = reason
	}

	var used int64
	var limit *int64
	switch action {
	case types.GateActionCreate:
		if limits.Active != nil && usage.Active >= *limits.Active {
			deny(types.LimitTypeActive, "active_limit_reached")
			used, limit = usage.Active, limits.Active
			break
		}
		if limits.Total != nil && usage.Total >= *limits.Total {
			deny(types.LimitTypeTotal, "total_limit_reached")
			used, limit = usage.Total, limits.Total
			break
		}
		used, limit = usage.Active, limits.Active
	case types.GateActionComplete:
		if limits.Completed != nil && usage.Completed >= *limits.Completed {
			deny(types.LimitTypeCompleted, "completed_limit_reached")
		}
		used, limit = usage.Completed, limits.Completed
	}

	if limit != nil && *limit > 0 {
		d.UsedPercent = used * 100 / *limit
		if d.UsedPercent > 100 {
			d.UsedPercent = 100
		}
		if warnThresholdPercent > 0 && d.UsedPercent >= warnThresholdPercent {
			d.WarnThresholdHit = true
		}
	}
	return d
}
