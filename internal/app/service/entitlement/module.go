package entitlement

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/pkg/config"
)

// Module exposes the entitlement gate via Fx.
var Module = fx.Options(
	fx.Provide(func(cfg *config.Config, subs *subscription.Service, agg *aggregator.Service, led *ledger.Service, log *zap.SugaredLogger) *Service {
		return NewWithStores(cfg, subs, agg, led, log)
	}),
)
