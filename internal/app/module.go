package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/ticketwell/metering/internal/app/api/server"
	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/app/service/analytics"
	"github.com/ticketwell/metering/internal/app/service/billing"
	"github.com/ticketwell/metering/internal/app/service/catalog"
	"github.com/ticketwell/metering/internal/app/service/entitlement"
	"github.com/ticketwell/metering/internal/app/service/eventlog"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/internal/app/service/webhook"
	"github.com/ticketwell/metering/internal/platform/db"
	"github.com/ticketwell/metering/pkg/config"
	"github.com/ticketwell/metering/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	catalog.Module,
	subscription.Module,
	aggregator.Module,
	ledger.Module,
	entitlement.Module,
	billing.Module,
	analytics.Module,
	eventlog.Module,
	webhook.Module,
)
