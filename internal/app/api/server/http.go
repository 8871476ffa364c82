package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ticketwell/metering/docs"
	"github.com/ticketwell/metering/internal/app/api/handlers"
	mw "github.com/ticketwell/metering/internal/app/api/middleware"
	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/app/service/analytics"
	"github.com/ticketwell/metering/internal/app/service/billing"
	"github.com/ticketwell/metering/internal/app/service/catalog"
	"github.com/ticketwell/metering/internal/app/service/entitlement"
	"github.com/ticketwell/metering/internal/app/service/eventlog"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	subsvc "github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/internal/app/service/webhook"
	cfgpkg "github.com/ticketwell/metering/pkg/config"
	metrics "github.com/ticketwell/metering/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Tracing applies globally; request logger and access log attach per
	// group in registerRoutes.
	r.Use(mw.TraceMiddleware())
	return r
}

type routeDeps struct {
	fx.In

	Log          *zap.SugaredLogger
	Cfg          *cfgpkg.Config
	Catalog      *catalog.Service
	Subscription *subsvc.Service
	Ledger       *ledger.Service
	Aggregator   *aggregator.Service
	Gate         *entitlement.Service
	Billing      *billing.Service
	Analytics    *analytics.Service
	EventLog     *eventlog.Service
	Webhook      *webhook.Handler
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	// Prometheus metrics
	if d.Cfg != nil && d.Cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: d.Log,
		})
		p.SetListenAddress(d.Cfg.MetricsAddr)
		p.Use(r)

		d.Log.Infow("metrics started", "addr", d.Cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(d.Log), mw.AccessLogMiddleware())

	handlers.RegisterEntitlementRoutes(apiV1.Group("/entitlement"), d.Gate, d.Ledger)
	handlers.RegisterUsageRoutes(apiV1.Group("/usage"), d.Aggregator, d.Subscription, d.Ledger)
	handlers.RegisterSubscriptionRoutes(apiV1.Group("/subscriptions"), d.Subscription)
	handlers.RegisterWebhookRoutes(apiV1.Group("/webhooks"), d.Webhook, d.Log)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), d.Catalog, d.Billing, d.Analytics, d.EventLog, d.Subscription)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
