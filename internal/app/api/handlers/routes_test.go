package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func routeSet(r *gin.Engine) map[string]bool {
	set := make(map[string]bool)
	for _, rt := range r.Routes() {
		set[rt.Method+" "+rt.Path] = true
	}
	return set
}

func TestRegisterEntitlementRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterEntitlementRoutes(r.Group("/api/v1/entitlement"), nil, nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/entitlement/check"])
	require.True(t, routes["POST /api/v1/entitlement/record"])
}

func TestRegisterUsageRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterUsageRoutes(r.Group("/api/v1/usage"), nil, nil, nil)

	routes := routeSet(r)
	require.True(t, routes["GET /api/v1/usage/:subscription_id/:period"])
	require.True(t, routes["POST /api/v1/usage/events"])
	require.True(t, routes["POST /api/v1/usage/reconcile"])
}

func TestRegisterSubscriptionRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterSubscriptionRoutes(r.Group("/api/v1/subscriptions"), nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/subscriptions"])
	require.True(t, routes["GET /api/v1/subscriptions/:id"])
	require.True(t, routes["GET /api/v1/subscriptions/:id/entitlements"])
	require.True(t, routes["POST /api/v1/subscriptions/:id/cancel"])
	require.True(t, routes["POST /api/v1/subscriptions/:id/change_plan"])
	require.True(t, routes["POST /api/v1/subscriptions/:id/convert_trial"])
	require.True(t, routes["POST /api/v1/subscriptions/:id/suspend"])
	require.True(t, routes["POST /api/v1/subscriptions/:id/resume"])
}

func TestRegisterWebhookAndAdminRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhooks"), nil, nil)
	RegisterAdminRoutes(r.Group("/api/v1/admin"), nil, nil, nil, nil, nil)

	routes := routeSet(r)
	require.True(t, routes["POST /api/v1/webhooks/billing"])
	require.True(t, routes["GET /api/v1/admin/plans"])
	require.True(t, routes["GET /api/v1/admin/plans/:id"])
	require.True(t, routes["POST /api/v1/admin/plans/:id/deactivate"])
	require.True(t, routes["POST /api/v1/admin/grants"])
	require.True(t, routes["POST /api/v1/admin/revenue_statistic"])
	require.True(t, routes["GET /api/v1/admin/analytics_summary"])
	require.True(t, routes["GET /api/v1/admin/analytics/mrr"])
	require.True(t, routes["GET /api/v1/admin/analytics/churn"])
	require.True(t, routes["GET /api/v1/admin/analytics/conversion"])
	require.True(t, routes["GET /api/v1/admin/analytics/clv"])
	require.True(t, routes["GET /api/v1/admin/billing_records/:subscription_id"])
	require.True(t, routes["GET /api/v1/admin/billing_events/:event_id"])
}

func TestGateActionFor(t *testing.T) {
	// archive and delete free capacity and must never be gated
	if _, gated := gateActionFor("archived"); gated {
		t.Fatal("archived must not be gated")
	}
	if _, gated := gateActionFor("deleted"); gated {
		t.Fatal("deleted must not be gated")
	}
	action, gated := gateActionFor("created")
	require.True(t, gated)
	require.Equal(t, "create", string(action))
	action, gated = gateActionFor("completed")
	require.True(t, gated)
	require.Equal(t, "complete", string(action))
}
