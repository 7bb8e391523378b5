package handlers

import (
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"repairshop/services"
)

// RegisterRoutes binds the job costing and payment routes.
func RegisterRoutes(se *core.ServeEvent, app *pocketbase.PocketBase, engine *services.CostEngine, logger *zap.Logger) {
	se.Router.BindFunc(RequestLoggerMiddleware(logger))

	// ── Job costs ────────────────────────────────────────────────
	se.Router.GET("/jobs/{jobId}/costs", HandleJobCosts(app, engine))
	se.Router.PATCH("/jobs/{jobId}/costing", HandleJobCostingUpdate(app, engine))
	se.Router.GET("/jobs/{jobId}/costs/export", HandleJobCostsExport(app, engine))
	se.Router.GET("/jobs/{jobId}/total", HandleJobTotal(app, engine.Store()))

	// ── Payments ─────────────────────────────────────────────────
	se.Router.POST("/jobs/{jobId}/payments", HandlePaymentSubmit(app, engine.Store()))
}
