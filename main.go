package main

import (
	"log"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"

	"repairshop/collections"
	"repairshop/config"
	"repairshop/handlers"
	"repairshop/logger"
	"repairshop/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	app := pocketbase.New()
	cfg.BindFlags(app.RootCmd)

	store := services.NewMemoryTotalStore()
	var engine *services.CostEngine

	// Flags are parsed by the time the serve hooks run.
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		l, err := logger.New(cfg.Stage, cfg.LogLevel)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(l)

		if err := collections.Setup(app); err != nil {
			return err
		}
		if err := collections.Seed(app); err != nil {
			l.Warn("seed data failed", zap.Error(err))
		}

		loaded, err := services.LoadPublishedTotals(app, store)
		if err != nil {
			l.Warn("could not load persisted job totals", zap.Error(err))
		}
		l.Info("loaded persisted job totals", zap.Int("count", loaded))

		services.PersistPublishedTotals(app, store, l)

		engine = services.NewCostEngine(
			services.NewRecordLineSource(app),
			store,
			services.WithLogger(l),
			services.WithVATRate(cfg.VATRate),
			services.WithFetchTimeout(cfg.FetchTimeout),
			services.WithPaymentPolicy(services.NewRecordPaymentLedger(app), cfg.PostPaymentPolicy),
		)
		services.BindRecomputeHooks(app, engine, l)

		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		handlers.RegisterRoutes(se, app, engine, zap.L())

		se.Router.GET("/", func(e *core.RequestEvent) error {
			return e.JSON(http.StatusOK, map[string]string{"service": "repairshop"})
		})

		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
