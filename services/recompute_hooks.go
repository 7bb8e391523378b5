package services

import (
	"context"
	"errors"

	"github.com/pocketbase/pocketbase/core"
	"go.uber.org/zap"
)

// streamCollections hold the cost lines of a job; any change to them is a
// dependency change for the job's total.
var streamCollections = []string{"work_orders", "spare_changes", "outsources"}

// BindRecomputeHooks registers record hooks so that every change to a job's
// cost lines, VAT flags or additional cost triggers a recompute pass.
func BindRecomputeHooks(app core.App, engine *CostEngine, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "recompute_hooks"))

	onLineChange := func(reason string) func(e *core.RecordEvent) error {
		return func(e *core.RecordEvent) error {
			jobID := e.Record.GetString("job")
			if jobID != "" {
				recomputeFromHook(e.App, engine, log, jobID, e.Record.Collection().Name+" "+reason)
			}
			return e.Next()
		}
	}

	app.OnRecordAfterCreateSuccess(streamCollections...).BindFunc(onLineChange("created"))
	app.OnRecordAfterUpdateSuccess(streamCollections...).BindFunc(onLineChange("updated"))
	app.OnRecordAfterDeleteSuccess(streamCollections...).BindFunc(onLineChange("deleted"))

	app.OnRecordAfterUpdateSuccess("jobs").BindFunc(func(e *core.RecordEvent) error {
		if _, err := engine.Recompute(context.Background(), TriggerFromJob(e.Record, "job updated")); err != nil {
			logRecomputeError(log, e.Record.Id, err)
		}
		return e.Next()
	})
}

func recomputeFromHook(app core.App, engine *CostEngine, log *zap.Logger, jobID, reason string) {
	if _, err := RecomputeJob(context.Background(), app, engine, jobID, reason); err != nil {
		logRecomputeError(log, jobID, err)
	}
}

func logRecomputeError(log *zap.Logger, jobID string, err error) {
	switch {
	case errors.Is(err, ErrJobNotFound):
		// Lines removed by a cascading job delete.
		log.Debug("skipping recompute for missing job", zap.String("job_id", jobID))
	case errors.Is(err, ErrJobPaid):
		log.Info("recompute blocked by payment policy", zap.String("job_id", jobID))
	default:
		log.Error("recompute failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
