package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/erp"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
	"github.com/Lllllllleong/erpdocumentflow/internal/stage"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

// CallbackFunction routes a processed archive to its terminal location once
// the ERP reports the job outcome.
type CallbackFunction struct {
	router   *stage.Router
	notifier *notify.Notifier
	config   config.CallbackConfig
}

// NewCallback builds the stage from the environment.
func NewCallback(ctx context.Context) (*CallbackFunction, error) {
	cfg, err := config.LoadCallback()
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(ctx, cfg.Common)
	if err != nil {
		return nil, err
	}

	f := NewCallbackWithDeps(cfg, store, notifier)
	slog.Info("Callback logic initialized.", "processingBucket", cfg.ProcessingBucket)
	return f, nil
}

// NewCallbackWithDeps wires the stage from explicit collaborators.
func NewCallbackWithDeps(cfg *config.CallbackConfig, store storage.Store, notifier *notify.Notifier) *CallbackFunction {
	return &CallbackFunction{
		router:   stage.NewRouter(store, cfg.Buckets(), cfg.RouterOptions()...),
		notifier: notifier,
		config:   *cfg,
	}
}

// Process handles one callback body.
func (f *CallbackFunction) Process(ctx context.Context, body []byte) (*models.StageResponse, error) {
	ctx, _ = logger.StartInvocation(ctx, "erp-callback")
	logCtx := logger.WithContext(ctx)
	logCtx.Debug("Callback received.", "body", string(body))

	notice, err := erp.ParseCallback(body)
	if err != nil {
		return failure(ctx, logCtx, f.notifier, notify.Error, "Generic Failure",
			"Generic error during callback processing of ERP JOB",
			map[string]any{"status": notify.StatusError, "eventInformation": string(body), "errorMessage": err.Error()}, err)
	}
	if len(notice.Jobs) > 1 {
		logCtx.Warn("Callback carries several jobs; only the first is processed.", "jobs", len(notice.Jobs))
	}

	outcome := notice.Outcome()
	logCtx = logCtx.With("erpJobId", outcome.JobID, "document", outcome.DocumentName, "erpStatus", outcome.Status)
	logCtx.Info("ERP job completed.")

	tagged, err := stage.DeriveJobTaggedName(outcome.DocumentName, outcome.JobID)
	if err != nil {
		err = models.CallbackParseError("callback names an object that cannot be job-tagged", err)
		return failure(ctx, logCtx, f.notifier, notify.Error, "Generic Failure",
			"Generic error during callback processing of ERP JOB",
			map[string]any{"status": notify.StatusError, "eventInformation": string(body), "errorMessage": err.Error()}, err)
	}

	destination := stage.Terminal(outcome.Succeeded())
	relocation, err := f.router.Relocate(ctx, stage.Processing, tagged, destination, tagged)
	if err != nil {
		return failure(ctx, logCtx, f.notifier, notify.Error, "Error during callback processing",
			fmt.Sprintf("Error during callback processing of ERP JOB %s", outcome.JobID),
			map[string]any{"status": "FAILURE", "reportId": outcome.JobID, "errorMessage": err.Error()}, err)
	}
	if relocation.Warning() {
		logCtx.Warn("Error deleting file from processing bucket", "file", tagged, "error", relocation.DeleteErr)
	}

	return success(ctx, f.notifier, notify.Message{
		Status:  notify.StatusSuccess,
		Header:  fmt.Sprintf("Callback from ERP, JOBID %s Processed", outcome.JobID),
		Message: fmt.Sprintf("Successfully Processed ERP Callback for ERPJob %s", outcome.JobID),
		AdditionalDetails: map[string]any{
			"filename":    tagged,
			"erpJobId":    outcome.JobID,
			"status":      outcome.Status,
			"destination": destination.String(),
		},
	}), nil
}
