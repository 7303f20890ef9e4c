package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/erp"
	"github.com/Lllllllleong/erpdocumentflow/internal/gcp"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
	"github.com/Lllllllleong/erpdocumentflow/internal/stage"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

// LoadFunction submits a ready archive to the ERP bulk import and parks it
// in the processing location under its job-tagged name.
type LoadFunction struct {
	router    *stage.Router
	secrets   SecretReader
	submitter Submitter
	notifier  *notify.Notifier
	config    config.LoadConfig
}

// NewLoad builds the stage from the environment.
func NewLoad(ctx context.Context) (*LoadFunction, error) {
	cfg, err := config.LoadLoad()
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	secrets, err := gcp.NewSecretClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret client: %w", err)
	}
	notifier, err := newNotifier(ctx, cfg.Common)
	if err != nil {
		return nil, err
	}
	submitter := erp.NewClient(erp.ClientConfig{
		URL:         cfg.ERPURL,
		Username:    cfg.ERPUsername,
		JobName:     cfg.JobName,
		ParamList:   cfg.ParamList,
		CallbackURL: cfg.CallbackURL,
		HTTPTimeout: cfg.HTTPTimeout,
	})

	f := NewLoadWithDeps(cfg, store, secrets, submitter, notifier)
	slog.Info("Load logic initialized.", "readyBucket", cfg.ReadyBucket, "processingBucket", cfg.ProcessingBucket, "jobName", cfg.JobName)
	return f, nil
}

// NewLoadWithDeps wires the stage from explicit collaborators.
func NewLoadWithDeps(cfg *config.LoadConfig, store storage.Store, secrets SecretReader, submitter Submitter, notifier *notify.Notifier) *LoadFunction {
	return &LoadFunction{
		router:    stage.NewRouter(store, cfg.Buckets(), cfg.RouterOptions()...),
		secrets:   secrets,
		submitter: submitter,
		notifier:  notifier,
		config:    *cfg,
	}
}

func (f *LoadFunction) Notifier() *notify.Notifier {
	return f.notifier
}

// Process submits the archive named by ev. Once the ERP has accepted the
// file the stage succeeds even if the archive cannot be moved to processing;
// that case is reported as a warning.
func (f *LoadFunction) Process(ctx context.Context, ev models.ObjectEvent) (*models.StageResponse, error) {
	ctx, _ = logger.StartInvocation(ctx, "erp-file-load")
	logCtx := logger.WithContext(ctx).With("eventType", ev.EventType, "object", ev.Data.ResourceName)

	if !ev.IsCreateObject() {
		err := models.EventShapeError(fmt.Sprintf("eventType not of %s, aborting", models.EventTypeCreateObject), nil)
		return failure(ctx, logCtx, f.notifier, notify.Info, "Event Type Error",
			"Function called with incorrect event type, eventType should be "+models.EventTypeCreateObject, ev, err)
	}
	name := ev.Data.ResourceName
	if name == "" {
		err := models.EventShapeError("event carries no resourceName", nil)
		return failure(ctx, logCtx, f.notifier, notify.Info, "Event Type Error", "Event does not name a data file", ev, err)
	}
	logCtx.Info("Loading data file into ERP.")

	content, err := f.router.Read(ctx, stage.Ready, name)
	if err != nil {
		return failure(ctx, logCtx, f.notifier, notify.Error, "File Read Error",
			"Failed to load file from storage", name, err)
	}

	password, err := f.secrets.Secret(ctx, f.config.PasswordSecretID)
	if err != nil {
		err = models.SecretError("failed to read ERP password", err)
		return failure(ctx, logCtx, f.notifier, notify.Error, "FA Password Error",
			"Error obtaining Fusion FA Password from Secret Manager",
			map[string]any{"secretId": f.config.PasswordSecretID, "error": err.Error()}, err)
	}

	submission, err := f.submitter.Submit(ctx, password, name, content)
	if err != nil {
		details := map[string]any{"filename": name, "error": err.Error()}
		var pe *models.PipelineError
		if errors.As(err, &pe) && pe.Details != nil {
			details["response"] = pe.Details
		}
		return failure(ctx, logCtx, f.notifier, notify.Error, "ERP Submission Error",
			"Failed to submit datafile to ERP", details, err)
	}
	logCtx = logCtx.With("erpJobId", submission.JobID)
	logCtx.Info("ERP job submitted.")

	f.park(ctx, logCtx, name, submission.JobID)

	return success(ctx, f.notifier, notify.Message{
		Status:  notify.StatusInfo,
		Header:  "Successfully Loaded Data to SaaS",
		Message: "Successfully Loaded Datafile to ERP",
		AdditionalDetails: map[string]any{
			"filename":     name,
			"erpJobId":     submission.JobID,
			"saasResponse": submission.Response,
		},
	}), nil
}

// park moves the submitted archive into processing under its job-tagged name.
// Problems here are warnings: the job is already running in the ERP.
func (f *LoadFunction) park(ctx context.Context, logCtx *slog.Logger, name, jobID string) {
	details := map[string]any{
		"filename":          name,
		"erpJobId":          jobID,
		"sourceBucket":      f.config.ReadyBucket,
		"destinationBucket": f.config.ProcessingBucket,
	}

	tagged, err := stage.DeriveJobTaggedName(name, jobID)
	if err != nil {
		details["error"] = err.Error()
		warn(ctx, logCtx, f.notifier, "Error moving data file",
			fmt.Sprintf("Warning: cannot job-tag %s, leaving original file", name), details)
		return
	}
	details["processingName"] = tagged

	relocation, err := f.router.Relocate(ctx, stage.Ready, name, stage.Processing, tagged)
	if err != nil {
		details["error"] = err.Error()
		warn(ctx, logCtx, f.notifier, "Error moving data file",
			fmt.Sprintf("Warning Unable to copy %s from %s to %s bucket, leaving original file", name, f.config.ReadyBucket, f.config.ProcessingBucket),
			details)
		return
	}
	if relocation.Warning() {
		details["error"] = relocation.DeleteErr.Error()
		warn(ctx, logCtx, f.notifier, "Error moving data file",
			fmt.Sprintf("Warning : Error deleting file %s from %s", name, f.config.ReadyBucket), details)
	}
}
