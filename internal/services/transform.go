package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/invoice"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
	"github.com/Lllllllleong/erpdocumentflow/internal/stage"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

// TransformFunction turns an inbound JSON invoice file into the ZIP archive
// picked up by the load stage.
type TransformFunction struct {
	router   *stage.Router
	builder  *invoice.Builder
	notifier *notify.Notifier
	config   config.TransformConfig
}

// NewTransform builds the stage from the environment.
func NewTransform(ctx context.Context) (*TransformFunction, error) {
	cfg, err := config.LoadTransform()
	if err != nil {
		return nil, err
	}

	builder, err := loadBuilder(cfg)
	if err != nil {
		return nil, models.ConfigurationError("failed to load invoice templates", err)
	}
	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(ctx, cfg.Common)
	if err != nil {
		return nil, err
	}

	f := NewTransformWithDeps(cfg, store, notifier, builder)
	slog.Info("Transform logic initialized.", "inboundBucket", cfg.InboundBucket, "readyBucket", cfg.ReadyBucket)
	return f, nil
}

// NewTransformWithDeps wires the stage from explicit collaborators.
func NewTransformWithDeps(cfg *config.TransformConfig, store storage.Store, notifier *notify.Notifier, builder *invoice.Builder) *TransformFunction {
	return &TransformFunction{
		router:   stage.NewRouter(store, cfg.Buckets()),
		builder:  builder,
		notifier: notifier,
		config:   *cfg,
	}
}

func loadBuilder(cfg *config.TransformConfig) (*invoice.Builder, error) {
	if cfg.HeaderTemplatePath == "" && cfg.LineTemplatePath == "" {
		return invoice.DefaultBuilder()
	}
	return invoice.LoadBuilder(cfg.HeaderTemplatePath, cfg.LineTemplatePath)
}

func (f *TransformFunction) Notifier() *notify.Notifier {
	return f.notifier
}

// Process transforms the object named by ev. Failures are notified and
// returned as PipelineErrors alongside the error response.
func (f *TransformFunction) Process(ctx context.Context, ev models.ObjectEvent) (*models.StageResponse, error) {
	ctx, _ = logger.StartInvocation(ctx, "erp-transform-file")
	logCtx := logger.WithContext(ctx).With("eventType", ev.EventType, "object", ev.Data.ResourceName)

	if !ev.IsCreateObject() {
		err := models.EventShapeError(fmt.Sprintf("eventType not of %s, aborting", models.EventTypeCreateObject), nil)
		return failure(ctx, logCtx, f.notifier, notify.Info, "Incorrect Event", "Incorrect EventType Received", ev, err)
	}
	name := ev.Data.ResourceName
	if name == "" {
		err := models.EventShapeError("event carries no resourceName", nil)
		return failure(ctx, logCtx, f.notifier, notify.Info, "Incorrect Event", "Event does not name a data file", ev, err)
	}
	logCtx.Info("Processing inbound data file.")

	data, err := f.router.Read(ctx, stage.Inbound, name)
	if err != nil {
		return failure(ctx, logCtx, f.notifier, notify.Error, "Data File Read Error",
			fmt.Sprintf("Unable to read Data File [%s] from bucket [%s]", name, f.config.InboundBucket),
			map[string]any{"jsonDataFilename": name}, err)
	}

	artifact, err := f.builder.Build(data)
	if err != nil {
		return failure(ctx, logCtx, f.notifier, notify.Error, "JSON Decode Exception",
			"JSON Decode Exception Parsing input data file, please check the file",
			map[string]any{"jsonDecodeError": err.Error(), "filename": name}, err)
	}
	logCtx.Info("Rendered invoice files.", "invoices", artifact.InvoiceCount, "lines", artifact.LineCount)

	zipName := invoice.ArchiveName(name)
	created, err := f.router.Deposit(ctx, stage.Ready, zipName, artifact.Archive)
	if err != nil {
		return failure(ctx, logCtx, f.notifier, notify.Error, "Data Bucket LoadError",
			"Received error whilst writing file to bucket",
			map[string]any{"jsonDataFilename": name, "zipDataFilename": zipName}, err)
	}
	if !created {
		logCtx.Info("Archive already exists, earlier delivery of this event wrote it.", "archive", zipName)
	}

	if err := f.router.Remove(ctx, stage.Inbound, name); err != nil {
		warn(ctx, logCtx, f.notifier, "Failed to Delete Transform file",
			fmt.Sprintf("Error deleting processed file %s from bucket %s", name, f.config.InboundBucket),
			map[string]any{"jsonDataFilename": name, "error": err.Error()})
	}

	logCtx.Info("Transform complete.", "archive", zipName)
	return success(ctx, f.notifier, notify.Message{
		Status:  notify.StatusInfo,
		Header:  fmt.Sprintf("Transform of file %s Completed", name),
		Message: fmt.Sprintf("Datafile [%s] transformed and put into bucket [%s]", name, f.config.ReadyBucket),
		AdditionalDetails: map[string]any{
			"filename":     name,
			"archive":      zipName,
			"invoiceCount": artifact.InvoiceCount,
			"lineCount":    artifact.LineCount,
		},
	}), nil
}
