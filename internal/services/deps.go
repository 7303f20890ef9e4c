package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/erp"
	"github.com/Lllllllleong/erpdocumentflow/internal/gcp"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

// SecretReader resolves a secret id to its plaintext value.
type SecretReader interface {
	Secret(ctx context.Context, secretID string) (string, error)
}

// Submitter sends a packaged file to the ERP bulk import.
type Submitter interface {
	Submit(ctx context.Context, password, fileName string, content []byte) (*erp.Submission, error)
}

// OpenStore connects to the configured object store backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendMinio:
		store, err := storage.NewMinioStore(cfg.Minio())
		if err != nil {
			return nil, fmt.Errorf("failed to create minio store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewGCSStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		return store, nil
	}
}

// newNotifier publishes to the Pub/Sub topics named in cfg.
func newNotifier(ctx context.Context, cfg config.Common) (*notify.Notifier, error) {
	publisher, err := gcp.NewPubSubPublisher(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub publisher: %w", err)
	}
	return notify.NewNotifier(publisher, notify.Topics{Info: cfg.InfoTopicID, Error: cfg.ErrorTopicID}), nil
}

// failure notifies about err and builds the matching error response. The
// error itself is returned unchanged so callers can classify it.
func failure(ctx context.Context, logCtx *slog.Logger, n *notify.Notifier, c notify.Channel, title, message string, details any, err error) (*models.StageResponse, error) {
	logCtx.Error(message, "error", err, "title", title)
	msg := n.Send(ctx, c, notify.Message{
		Status:            notify.StatusError,
		Header:            title,
		Message:           message,
		AdditionalDetails: details,
	})
	return models.ErrorResponse(err.Error(), msg), err
}

// success notifies on the info channel and echoes the notification back as
// the stage response.
func success(ctx context.Context, n *notify.Notifier, msg notify.Message) *models.StageResponse {
	msg = n.Send(ctx, notify.Info, msg)
	return &models.StageResponse{
		Status:            msg.Status,
		Header:            msg.Header,
		Message:           msg.Message,
		AdditionalDetails: msg.AdditionalDetails,
	}
}

// warn publishes a WARNING on the info channel. Warnings never change the
// outcome of a stage.
func warn(ctx context.Context, logCtx *slog.Logger, n *notify.Notifier, title, message string, details any) {
	logCtx.Warn(message, "title", title)
	n.Send(ctx, notify.Info, notify.Message{
		Status:            notify.StatusWarning,
		Header:            title,
		Message:           message,
		AdditionalDetails: details,
	})
}
