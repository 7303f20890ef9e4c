package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
	"github.com/Lllllllleong/erpdocumentflow/internal/services"
)

var (
	transformInstance *services.TransformFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger.Init(config.LoadLog())

	// "TransformFile" is the entry point name configured in GCP.
	functions.CloudEvent("TransformFile", transformFile)
}

// main is required by the Go Functions Framework.
func main() {}

// transformFile is the Cloud Function entry point for new inbound JSON files.
func transformFile(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		transformInstance, initErr = services.NewTransform(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	return services.HandleCloudEvent(ctx, transformInstance, e)
}
