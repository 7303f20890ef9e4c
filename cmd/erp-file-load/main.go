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
	loadInstance *services.LoadFunction
	once         sync.Once
	initErr      error
)

func init() {
	logger.Init(config.LoadLog())

	// "LoadFile" is the entry point name configured in GCP.
	functions.CloudEvent("LoadFile", loadFile)
}

// main is required by the Go Functions Framework.
func main() {}

// loadFile submits a newly written archive to the ERP.
func loadFile(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		loadInstance, initErr = services.NewLoad(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	return services.HandleCloudEvent(ctx, loadInstance, e)
}
