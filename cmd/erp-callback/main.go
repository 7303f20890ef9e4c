package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/logger"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/services"
)

var (
	callbackInstance *services.CallbackFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger.Init(config.LoadLog())

	// Register the HTTP function with the framework.
	// "HandleERPCallback" is the entry point name configured in GCP.
	functions.HTTP("HandleERPCallback", handleERPCallback)
}

// main is required by the Go Functions Framework.
func main() {}

// handleERPCallback receives the ERP job completion callback.
func handleERPCallback(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		callbackInstance, initErr = services.NewCallback(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: Callback initialization failed", "error", initErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse(initErr.Error(), nil))
		return
	}

	callbackInstance.ServeHTTP(w, r)
}
