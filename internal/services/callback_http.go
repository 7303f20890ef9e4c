package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
)

// maxCallbackBytes caps the callback body read into memory.
const maxCallbackBytes = 10 << 20

// ServeHTTP answers an ERP callback with the stage response as JSON. Parse
// failures are 400, routing failures 500.
func (f *CallbackFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, batch := notify.StartBatch(r.Context())
	defer flush(ctx, batch)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		slog.Error("Could not read callback body", "error", err)
		writeResponse(w, http.StatusBadRequest, models.ErrorResponse("could not read callback body: "+err.Error(), nil))
		return
	}

	res, err := f.Process(ctx, body)
	if err != nil {
		status := http.StatusInternalServerError
		if kind, ok := models.KindOf(err); ok && kind == models.KindCallbackParse {
			status = http.StatusBadRequest
		}
		writeResponse(w, status, res)
		return
	}
	writeResponse(w, http.StatusOK, res)
}

func writeResponse(w http.ResponseWriter, status int, res *models.StageResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
