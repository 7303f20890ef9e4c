package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
)

// DecodeObjectEvent reads an object-created notice from a CloudEvent. The
// payload may be the full {eventType, data} envelope or just its data part,
// in which case the CloudEvent type supplies the event type.
func DecodeObjectEvent(e cloudevents.Event) (models.ObjectEvent, error) {
	ev, err := DecodeObjectEventJSON(e.Data())
	if err != nil {
		return models.ObjectEvent{}, err
	}
	if ev.EventType == "" {
		ev.EventType = e.Type()
	}
	return ev, nil
}

// DecodeObjectEventJSON parses a raw event body.
func DecodeObjectEventJSON(body []byte) (models.ObjectEvent, error) {
	var probe struct {
		EventType string          `json:"eventType"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return models.ObjectEvent{}, models.EventShapeError("event payload is not a JSON object", err).
			WithDetails(string(body))
	}

	ev := models.ObjectEvent{EventType: probe.EventType}
	dataPart := probe.Data
	if len(dataPart) == 0 {
		dataPart = body
	}
	if err := json.Unmarshal(dataPart, &ev.Data); err != nil {
		return models.ObjectEvent{}, models.EventShapeError("event data is not an object", err).
			WithDetails(string(body))
	}
	return ev, nil
}

// NotifyFlushTimeout bounds how long an entrypoint waits for pending
// notifications before returning.
const NotifyFlushTimeout = 10 * time.Second

// ObjectStage is a stage triggered by object-created events.
type ObjectStage interface {
	Process(ctx context.Context, ev models.ObjectEvent) (*models.StageResponse, error)
	Notifier() *notify.Notifier
}

// HandleCloudEvent runs s for one CloudEvent. Event and data shape problems
// are acknowledged once notified so the event is not redelivered; every other
// failure is returned to mark the invocation failed.
func HandleCloudEvent(ctx context.Context, s ObjectStage, e cloudevents.Event) error {
	ctx, batch := notify.StartBatch(ctx)
	defer flush(ctx, batch)

	ev, err := DecodeObjectEvent(e)
	if err != nil {
		logCtx := slog.With("eventId", e.ID(), "eventType", e.Type())
		_, err = failure(ctx, logCtx, s.Notifier(), notify.Info, "Incorrect Event", "Unable to decode event payload", string(e.Data()), err)
		return acknowledge(err)
	}

	_, err = s.Process(ctx, ev)
	return acknowledge(err)
}

func acknowledge(err error) error {
	if err == nil || !models.IsFatal(err) {
		return nil
	}
	return err
}

// flush waits for the notifications of one invocation.
func flush(ctx context.Context, batch *notify.Batch) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), NotifyFlushTimeout)
	defer cancel()
	batch.Wait(flushCtx)
}
