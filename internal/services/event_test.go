package services

import (
	"context"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCloudEvent(t *testing.T, eventType string, data []byte) cloudevents.Event {
	t.Helper()
	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetSource("//storage.googleapis.com/projects/_/buckets/zip-in")
	e.SetType(eventType)
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, data))
	return e
}

func TestDecodeObjectEvent_Envelope(t *testing.T) {
	e := newCloudEvent(t, "google.cloud.storage.object.v1.finalized",
		[]byte(`{"eventType":"com.oraclecloud.objectstorage.createobject","data":{"resourceName":"batch-01.json"}}`))

	ev, err := DecodeObjectEvent(e)
	require.NoError(t, err)
	assert.True(t, ev.IsCreateObject())
	assert.Equal(t, "batch-01.json", ev.Data.ResourceName)
}

func TestDecodeObjectEvent_DataOnly(t *testing.T) {
	e := newCloudEvent(t, models.EventTypeCreateObject, []byte(`{"resourceName":"batch-01.zip"}`))

	ev, err := DecodeObjectEvent(e)
	require.NoError(t, err)
	assert.Equal(t, models.EventTypeCreateObject, ev.EventType)
	assert.Equal(t, "batch-01.zip", ev.Data.ResourceName)
}

func TestDecodeObjectEvent_ForeignType(t *testing.T) {
	e := newCloudEvent(t, "google.cloud.storage.object.v1.finalized", []byte(`{"name":"batch-01.zip"}`))

	ev, err := DecodeObjectEvent(e)
	require.NoError(t, err)
	assert.False(t, ev.IsCreateObject())
}

func TestDecodeObjectEventJSON_Invalid(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2]`, `{"eventType":"x","data":"text"}`} {
		_, err := DecodeObjectEventJSON([]byte(body))
		require.Error(t, err, body)
		kind, _ := models.KindOf(err)
		assert.Equal(t, models.KindEventShape, kind)
	}
}

func TestHandleCloudEvent(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fx := newTransformFixture()
		fx.store.Seed("json-in", "batch-01.json", []byte(inboundRecord))
		e := newCloudEvent(t, models.EventTypeCreateObject, []byte(`{"resourceName":"batch-01.json"}`))

		assert.NoError(t, HandleCloudEvent(context.Background(), fx.fn, e))
		assert.Len(t, fx.rec.Published(), 1, "notifications are flushed before returning")
	})

	t.Run("wrong event type is acknowledged", func(t *testing.T) {
		fx := newTransformFixture()
		e := newCloudEvent(t, "google.cloud.storage.object.v1.deleted", []byte(`{"resourceName":"batch-01.json"}`))

		assert.NoError(t, HandleCloudEvent(context.Background(), fx.fn, e))
		assert.Zero(t, fx.store.TotalCalls())
		assert.Len(t, fx.rec.Published(), 1)
	})

	t.Run("undecodable payload is acknowledged", func(t *testing.T) {
		fx := newTransformFixture()
		e := newCloudEvent(t, models.EventTypeCreateObject, []byte(`[]`))

		assert.NoError(t, HandleCloudEvent(context.Background(), fx.fn, e))
		require.Len(t, fx.rec.Published(), 1)
		assert.Equal(t, "Incorrect Event", fx.rec.Published()[0].Title)
	})

	t.Run("storage failure fails the invocation", func(t *testing.T) {
		fx := newTransformFixture()
		e := newCloudEvent(t, models.EventTypeCreateObject, []byte(`{"resourceName":"ghost.json"}`))

		err := HandleCloudEvent(context.Background(), fx.fn, e)
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
