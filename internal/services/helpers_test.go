package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/Lllllllleong/erpdocumentflow/internal/erp"
	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
	"github.com/stretchr/testify/require"
)

const (
	infoTopic  = "erp-info"
	errorTopic = "erp-error"
)

func createEvent(name string) models.ObjectEvent {
	return models.ObjectEvent{
		EventType: models.EventTypeCreateObject,
		Data:      models.ObjectEventData{ResourceName: name},
	}
}

func newRecorderNotifier() (*notify.Notifier, *notify.Recorder) {
	rec := &notify.Recorder{}
	return notify.NewNotifier(rec, notify.Topics{Info: infoTopic, Error: errorTopic}), rec
}

type sentNotification struct {
	Topic string
	notify.Message
}

// notifications decodes what was recorded. Process called outside an
// invocation batch publishes before returning, so nothing is pending.
func notifications(t *testing.T, rec *notify.Recorder) []sentNotification {
	t.Helper()
	var out []sentNotification
	for _, p := range rec.Published() {
		var msg notify.Message
		require.NoError(t, json.Unmarshal(p.Body, &msg))
		require.Equal(t, p.Title, msg.Header)
		out = append(out, sentNotification{Topic: p.Topic, Message: msg})
	}
	return out
}

func findNotification(t *testing.T, sent []sentNotification, header string) sentNotification {
	t.Helper()
	for _, s := range sent {
		if s.Header == header {
			return s
		}
	}
	require.Failf(t, "notification not sent", "no notification titled %q in %+v", header, sent)
	return sentNotification{}
}

type fakeSecrets struct {
	value string
	err   error
	calls int
}

func (f *fakeSecrets) Secret(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.value, f.err
}

type submitCall struct {
	Password string
	FileName string
	Content  []byte
}

type fakeSubmitter struct {
	mu    sync.Mutex
	jobID string
	err   error
	calls []submitCall
}

func (f *fakeSubmitter) Submit(_ context.Context, password, fileName string, content []byte) (*erp.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submitCall{Password: password, FileName: fileName, Content: content})
	if f.err != nil {
		return nil, f.err
	}
	return &erp.Submission{JobID: f.jobID, Response: map[string]any{"ReqstId": f.jobID}}, nil
}
