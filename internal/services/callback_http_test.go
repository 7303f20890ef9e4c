package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveCallback(t *testing.T, fx callbackFixture, method string, body []byte) (*httptest.ResponseRecorder, models.StageResponse) {
	t.Helper()
	req := httptest.NewRequest(method, "/erp-callback", bytes.NewReader(body))
	w := httptest.NewRecorder()
	fx.fn.ServeHTTP(w, req)

	var res models.StageResponse
	if w.Code != http.StatusMethodNotAllowed {
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func TestCallbackHTTP_Success(t *testing.T) {
	fx := newCallbackFixture()
	fx.store.Seed("processing", "batch-01.zip_ERPJOBID_98765", []byte("zip"))

	w, res := serveCallback(t, fx, http.MethodPost, callbackBody("SUCCEEDED"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SUCCESS", res.Status)
	assert.Empty(t, res.ErrorMessage)
	assert.Len(t, fx.rec.Published(), 1)
}

func TestCallbackHTTP_BadPayload(t *testing.T) {
	fx := newCallbackFixture()

	w, res := serveCallback(t, fx, http.MethodPost, []byte("garbage"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, res.ErrorMessage)
	assert.NotNil(t, res.AdditionalData)
}

func TestCallbackHTTP_RoutingFailure(t *testing.T) {
	fx := newCallbackFixture()

	w, res := serveCallback(t, fx, http.MethodPost, callbackBody("ERROR"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, res.ErrorMessage, "STORAGE")
}

func TestCallbackHTTP_MethodNotAllowed(t *testing.T) {
	fx := newCallbackFixture()

	w, _ := serveCallback(t, fx, http.MethodGet, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Zero(t, fx.store.TotalCalls())
}

func TestCallbackHTTP_ConcurrentInvocations(t *testing.T) {
	fx := newCallbackFixture()
	fx.rec.Delay = 2 * time.Millisecond

	const workers, rounds = 64, 20
	codes := make(chan int, workers*rounds)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				req := httptest.NewRequest(http.MethodPost, "/erp-callback", bytes.NewReader([]byte("garbage")))
				w := httptest.NewRecorder()
				fx.fn.ServeHTTP(w, req)
				codes <- w.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusBadRequest, code)
	}
	assert.Len(t, fx.rec.Published(), workers*rounds, "every invocation flushed its own notification")
}

// gatedPublisher holds every publish until release is closed.
type gatedPublisher struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPublisher) Publish(ctx context.Context, _, _ string, _ []byte) error {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return nil
}

func TestCallbackHTTP_DoesNotWaitForOtherInvocations(t *testing.T) {
	fx := newCallbackFixture()
	pub := &gatedPublisher{started: make(chan struct{}), release: make(chan struct{})}
	fn := NewCallbackWithDeps(&fx.fn.config, fx.store, notify.NewNotifier(pub, notify.Topics{Info: infoTopic, Error: errorTopic}))

	slowDone := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		fn.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/erp-callback", bytes.NewReader([]byte("garbage"))))
		slowDone <- w.Code
	}()
	<-pub.started

	start := time.Now()
	w := httptest.NewRecorder()
	fn.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/erp-callback", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case <-slowDone:
		t.Fatal("invocation returned before its notification was published")
	default:
	}
	close(pub.release)
	assert.Equal(t, http.StatusBadRequest, <-slowDone)
}
