package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LogPublisher writes notifications to the structured log. Used when no
// message bus is available, such as local CLI runs.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topicID, title string, body []byte) error {
	slog.Info("Notification", "topic", topicID, "title", title, "body", string(body))
	return nil
}

// Published is one notification captured by a Recorder.
type Published struct {
	Topic string
	Title string
	Body  []byte
}

// Recorder keeps every published notification in memory.
type Recorder struct {
	mu        sync.Mutex
	published []Published
	// Err, when set, is returned from every Publish after recording.
	Err error
	// Delay, when set, holds every Publish this long before recording.
	Delay time.Duration
}

func (r *Recorder) Publish(ctx context.Context, topicID, title string, body []byte) error {
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, Published{Topic: topicID, Title: title, Body: append([]byte(nil), body...)})
	return r.Err
}

// Published returns a copy of everything recorded so far.
func (r *Recorder) Published() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.published...)
}
