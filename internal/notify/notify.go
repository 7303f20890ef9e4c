// Package notify publishes best-effort pipeline notifications. Within an
// invocation batch publishing never blocks the stage, and a failed publish is
// only logged.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Notification statuses.
const (
	StatusInfo    = "INFO"
	StatusSuccess = "SUCCESS"
	StatusWarning = "WARNING"
	StatusError   = "ERROR"
)

// Channel selects the topic a notification is published to.
type Channel string

const (
	Info  Channel = "info"
	Error Channel = "error"
)

// DefaultPublishTimeout bounds a single detached publish.
const DefaultPublishTimeout = 30 * time.Second

// Message is the notification body. Header doubles as the published title.
type Message struct {
	Status            string `json:"status"`
	Header            string `json:"header"`
	Message           string `json:"message"`
	AdditionalDetails any    `json:"additionalDetails"`
}

// Publisher delivers one notification body to a topic.
type Publisher interface {
	Publish(ctx context.Context, topicID, title string, body []byte) error
}

// Topics names the topic behind each channel.
type Topics struct {
	Info  string
	Error string
}

func (t Topics) topic(c Channel) (string, error) {
	switch c {
	case Info:
		return t.Info, nil
	case Error:
		return t.Error, nil
	}
	return "", fmt.Errorf("unknown notification channel %q", c)
}

// Notifier dispatches notifications. It holds no per-invocation state and is
// safe to share between concurrent invocations.
type Notifier struct {
	publisher Publisher
	topics    Topics
	timeout   time.Duration
}

func NewNotifier(publisher Publisher, topics Topics) *Notifier {
	return &Notifier{publisher: publisher, topics: topics, timeout: DefaultPublishTimeout}
}

// Batch tracks the notifications sent during one invocation.
type Batch struct {
	wg sync.WaitGroup
}

type batchKey struct{}

// StartBatch returns a context under which Send publishes in the background,
// tracked by the returned Batch. Each invocation starts its own.
func StartBatch(ctx context.Context) (context.Context, *Batch) {
	b := &Batch{}
	return context.WithValue(ctx, batchKey{}, b), b
}

func batchFrom(ctx context.Context) *Batch {
	b, _ := ctx.Value(batchKey{}).(*Batch)
	return b
}

// Send publishes msg on channel c and returns msg so callers can echo it in
// their response. Under a batch context the publish runs detached and Send
// returns at once; without one the publish completes before Send returns.
func (n *Notifier) Send(ctx context.Context, c Channel, msg Message) Message {
	logCtx := slog.With("channel", string(c), "title", msg.Header, "status", msg.Status)

	topic, err := n.topics.topic(c)
	if err != nil {
		logCtx.Error("Dropping notification", "error", err)
		return msg
	}
	body, err := json.Marshal(msg)
	if err != nil {
		logCtx.Error("Failed to encode notification", "error", err)
		return msg
	}

	// Detach from the caller's cancellation so a finished stage does not abort the publish.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	publish := func() {
		defer cancel()
		if err := n.publisher.Publish(pubCtx, topic, msg.Header, body); err != nil {
			logCtx.Error("Failed to publish notification", "error", err, "topic", topic)
			return
		}
		logCtx.Debug("Published notification.", "topic", topic)
	}

	b := batchFrom(ctx)
	if b == nil {
		publish()
		return msg
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		publish()
	}()
	return msg
}

// Wait blocks until every notification sent in the batch has been attempted
// or ctx ends. Call it once, after the last Send of the invocation.
func (b *Batch) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Gave up waiting for notifications", "error", ctx.Err())
	}
}
