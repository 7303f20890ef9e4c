package gcp

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// TitleAttribute carries the notification title on published messages.
const TitleAttribute = "title"

// PubSubPublisher publishes notification bodies to Pub/Sub topics.
type PubSubPublisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubPublisher(ctx context.Context, projectID string) (*PubSubPublisher, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewPubSubPublisher: projectID cannot be empty")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	return &PubSubPublisher{client: client, topics: make(map[string]*pubsub.Topic)}, nil
}

func (p *PubSubPublisher) topic(id string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[id]
	if !ok {
		t = p.client.Topic(id)
		p.topics[id] = t
	}
	return t
}

// Publish sends body to topicID and waits for the server to acknowledge it.
func (p *PubSubPublisher) Publish(ctx context.Context, topicID, title string, body []byte) error {
	result := p.topic(topicID).Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{TitleAttribute: title},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topicID, err)
	}
	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}
