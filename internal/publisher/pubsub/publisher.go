// Package pubsub publishes showcase refresh events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Publisher wraps a Pub/Sub topic handle.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to projectID and verifies that topicID exists.
func New(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil || !exists {
		topic.Stop()
		if cerr := client.Close(); cerr != nil {
			return nil, fmt.Errorf("close pubsub client after topic check: %w", cerr)
		}
		if err != nil {
			return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Publish marshals the payload to JSON, publishes it and waits for the
// server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, payload any) (string, error) {
	if p == nil || p.topic == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"content_type": "application/json"},
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
