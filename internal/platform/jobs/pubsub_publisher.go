package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

// PubSubOrderEmailPublisher publishes transactional order emails to a
// Pub/Sub topic consumed by the mail worker.
type PubSubOrderEmailPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderEmailPublisher constructs a Pub/Sub backed email publisher.
func NewPubSubOrderEmailPublisher(topic *pubsub.Topic) (*PubSubOrderEmailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub email publisher: topic is required")
	}
	return &PubSubOrderEmailPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEmail enqueues one email message on the configured topic.
func (p *PubSubOrderEmailPublisher) PublishOrderEmail(ctx context.Context, message services.OrderEmailMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub email publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order email: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "template", message.Template)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order email: %w", err)
	}
	return id, nil
}

// PubSubAnalyticsPublisher mirrors analytics events onto a Pub/Sub topic for
// downstream pipelines.
type PubSubAnalyticsPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubAnalyticsPublisher constructs a Pub/Sub backed analytics publisher.
func NewPubSubAnalyticsPublisher(topic *pubsub.Topic) (*PubSubAnalyticsPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub analytics publisher: topic is required")
	}
	return &PubSubAnalyticsPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishAnalyticsEvent enqueues one analytics event on the configured topic.
func (p *PubSubAnalyticsPublisher) PublishAnalyticsEvent(ctx context.Context, event domain.AnalyticsEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub analytics publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal analytics event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", string(event.Type))
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "productId", event.ProductID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish analytics event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
