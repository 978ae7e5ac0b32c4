package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

func newTestTopic(t *testing.T, name string) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return srv, topic
}

func TestPubSubOrderEmailPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t, "order-emails")

	publisher, err := NewPubSubOrderEmailPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEmailPublisher: %v", err)
	}

	queuedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	msg := services.OrderEmailMessage{
		OrderID:     "ord_abc",
		OrderNumber: "ORD-1770000000-123456",
		Email:       "buyer@example.com",
		Name:        "Priya",
		Template:    "order_confirmation",
		Total:       1548,
		Currency:    "INR",
		QueuedAt:    queuedAt,
	}

	if _, err := publisher.PublishOrderEmail(ctx, msg); err != nil {
		t.Fatalf("PublishOrderEmail: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEmailMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || payload.Template != msg.Template {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderNumber"]; attr != msg.OrderNumber {
		t.Fatalf("expected order number attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["email"]; ok {
		t.Fatalf("email address should not leak into attributes")
	}
}

func TestPubSubAnalyticsPublisherPublishesEvent(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t, "analytics-events")

	publisher, err := NewPubSubAnalyticsPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubAnalyticsPublisher: %v", err)
	}

	event := domain.AnalyticsEvent{
		ID:        "evt_1",
		Type:      domain.AnalyticsEventPurchase,
		OrderID:   "ord_abc",
		Payload:   map[string]any{"total": 1548.0},
		CreatedAt: time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishAnalyticsEvent(ctx, event); err != nil {
		t.Fatalf("PublishAnalyticsEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if attr := messages[0].Attributes["type"]; attr != string(domain.AnalyticsEventPurchase) {
		t.Fatalf("expected type attribute, got %q", attr)
	}

	var payload domain.AnalyticsEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != event.OrderID {
		t.Fatalf("unexpected payload %#v", payload)
	}
}
