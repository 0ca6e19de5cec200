package messaging

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
)

func TestTopicFor(t *testing.T) {
	tests := []struct {
		name  string
		event any
		want  string
	}{
		{"order created", domain.OrderCreatedEvent{}, TopicOrderCreated},
		{"payment settled", domain.PaymentSettledEvent{}, TopicPaymentSettled},
		{"payment settled pointer", &domain.PaymentSettledEvent{}, TopicPaymentSettled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TopicFor(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := TopicFor("nope"); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestNewMessage(t *testing.T) {
	event := domain.PaymentSettledEvent{OrderID: "o-1", Status: domain.PaymentStatusCompleted, Amount: 680000}

	msg, err := newMessage(TopicPaymentSettled, "o-1", event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Topic != TopicPaymentSettled || string(msg.Key) != "o-1" {
		t.Errorf("unexpected routing: topic %s key %s", msg.Topic, msg.Key)
	}
	if got := newHeaderCarrier(&msg).Get(eventTypeHeader); got != TopicPaymentSettled {
		t.Errorf("expected event type header %s, got %q", TopicPaymentSettled, got)
	}

	var decoded domain.PaymentSettledEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.OrderID != "o-1" || decoded.Amount != 680000 {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestHeaderCarrier(t *testing.T) {
	var _ propagation.TextMapCarrier = headerCarrier{}

	msg := kafka.Message{}
	c := newHeaderCarrier(&msg)

	c.Set("traceparent", "00-a-b-01")
	c.Set("traceparent", "00-c-d-01")
	c.Set("tracestate", "k=v")

	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
	}
	if got := c.Get("traceparent"); got != "00-c-d-01" {
		t.Errorf("expected overwritten value, got %q", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "traceparent" || keys[1] != "tracestate" {
		t.Errorf("unexpected keys: %v", keys)
	}
}
