package messaging

import (
	"fmt"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
)

const (
	TopicOrderCreated   = "storefront.order.created"
	TopicPaymentSettled = "storefront.payment.settled"

	eventTypeHeader = "event-type"
)

// TopicFor maps a domain event to the topic it is published on.
func TopicFor(event any) (string, error) {
	switch event.(type) {
	case domain.OrderCreatedEvent, *domain.OrderCreatedEvent:
		return TopicOrderCreated, nil
	case domain.PaymentSettledEvent, *domain.PaymentSettledEvent:
		return TopicPaymentSettled, nil
	default:
		return "", fmt.Errorf("no topic for event type %T", event)
	}
}
