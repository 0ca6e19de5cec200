package payment

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type metrics struct {
	callbacks metric.Int64Counter
	checkouts metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter("payment")
	fallback := noop.NewMeterProvider().Meter("payment")

	callbacks, err := meter.Int64Counter("storefront.payment.callbacks",
		metric.WithDescription("Gateway callbacks handled, by gateway, source and result"))
	if err != nil {
		callbacks, _ = fallback.Int64Counter("storefront.payment.callbacks")
	}

	checkouts, err := meter.Int64Counter("storefront.checkout.orders",
		metric.WithDescription("Checkout attempts, by payment method and result"))
	if err != nil {
		checkouts, _ = fallback.Int64Counter("storefront.checkout.orders")
	}

	return &metrics{callbacks: callbacks, checkouts: checkouts}
}

func (m *metrics) callback(ctx context.Context, method, source, result string) {
	m.callbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", method),
		attribute.String("source", source),
		attribute.String("result", result),
	))
}

func (m *metrics) checkout(ctx context.Context, method, result string) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", result),
	))
}
