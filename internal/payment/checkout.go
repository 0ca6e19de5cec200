package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/gateway"
)

type CheckoutRequest struct {
	UserID          string
	ShippingAddress domain.ShippingAddress
	Method          domain.PaymentMethod
	ClientIP        string
}

type CheckoutResult struct {
	Order      *domain.Order
	PaymentURL string
	// AwaitingGateway is set when the gateway did not answer in time. The
	// order is stored as pending and settles through the IPN.
	AwaitingGateway bool
}

// Checkout turns a cart into a pending order and a gateway redirect.
type Checkout struct {
	carts     CartStore
	orders    OrderStore
	gateways  map[domain.PaymentMethod]gateway.Gateway
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewCheckout(carts CartStore, orders OrderStore, gateways []gateway.Gateway, publisher EventPublisher, logger *slog.Logger) *Checkout {
	byMethod := make(map[domain.PaymentMethod]gateway.Gateway, len(gateways))
	for _, gw := range gateways {
		byMethod[gw.Method()] = gw
	}
	return &Checkout{
		carts:     carts,
		orders:    orders,
		gateways:  byMethod,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Start snapshots the caller's cart into an order, asks the gateway for a
// redirect, then stores the order and empties the cart together. A gateway
// that times out still leaves a pending order behind; any other gateway
// error persists nothing.
func (c *Checkout) Start(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "payment.checkout")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("payment.method", string(req.Method)),
	)

	if !req.ShippingAddress.Complete() {
		return nil, ErrInvalidAddress
	}

	gw, ok := c.gateways[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	if err := gw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, req.Method)
	}

	cart, err := c.carts.GetCart(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	now := c.now().UTC()
	id := uuid.New().String()
	items := cart.Snapshot()
	order := &domain.Order{
		ID:              id,
		UserID:          req.UserID,
		Items:           items,
		TotalAmount:     domain.ItemsTotal(items),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.Method,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentRef:      strings.ReplaceAll(id, "-", ""),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	paymentURL, err := gw.PaymentURL(ctx, gateway.PaymentRequest{
		OrderID:   order.ID,
		Reference: order.PaymentRef,
		Amount:    order.TotalAmount,
		OrderInfo: "Thanh toan don hang " + order.PaymentRef,
		ClientIP:  req.ClientIP,
		CreatedAt: now,
	})
	awaiting := false
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, gateway.ErrUnavailable):
			c.logger.Warn("payment gateway did not answer, keeping order pending", "error", err, "order_id", order.ID, "method", req.Method)
			awaiting = true
		case errors.Is(err, gateway.ErrConfiguration):
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		default:
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("build payment url: %w", err)
		}
	}

	if err := c.orders.CreateFromCart(ctx, order, cart.Version); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create order: %w", err)
	}

	if c.publisher != nil {
		event := domain.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			Items:         order.Items,
			TotalAmount:   order.TotalAmount,
			PaymentMethod: order.PaymentMethod,
			Timestamp:     order.CreatedAt,
		}
		if err := c.publisher.Publish(ctx, order.ID, event); err != nil {
			c.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	c.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID, "total", order.TotalAmount, "method", order.PaymentMethod)
	return &CheckoutResult{Order: order, PaymentURL: paymentURL, AwaitingGateway: awaiting}, nil
}
