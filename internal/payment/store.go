package payment

import (
	"context"
	"errors"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
)

var (
	ErrConfiguration     = errors.New("payment configuration is missing")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrCartChanged       = errors.New("cart changed during checkout")
	ErrInvalidAddress    = errors.New("shipping address is incomplete")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrUnknownOrder      = errors.New("order not found")
	ErrAlreadySettled    = errors.New("order already settled")
	ErrAmountMismatch    = errors.New("paid amount does not match order total")
	ErrConcurrentUpdate  = errors.New("order changed concurrently")
)

// OrderStore is the persistent order collection.
type OrderStore interface {
	// GetByPaymentRef returns nil, nil when no order carries ref.
	GetByPaymentRef(ctx context.Context, ref string) (*domain.Order, error)
	// CreateFromCart inserts order and empties the owner's cart in one
	// transaction. It fails with ErrCartChanged when the cart version is no
	// longer cartVersion.
	CreateFromCart(ctx context.Context, order *domain.Order, cartVersion int64) error
	// Transition moves the order from one payment status to another only if
	// it is still in from. It reports false when another writer got there
	// first.
	Transition(ctx context.Context, orderID string, from, to domain.PaymentStatus, info *domain.PaymentInfo, at time.Time) (bool, error)
}

type CartStore interface {
	// GetCart returns nil, nil when the user has no cart.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}
