package payment

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memCartStore struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[string]*domain.Cart)}
}

func (s *memCartStore) put(cart *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart.TotalAmount = 0
	for _, item := range cart.Items {
		cart.TotalAmount += item.Price * int64(item.Quantity)
	}
	s.carts[cart.UserID] = cart
}

func (s *memCartStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[userID]
	if !ok {
		return nil, nil
	}
	cp := *cart
	cp.Items = append([]domain.CartItem(nil), cart.Items...)
	return &cp, nil
}

// memOrderStore mirrors the Postgres repository semantics: CreateFromCart is
// all-or-nothing and Transition is a compare-and-swap on payment status.
type memOrderStore struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	carts       *memCartStore
	transitions int
	createErr   error
	// beforeTransition runs inside Transition before the status check.
	beforeTransition func(o *domain.Order)
}

func newMemOrderStore(carts *memCartStore) *memOrderStore {
	return &memOrderStore{orders: make(map[string]*domain.Order), carts: carts}
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.PaymentInfo != nil {
		info := *o.PaymentInfo
		cp.PaymentInfo = &info
	}
	return &cp
}

func (s *memOrderStore) add(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = copyOrder(o)
}

func (s *memOrderStore) get(id string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil
	}
	return copyOrder(o)
}

func (s *memOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memOrderStore) transitionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitions
}

func (s *memOrderStore) GetByPaymentRef(_ context.Context, ref string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentRef == ref {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (s *memOrderStore) CreateFromCart(_ context.Context, order *domain.Order, cartVersion int64) error {
	if s.createErr != nil {
		return s.createErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts.mu.Lock()
	defer s.carts.mu.Unlock()

	cart, ok := s.carts.carts[order.UserID]
	if !ok || cart.Version != cartVersion {
		return ErrCartChanged
	}
	s.orders[order.ID] = copyOrder(order)
	cart.Items = nil
	cart.TotalAmount = 0
	cart.Version++
	return nil
}

func (s *memOrderStore) Transition(_ context.Context, orderID string, from, to domain.PaymentStatus, info *domain.PaymentInfo, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	if s.beforeTransition != nil {
		s.beforeTransition(o)
	}
	if o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	if info != nil {
		cp := *info
		o.PaymentInfo = &cp
	}
	o.UpdatedAt = at
	s.transitions++
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) settled() []domain.PaymentSettledEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.PaymentSettledEvent
	for _, e := range p.events {
		if ev, ok := e.(domain.PaymentSettledEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}
