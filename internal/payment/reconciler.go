package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/gateway"
	"github.com/joao-fontenele/storefront-payments/internal/keylock"
)

var tracer = otel.Tracer("payment")

const maxTransitionAttempts = 3

// Result describes what Apply did to the order.
type Result struct {
	Order   *domain.Order
	Applied bool
}

// Reconciler applies verified gateway outcomes to orders. pending may move to
// completed or failed, failed may still move to completed, completed never
// moves. Work on one order is serialized in-process by locks and across
// processes by the store's conditional Transition.
type Reconciler struct {
	orders    OrderStore
	locks     *keylock.Map
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(orders OrderStore, publisher EventPublisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		orders:    orders,
		locks:     keylock.New(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply settles cb against the order it references. It returns
// ErrUnknownOrder, ErrAmountMismatch, or ErrAlreadySettled (with the order)
// without touching state.
func (r *Reconciler) Apply(ctx context.Context, cb *gateway.Callback) (*Result, error) {
	ctx, span := tracer.Start(ctx, "payment.reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(cb.Method)),
		attribute.String("payment.reference", cb.Reference),
		attribute.String("payment.outcome", cb.Outcome.String()),
	)

	unlock := r.locks.Lock(cb.Reference)
	defer unlock()

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		order, err := r.orders.GetByPaymentRef(ctx, cb.Reference)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("load order: %w", err)
		}
		if order == nil || order.PaymentMethod != cb.Method {
			return nil, ErrUnknownOrder
		}
		span.SetAttributes(attribute.String("order.id", order.ID))

		next, info, err := decide(order, cb)
		if err != nil {
			return &Result{Order: order}, err
		}
		if next == order.PaymentStatus {
			return &Result{Order: order}, nil
		}

		at := r.now().UTC()
		ok, err := r.orders.Transition(ctx, order.ID, order.PaymentStatus, next, info, at)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("transition order %s: %w", order.ID, err)
		}
		if !ok {
			r.logger.Warn("order changed during reconciliation, retrying", "order_id", order.ID, "attempt", attempt+1)
			continue
		}

		from := order.PaymentStatus
		order.PaymentStatus = next
		order.PaymentInfo = info
		order.UpdatedAt = at

		r.logger.Info("order payment status updated",
			"order_id", order.ID,
			"from", from,
			"to", next,
			"transaction_id", info.TransactionID,
		)
		r.publishSettled(ctx, order)

		return &Result{Order: order, Applied: true}, nil
	}

	return nil, ErrConcurrentUpdate
}

// decide is the pure transition function.
func decide(order *domain.Order, cb *gateway.Callback) (domain.PaymentStatus, *domain.PaymentInfo, error) {
	if order.PaymentStatus == domain.PaymentStatusCompleted {
		return order.PaymentStatus, nil, ErrAlreadySettled
	}

	// A failed order only moves on a success; repeated failures are no-ops
	// whatever amount they carry.
	if order.PaymentStatus == domain.PaymentStatusFailed && cb.Outcome != gateway.OutcomeSuccess {
		return order.PaymentStatus, nil, nil
	}

	if cb.Amount != order.TotalAmount {
		return order.PaymentStatus, nil, fmt.Errorf("%w: paid %d, order total %d", ErrAmountMismatch, cb.Amount, order.TotalAmount)
	}

	info := &domain.PaymentInfo{
		TransactionID: cb.TransactionID,
		ResponseCode:  cb.ResponseCode,
	}

	if cb.Outcome == gateway.OutcomeSuccess {
		info.PaidAmount = cb.Amount
		info.PaidAt = cb.PaidAt.UTC()
		return domain.PaymentStatusCompleted, info, nil
	}

	info.FailureReason = cb.Message
	return domain.PaymentStatusFailed, info, nil
}

func (r *Reconciler) publishSettled(ctx context.Context, order *domain.Order) {
	if r.publisher == nil {
		return
	}

	event := domain.PaymentSettledEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: order.PaymentMethod,
		Status:        order.PaymentStatus,
		Amount:        order.TotalAmount,
		Timestamp:     order.UpdatedAt,
	}
	if order.PaymentInfo != nil {
		event.TransactionID = order.PaymentInfo.TransactionID
		event.Reason = order.PaymentInfo.FailureReason
	}

	if err := r.publisher.Publish(ctx, order.ID, event); err != nil {
		r.logger.Error("failed to publish payment settled event", "error", err, "order_id", order.ID)
	}
}
