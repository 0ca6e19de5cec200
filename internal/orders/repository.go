package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/payment"
)

var _ payment.OrderStore = (*OrderRepository)(nil)

const orderColumns = `
	id, user_id, total_amount,
	shipping_name, shipping_address, shipping_city, shipping_phone,
	payment_method, payment_status, payment_ref,
	transaction_id, paid_amount, paid_at, response_code, failure_reason,
	created_at, updated_at`

// StatusRevenue is the order count and summed total for one payment status.
type StatusRevenue struct {
	TotalAmount int64 `json:"totalAmount"`
	Count       int   `json:"count"`
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order         domain.Order
		transactionID sql.NullString
		paidAmount    sql.NullInt64
		paidAt        sql.NullTime
		responseCode  sql.NullString
		failureReason sql.NullString
	)

	err := row.Scan(
		&order.ID, &order.UserID, &order.TotalAmount,
		&order.ShippingAddress.FullName, &order.ShippingAddress.Address,
		&order.ShippingAddress.City, &order.ShippingAddress.Phone,
		&order.PaymentMethod, &order.PaymentStatus, &order.PaymentRef,
		&transactionID, &paidAmount, &paidAt, &responseCode, &failureReason,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if transactionID.Valid || responseCode.Valid {
		order.PaymentInfo = &domain.PaymentInfo{
			TransactionID: transactionID.String,
			PaidAmount:    paidAmount.Int64,
			ResponseCode:  responseCode.String,
			FailureReason: failureReason.String,
		}
		if paidAt.Valid {
			order.PaymentInfo.PaidAt = paidAt.Time.UTC()
		}
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	order.Items = []domain.OrderItem{}

	return &order, nil
}

// CreateFromCart inserts the order with its items and empties the owner's
// cart in one transaction. The cart must still be at cartVersion, otherwise
// nothing is written and payment.ErrCartChanged is returned.
func (r *OrderRepository) CreateFromCart(ctx context.Context, order *domain.Order, cartVersion int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE carts SET total_amount = 0, version = version + 1, updated_at = $3
		WHERE user_id = $1 AND version = $2
	`, order.UserID, cartVersion, order.CreatedAt)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return payment.ErrCartChanged
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, order.UserID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, total_amount,
			shipping_name, shipping_address, shipping_city, shipping_phone,
			payment_method, payment_status, payment_ref, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, order.ID, order.UserID, order.TotalAmount,
		order.ShippingAddress.FullName, order.ShippingAddress.Address,
		order.ShippingAddress.City, order.ShippingAddress.Phone,
		order.PaymentMethod, order.PaymentStatus, order.PaymentRef,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	for i, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, name, size, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), order.ID, i, item.ProductID, item.Name, item.Size, item.UnitPrice, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Transition moves the order from one payment status to another and records
// info. It reports false without writing when the order is no longer in from.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, from, to domain.PaymentStatus, info *domain.PaymentInfo, at time.Time) (bool, error) {
	var (
		transactionID, responseCode, failureReason sql.NullString
		paidAmount                                 sql.NullInt64
		paidAt                                     sql.NullTime
	)
	if info != nil {
		transactionID = sql.NullString{String: info.TransactionID, Valid: true}
		responseCode = sql.NullString{String: info.ResponseCode, Valid: true}
		failureReason = sql.NullString{String: info.FailureReason, Valid: info.FailureReason != ""}
		paidAmount = sql.NullInt64{Int64: info.PaidAmount, Valid: info.PaidAmount != 0}
		paidAt = sql.NullTime{Time: info.PaidAt, Valid: !info.PaidAt.IsZero()}
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_status = $3,
			transaction_id = $4,
			paid_amount = $5,
			paid_at = $6,
			response_code = $7,
			failure_reason = $8,
			updated_at = $9
		WHERE id = $1 AND payment_status = $2
	`, orderID, from, to, transactionID, paidAmount, paidAt, responseCode, failureReason, at)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_ref = $1`, ref)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser returns one page of the user's orders, newest first, and the
// user's total order count.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return r.collect(ctx, rows, total)
}

// ListAll is ListByUser across every user.
func (r *OrderRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return r.collect(ctx, rows, total)
}

// RevenueByStatus sums order totals per payment status.
func (r *OrderRepository) RevenueByStatus(ctx context.Context) (map[domain.PaymentStatus]StatusRevenue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		GROUP BY payment_status
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	revenue := make(map[domain.PaymentStatus]StatusRevenue)
	for rows.Next() {
		var (
			status domain.PaymentStatus
			sr     StatusRevenue
		)
		if err := rows.Scan(&status, &sr.Count, &sr.TotalAmount); err != nil {
			return nil, err
		}
		revenue[status] = sr
	}

	return revenue, rows.Err()
}

func (r *OrderRepository) collect(ctx context.Context, rows *sql.Rows, total int) ([]domain.Order, int, error) {
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, total, nil
	}

	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, total, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, size, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Size, &item.UnitPrice, &item.Quantity); err != nil {
			return err
		}
		if order, ok := orderMap[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	return rows.Err()
}
