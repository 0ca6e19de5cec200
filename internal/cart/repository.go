package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joao-fontenele/storefront-payments/internal/domain"
	"github.com/joao-fontenele/storefront-payments/internal/payment"
)

var _ payment.CartStore = (*CartRepository)(nil)

var (
	ErrItemNotFound = errors.New("item not found in cart")
	ErrCartNotFound = errors.New("cart not found")
)

type CartRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db, now: time.Now}
}

// GetCart returns nil when the user never had a cart.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart := &domain.Cart{UserID: userID, Items: []domain.CartItem{}}

	err := r.db.QueryRowContext(ctx, `
		SELECT total_amount, version, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&cart.TotalAmount, &cart.Version, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, image, price, quantity, size
		FROM cart_items
		WHERE user_id = $1
		ORDER BY added_at, product_id, size
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Image, &item.Price, &item.Quantity, &item.Size); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	cart.UpdatedAt = cart.UpdatedAt.UTC()
	return cart, nil
}

// AddItem adds quantity of product in size to the cart, creating the cart on
// first use. A line already holding the same product and size keeps its
// price and grows in quantity.
func (r *CartRepository) AddItem(ctx context.Context, userID string, product *domain.Product, size string, quantity int) (*domain.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (user_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, size, name, image, price, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, product_id, size)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, product.ID, size, product.Name, product.Image, product.Price, quantity, now)
	if err != nil {
		return nil, err
	}

	if err := touch(ctx, tx, userID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetCart(ctx, userID)
}

// RemoveItem drops the product's line in size, or every line of the product
// when size is empty.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID, size string) (*domain.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND ($3 = '' OR size = $3)
	`, userID, productID, size)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, ErrItemNotFound
	}

	if err := touch(ctx, tx, userID, r.now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetCart(ctx, userID)
}

// Clear empties the user's cart. The cart row stays so its version keeps
// increasing across checkouts.
func (r *CartRepository) Clear(ctx context.Context, userID string) (*domain.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM carts WHERE user_id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCartNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}

	if err := touch(ctx, tx, userID, r.now().UTC()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetCart(ctx, userID)
}

// touch recomputes the stored total and bumps the version so an in-flight
// checkout of the old contents fails.
func touch(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE carts SET
			total_amount = (SELECT COALESCE(SUM(price * quantity), 0) FROM cart_items WHERE user_id = $1),
			version = version + 1,
			updated_at = $2
		WHERE user_id = $1
	`, userID, now)
	return err
}
