package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/cart"
)

const (
	cartColumns = `id, customer_id, created_at, updated_at`

	getCartByCustomerSQL = `SELECT ` + cartColumns + ` FROM carts WHERE customer_id = $1`
	ensureCartSQL        = `INSERT INTO carts (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO UPDATE SET updated_at = now()
		RETURNING ` + cartColumns

	cartItemColumns = `ci.id, ci.cart_id, c.customer_id, ci.product_id, ci.quantity, ci.created_at`
	cartItemFrom    = ` FROM cart_items ci JOIN carts c ON c.id = ci.cart_id`

	listCartItemsSQL = `SELECT ` + cartItemColumns + cartItemFrom + ` WHERE ci.cart_id = $1 ORDER BY ci.id`
	findCartItemSQL  = `SELECT ` + cartItemColumns + cartItemFrom + ` WHERE ci.cart_id = $1 AND ci.product_id = $2`
	getCartItemSQL   = `SELECT ` + cartItemColumns + cartItemFrom + ` WHERE ci.id = $1`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		RETURNING id, created_at`
	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`
	deleteCartItemSQL      = `DELETE FROM cart_items WHERE id = $1`
	clearCartSQL           = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.CustomerID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.CustomerID, &it.ProductID, &it.Quantity, &it.CreatedAt)
	return it, err
}

// GetByCustomer returns the customer's cart.
func (r *CartRepository) GetByCustomer(ctx context.Context, customerID int64) (*cart.Cart, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getCartByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("getting cart of customer %d: %w", customerID, err)
	}
	c, err := collectOne(rows, scanCart, cart.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting cart of customer %d: %w", customerID, err)
	}
	return c, nil
}

// Ensure returns the customer's cart, creating it when missing.
func (r *CartRepository) Ensure(ctx context.Context, customerID int64) (*cart.Cart, error) {
	rows, err := r.db.conn(ctx).Query(ctx, ensureCartSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("ensuring cart of customer %d: %w", customerID, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		return nil, fmt.Errorf("ensuring cart of customer %d: %w", customerID, err)
	}
	return &c, nil
}

// Items returns the cart's items in insertion order.
func (r *CartRepository) Items(ctx context.Context, cartID int64) ([]cart.Item, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %d: %w", cartID, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

func (r *CartRepository) oneItem(ctx context.Context, query string, args ...any) (*cart.Item, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	it, err := collectOne(rows, scanCartItem, cart.ErrItemNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	return it, nil
}

// FindItem returns the cart's line for productID.
func (r *CartRepository) FindItem(ctx context.Context, cartID, productID int64) (*cart.Item, error) {
	return r.oneItem(ctx, findCartItemSQL, cartID, productID)
}

// GetItem returns a cart item with its owning customer.
func (r *CartRepository) GetItem(ctx context.Context, itemID int64) (*cart.Item, error) {
	return r.oneItem(ctx, getCartItemSQL, itemID)
}

// AddItem inserts a new line.
func (r *CartRepository) AddItem(ctx context.Context, it *cart.Item) error {
	err := r.db.conn(ctx).QueryRow(ctx, addCartItemSQL, it.CartID, it.ProductID, it.Quantity).
		Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding product %d to cart %d: %w", it.ProductID, it.CartID, err)
	}
	return nil
}

// SetQuantity overwrites a line's quantity.
func (r *CartRepository) SetQuantity(ctx context.Context, itemID int64, qty int) error {
	tag, err := r.db.conn(ctx).Exec(ctx, setCartItemQuantitySQL, itemID, qty)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteItem removes a line.
func (r *CartRepository) DeleteItem(ctx context.Context, itemID int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteCartItemSQL, itemID)
	if err != nil {
		return fmt.Errorf("deleting cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// Clear removes every line of the cart.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	if _, err := r.db.conn(ctx).Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %d: %w", cartID, err)
	}
	return nil
}
