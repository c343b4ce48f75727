// Package cart implements the customer shopping cart.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/product"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrForbidden       = errors.New("cart item belongs to another customer")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmpty           = errors.New("cart is empty")
)

// StockError reports a quantity above the product's available stock.
type StockError struct {
	Available int
	// Merge is set when the overflow came from adding to an existing line.
	Merge bool
}

func (e *StockError) Error() string {
	if e.Merge {
		return fmt.Sprintf("Cannot add more items. Only %d items available in stock", e.Available)
	}
	return fmt.Sprintf("Only %d items available in stock", e.Available)
}

// Cart is the single cart of a customer.
type Cart struct {
	ID         int64
	CustomerID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Item is one product line of a cart.
type Item struct {
	ID         int64
	CartID     int64
	CustomerID int64
	ProductID  int64
	Quantity   int
	CreatedAt  time.Time
}

// Line is an item joined with its current product.
type Line struct {
	Item
	Product product.Product
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// View is the cart with its lines and totals.
type View struct {
	Cart       *Cart
	Lines      []Line
	TotalItems int
	TotalPrice decimal.Decimal
}

// Repository persists carts and their items.
type Repository interface {
	GetByCustomer(ctx context.Context, customerID int64) (*Cart, error)
	// Ensure returns the customer's cart, creating it when missing.
	Ensure(ctx context.Context, customerID int64) (*Cart, error)
	Items(ctx context.Context, cartID int64) ([]Item, error)
	FindItem(ctx context.Context, cartID, productID int64) (*Item, error)
	// GetItem returns an item with CustomerID filled from its cart.
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	AddItem(ctx context.Context, it *Item) error
	SetQuantity(ctx context.Context, itemID int64, qty int) error
	DeleteItem(ctx context.Context, itemID int64) error
	Clear(ctx context.Context, cartID int64) error
}

// Products is the product lookup the cart needs.
type Products interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
}
