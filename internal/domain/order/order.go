// Package order implements order placement from the customer's cart and the
// order lifecycle that follows.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/internal/domain/product"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

var (
	ErrNotFound      = errors.New("order not found")
	ErrForbidden     = errors.New("you don't have permission to view this order")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrNotesTooLong  = errors.New("notes must be at most 500 characters")
	ErrNoItems       = errors.New("order has no items")
)

// Unfulfillable reports whether err means the items can no longer be
// delivered, as opposed to a transient failure worth retrying.
func Unfulfillable(err error) bool {
	var stockErr *InsufficientStockError
	return errors.As(err, &stockErr) ||
		errors.Is(err, ErrNoItems) ||
		errors.Is(err, product.ErrNotFound) ||
		errors.Is(err, product.ErrNotAvailable) ||
		errors.Is(err, product.ErrOutOfStock)
}

// InsufficientStockError indicates a cart line exceeds the product's stock.
type InsufficientStockError struct {
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %q. Only %d available", e.Name, e.Available)
}

// StatusConflictError rejects a change of an order in the given status.
type StatusConflictError struct {
	Status Status
	Cancel bool
}

func (e *StatusConflictError) Error() string {
	if e.Cancel {
		return fmt.Sprintf("Cannot cancel order with status %q. Only pending orders can be cancelled.", e.Status)
	}
	return fmt.Sprintf("Cannot update order with status %q", e.Status)
}

// Order is a placed order with its line snapshot.
type Order struct {
	ID             int64
	CustomerID     int64
	AddressID      *int64
	PaymentID      *int64
	Status         Status
	Notes          *string
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponCode     *string
	Items          []Item
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item snapshots a product at the time the order was placed. ProductID is
// nil once the product is deleted.
type Item struct {
	ID         int64
	OrderID    int64
	ProductID  *int64
	Name       string
	Price      decimal.Decimal
	Quantity   int
	VendorType auth.Role
	VendorID   int64
}

// ListFilter narrows an order listing. A nil CustomerID lists every order.
type ListFilter struct {
	CustomerID *int64
	Status     *Status
	Page       pagination.Params
}

// Repository persists orders.
type Repository interface {
	// Create inserts the order and its items, filling their ids.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByPaymentID(ctx context.Context, paymentID int64) (*Order, error)
	// List returns orders newest first with their items.
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	// SetStatus moves the order to status when its current status is one
	// of from. It returns ErrNotFound for a missing order and a
	// *StatusConflictError when the order is in any other status.
	SetStatus(ctx context.Context, id int64, status Status, from ...Status) error
}

// openStatuses lists the statuses an order can still leave. Cancelled and
// refunded orders are final.
var openStatuses = []Status{StatusPending, StatusPaid}

// Carts is the cart access needed to turn a cart into an order.
type Carts interface {
	GetByCustomer(ctx context.Context, customerID int64) (*cart.Cart, error)
	Items(ctx context.Context, cartID int64) ([]cart.Item, error)
	Clear(ctx context.Context, cartID int64) error
}

// Stock is the product access needed for stock bookkeeping.
type Stock interface {
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
	DecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error
}

// Addresses resolves owned addresses.
type Addresses interface {
	Get(ctx context.Context, owner auth.Principal, id int64) (*address.Address, error)
}

// Redemptions records coupon usage.
type Redemptions interface {
	GetByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	RecordRedemption(ctx context.Context, couponID, orderID int64, enforceLimit bool) error
}

// Transactor runs fn in a database transaction. Nested calls run in a
// savepoint of the outer transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
