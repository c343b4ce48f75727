// Package product implements the vendor product catalog and its stock.
package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/pkg/nullable"
)

// MaxImages is the number of images a product may carry.
const MaxImages = 3

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound      = errors.New("product not found")
	ErrForbidden     = errors.New("product belongs to another vendor")
	ErrNotVendor     = errors.New("only cafes and restaurants can own products")
	ErrNotAvailable  = errors.New("product is not available")
	ErrOutOfStock    = errors.New("not enough stock")
	ErrTooManyImages = errors.New("a product can have at most 3 images")
	ErrInvalidPrice  = errors.New("price must be greater than 0")
	ErrInvalidStock  = errors.New("available quantity must not be negative")
	ErrEmptyName     = errors.New("product name is required")
)

// Product is a catalog item owned by a cafe or a restaurant.
type Product struct {
	ID                int64
	CategoryID        *int64
	Vendor            auth.Principal
	Name              string
	Description       *string
	Price             decimal.Decimal
	IsAvailable       bool
	AvailableQuantity int
	Images            []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanSell reports whether qty units can be sold right now.
func (p *Product) CanSell(qty int) bool {
	return p.IsAvailable && p.AvailableQuantity >= qty
}

// Filter narrows a product listing.
type Filter struct {
	CategoryID *int64
	VendorType *auth.Role
	VendorID   *int64
	Page       pagination.Params
}

// Patch is a partial update.
type Patch struct {
	CategoryID        nullable.Value[int64]
	Name              nullable.Value[string]
	Description       nullable.Value[string]
	Price             nullable.Value[decimal.Decimal]
	IsAvailable       nullable.Value[bool]
	AvailableQuantity nullable.Value[int]
}

// Repository persists products.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	List(ctx context.Context, f Filter) ([]Product, int, error)
	// Update writes p. The stock is replaced only when quantity is set;
	// otherwise the stored stock is kept and read back into p.
	Update(ctx context.Context, p *Product, quantity *int) error
	Delete(ctx context.Context, id int64) error
	// DecrementStock subtracts qty when at least qty units are available and
	// returns ErrOutOfStock otherwise.
	DecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error
}
