// Package coupon implements discount coupons: admin management and the
// discount computation applied at checkout.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/pagination"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the order amount, optionally
	// capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off the order.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	ErrNotFound          = errors.New("coupon not found")
	ErrInactive          = errors.New("this coupon is not active")
	ErrExpired           = errors.New("this coupon has expired")
	ErrUsageLimitReached = errors.New("this coupon has reached its usage limit")
	ErrCodeTaken         = errors.New("coupon code already exists")
	ErrInUse             = errors.New("cannot delete coupon that has been used in orders")
	ErrInvalidCode       = errors.New("coupon code must be 1 to 50 characters")
	ErrInvalidType       = errors.New("discount type must be percentage or fixed")
	ErrInvalidValue      = errors.New("discount value must be greater than 0")
	ErrPercentageTooHigh = errors.New("percentage discount cannot exceed 100")
)

// MinOrderAmountError is returned when the order is below the coupon's
// minimum amount.
type MinOrderAmountError struct {
	Min decimal.Decimal
}

func (e *MinOrderAmountError) Error() string {
	return fmt.Sprintf("Minimum order amount of %s required to use this coupon", e.Min.StringFixed(2))
}

// Coupon is a discount rule.
type Coupon struct {
	ID             int64
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	MaxDiscount    *decimal.Decimal
	MinOrderAmount *decimal.Decimal
	ExpiresAt      *time.Time
	UsageLimit     *int
	UsedCount      int
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Discount is the result of applying a coupon to an order amount.
type Discount struct {
	CouponID int64
	Code     string
	Amount   decimal.Decimal
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id int64) (*Coupon, error)
	// GetByCode matches the code case-insensitively.
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, p pagination.Params) ([]Coupon, int, error)
	Update(ctx context.Context, c *Coupon) error
	// Delete returns ErrInUse when an order references the coupon.
	Delete(ctx context.Context, id int64) error
	// RecordRedemption links the coupon to an order and increments its usage
	// counter. With enforceLimit set it returns ErrUsageLimitReached when the
	// limit is already exhausted.
	RecordRedemption(ctx context.Context, couponID, orderID int64, enforceLimit bool) error
}
