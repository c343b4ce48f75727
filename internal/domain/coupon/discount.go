package coupon

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Check verifies that c can be used for an order of amount at now.
func Check(c *Coupon, amount decimal.Decimal, now time.Time) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if c.MinOrderAmount != nil && amount.LessThan(*c.MinOrderAmount) {
		return &MinOrderAmountError{Min: *c.MinOrderAmount}
	}
	return nil
}

// Apply checks c against the order amount and computes the discount. The
// discount never exceeds amount and is rounded to cents.
func Apply(c *Coupon, amount decimal.Decimal, now time.Time) (Discount, error) {
	if err := Check(c, amount, now); err != nil {
		return Discount{}, err
	}

	var off decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		off = amount.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil && off.GreaterThan(*c.MaxDiscount) {
			off = *c.MaxDiscount
		}
	case DiscountFixed:
		off = c.DiscountValue
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}

	off = decimal.Min(off, amount)
	if off.IsNegative() {
		off = decimal.Zero
	}
	return Discount{CouponID: c.ID, Code: c.Code, Amount: off.Round(2)}, nil
}
