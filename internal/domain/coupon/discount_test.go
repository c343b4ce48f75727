package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr[T any](v T) *T { return &v }

func TestApply(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		coupon     *Coupon
		amount     decimal.Decimal
		wantAmount decimal.Decimal
		wantErr    error
		wantMin    string
	}{
		{
			name:       "percentage 18% off 100",
			coupon:     &Coupon{DiscountType: DiscountPercentage, DiscountValue: d("18"), IsActive: true},
			amount:     d("100"),
			wantAmount: d("18"),
		},
		{
			name:       "percentage rounds to cents",
			coupon:     &Coupon{DiscountType: DiscountPercentage, DiscountValue: d("15"), IsActive: true},
			amount:     d("33.33"),
			wantAmount: d("5"),
		},
		{
			name: "percentage capped by max discount",
			coupon: &Coupon{
				DiscountType: DiscountPercentage, DiscountValue: d("50"),
				MaxDiscount: ptr(d("20")), IsActive: true,
			},
			amount:     d("100"),
			wantAmount: d("20"),
		},
		{
			name: "max discount ignored for fixed",
			coupon: &Coupon{
				DiscountType: DiscountFixed, DiscountValue: d("30"),
				MaxDiscount: ptr(d("10")), IsActive: true,
			},
			amount:     d("100"),
			wantAmount: d("30"),
		},
		{
			name:       "fixed capped at order amount",
			coupon:     &Coupon{DiscountType: DiscountFixed, DiscountValue: d("50"), IsActive: true},
			amount:     d("12.40"),
			wantAmount: d("12.40"),
		},
		{
			name:       "percentage 100% equals amount",
			coupon:     &Coupon{DiscountType: DiscountPercentage, DiscountValue: d("100"), IsActive: true},
			amount:     d("80"),
			wantAmount: d("80"),
		},
		{
			name:    "inactive",
			coupon:  &Coupon{DiscountType: DiscountFixed, DiscountValue: d("5")},
			amount:  d("100"),
			wantErr: ErrInactive,
		},
		{
			name: "expired",
			coupon: &Coupon{
				DiscountType: DiscountFixed, DiscountValue: d("5"), IsActive: true,
				ExpiresAt: ptr(now.Add(-time.Minute)),
			},
			amount:  d("100"),
			wantErr: ErrExpired,
		},
		{
			name: "expires exactly now is still valid",
			coupon: &Coupon{
				DiscountType: DiscountFixed, DiscountValue: d("5"), IsActive: true,
				ExpiresAt: ptr(now),
			},
			amount:     d("100"),
			wantAmount: d("5"),
		},
		{
			name: "usage limit reached",
			coupon: &Coupon{
				DiscountType: DiscountFixed, DiscountValue: d("5"), IsActive: true,
				UsageLimit: ptr(3), UsedCount: 3,
			},
			amount:  d("100"),
			wantErr: ErrUsageLimitReached,
		},
		{
			name: "below minimum order amount",
			coupon: &Coupon{
				DiscountType: DiscountFixed, DiscountValue: d("5"), IsActive: true,
				MinOrderAmount: ptr(d("50")),
			},
			amount:  d("49.99"),
			wantMin: "Minimum order amount of 50.00 required to use this coupon",
		},
		{
			name: "inactive wins over expired",
			coupon: &Coupon{
				DiscountType: DiscountFixed, DiscountValue: d("5"),
				ExpiresAt: ptr(now.Add(-time.Hour)),
			},
			amount:  d("100"),
			wantErr: ErrInactive,
		},
		{
			name:   "unsupported type",
			coupon: &Coupon{DiscountType: "bogus", DiscountValue: d("5"), IsActive: true},
			amount: d("100"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.coupon, tt.amount, now)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantMin != "":
				var minErr *MinOrderAmountError
				require.ErrorAs(t, err, &minErr)
				assert.Equal(t, tt.wantMin, minErr.Error())
			case !tt.coupon.DiscountType.Valid():
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported discount type")
			default:
				require.NoError(t, err)
				assert.True(t, tt.wantAmount.Equal(got.Amount), "want %s, got %s", tt.wantAmount, got.Amount)
			}
		})
	}
}
