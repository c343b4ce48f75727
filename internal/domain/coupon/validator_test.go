package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/buzzer/internal/domain/pagination"
)

type mockCouponRepo struct {
	byCode    map[string]*Coupon
	err       error
	createErr error
	deleteErr error
	created   *Coupon
	updated   *Coupon
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	if m.createErr != nil {
		return m.createErr
	}
	c.ID = 1
	m.created = c
	return nil
}

func (m *mockCouponRepo) GetByID(_ context.Context, id int64) (*Coupon, error) {
	for _, c := range m.byCode {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockCouponRepo) GetByCode(_ context.Context, code string) (*Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) List(_ context.Context, _ pagination.Params) ([]Coupon, int, error) {
	return nil, 0, nil
}

func (m *mockCouponRepo) Update(_ context.Context, c *Coupon) error {
	m.updated = c
	return nil
}

func (m *mockCouponRepo) Delete(_ context.Context, _ int64) error { return m.deleteErr }

func (m *mockCouponRepo) RecordRedemption(_ context.Context, _, _ int64, _ bool) error { return nil }

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)

	repo := &mockCouponRepo{byCode: map[string]*Coupon{
		"SAVE10": {ID: 4, Code: "SAVE10", DiscountType: DiscountPercentage, DiscountValue: decimal.NewFromInt(10), IsActive: true},
		"OLD":    {ID: 5, Code: "OLD", DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(5), IsActive: true, ExpiresAt: &past},
	}}

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		code       string
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{name: "valid code returns discount", repo: repo, code: " SAVE10 ", wantAmount: decimal.NewFromInt(10)},
		{name: "unknown code", repo: repo, code: "BOGUS", wantErr: ErrNotFound},
		{name: "expired", repo: repo, code: "OLD", wantErr: ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, decimal.NewFromInt(100))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(got.Amount))
			assert.Equal(t, int64(4), got.CouponID)
		})
	}
}

func TestRepoValidator_RepoError(t *testing.T) {
	v := NewRepoValidator(&mockCouponRepo{err: errors.New("connection refused")})

	_, err := v.Validate(context.Background(), "ANY", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
	assert.NotErrorIs(t, err, ErrNotFound)
}
