package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/pkg/nullable"
)

const maxCodeLen = 50

// Patch is a partial coupon update. Optional limits can be cleared with null.
type Patch struct {
	Code           nullable.Value[string]
	DiscountType   nullable.Value[DiscountType]
	DiscountValue  nullable.Value[decimal.Decimal]
	MaxDiscount    nullable.Value[decimal.Decimal]
	MinOrderAmount nullable.Value[decimal.Decimal]
	ExpiresAt      nullable.Value[time.Time]
	UsageLimit     nullable.Value[int]
	IsActive       nullable.Value[bool]
}

// Service implements coupon administration.
type Service struct {
	repo Repository
}

// NewService creates a coupon Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Validate checks the static shape of a coupon.
func Validate(c *Coupon) error {
	if n := len(c.Code); n == 0 || n > maxCodeLen {
		return ErrInvalidCode
	}
	if !c.DiscountType.Valid() {
		return ErrInvalidType
	}
	if !c.DiscountValue.IsPositive() {
		return ErrInvalidValue
	}
	if c.DiscountType == DiscountPercentage && c.DiscountValue.GreaterThan(hundred) {
		return ErrPercentageTooHigh
	}
	return nil
}

// Add creates a coupon.
func (s *Service) Add(ctx context.Context, c *Coupon) error {
	c.Code = strings.TrimSpace(c.Code)
	if err := Validate(c); err != nil {
		return err
	}
	return s.repo.Create(ctx, c)
}

// Get returns a coupon by id.
func (s *Service) Get(ctx context.Context, id int64) (*Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of coupons, newest first.
func (s *Service) List(ctx context.Context, p pagination.Params) ([]Coupon, int, error) {
	return s.repo.List(ctx, p.Normalize())
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Code.Set {
		c.Code = strings.TrimSpace(patch.Code.V)
	}
	if v := patch.DiscountType.Ptr(); v != nil {
		c.DiscountType = *v
	}
	if v := patch.DiscountValue.Ptr(); v != nil {
		c.DiscountValue = *v
	}
	if v := patch.IsActive.Ptr(); v != nil {
		c.IsActive = *v
	}
	patch.MaxDiscount.Apply(&c.MaxDiscount)
	patch.MinOrderAmount.Apply(&c.MinOrderAmount)
	patch.ExpiresAt.Apply(&c.ExpiresAt)
	patch.UsageLimit.Apply(&c.UsageLimit)

	if err := Validate(c); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a coupon that was never redeemed.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
