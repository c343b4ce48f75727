package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a coupon code against an order amount and returns the
// computed discount.
type Validator interface {
	Validate(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupons from a Repository
// and applying them via the Apply function. Usage is recorded by the order
// transaction, not here.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon for code and applies it to amount.
func (v *RepoValidator) Validate(ctx context.Context, code string, amount decimal.Decimal) (*Discount, error) {
	c, err := v.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	d, err := Apply(c, amount, v.now())
	if err != nil {
		return nil, err
	}
	return &d, nil
}
