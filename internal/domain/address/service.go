package address

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/internal/domain/auth"
)

// Service implements address management.
type Service struct {
	repo Repository
	tx   Transactor
}

// NewService creates an address Service.
func NewService(repo Repository, tx Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

// Add stores a new address. A default address replaces the previous default.
func (s *Service) Add(ctx context.Context, a *Address) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if a.IsDefault {
			if err := s.repo.ClearDefault(ctx, a.Owner); err != nil {
				return errors.Wrap(err, "clear default")
			}
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return errors.Wrap(err, "create address")
		}
		return nil
	})
}

// Get returns an address owned by owner.
func (s *Service) Get(ctx context.Context, owner auth.Principal, id int64) (*Address, error) {
	return s.repo.Get(ctx, owner, id)
}

// List returns the owner's addresses, default first.
func (s *Service) List(ctx context.Context, owner auth.Principal) ([]Address, error) {
	return s.repo.List(ctx, owner)
}

// Update applies a partial update to an owned address.
func (s *Service) Update(ctx context.Context, owner auth.Principal, id int64, patch Patch) (*Address, error) {
	var out *Address
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.Get(ctx, owner, id)
		if err != nil {
			return err
		}
		wasDefault := a.IsDefault
		patch.Apply(a)
		if a.IsDefault && !wasDefault {
			if err := s.repo.ClearDefault(ctx, owner); err != nil {
				return errors.Wrap(err, "clear default")
			}
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return errors.Wrap(err, "update address")
		}
		out = a
		return nil
	})
	return out, err
}

// Delete removes an owned address.
func (s *Service) Delete(ctx context.Context, owner auth.Principal, id int64) error {
	return s.repo.Delete(ctx, owner, id)
}

// SetDefault makes the address the owner's only default.
func (s *Service) SetDefault(ctx context.Context, owner auth.Principal, id int64) (*Address, error) {
	var out *Address
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.Get(ctx, owner, id)
		if err != nil {
			return err
		}
		if err := s.repo.ClearDefault(ctx, owner); err != nil {
			return errors.Wrap(err, "clear default")
		}
		a.IsDefault = true
		if err := s.repo.Update(ctx, a); err != nil {
			return errors.Wrap(err, "update address")
		}
		out = a
		return nil
	})
	return out, err
}
