// Package address manages delivery addresses owned by any account.
package address

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/pkg/nullable"
)

// ErrNotFound is returned for missing addresses and addresses owned by
// someone else.
var ErrNotFound = errors.New("address not found")

// Address is a delivery address.
type Address struct {
	ID        int64
	Owner     auth.Principal
	Label     *string
	City      string
	Area      *string
	Street    *string
	Building  *string
	Floor     *string
	Apartment *string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch is a partial update. Optional text fields can be cleared.
type Patch struct {
	Label     nullable.Value[string]
	City      nullable.Value[string]
	Area      nullable.Value[string]
	Street    nullable.Value[string]
	Building  nullable.Value[string]
	Floor     nullable.Value[string]
	Apartment nullable.Value[string]
	IsDefault nullable.Value[bool]
}

// Apply merges the patch into a.
func (p Patch) Apply(a *Address) {
	p.Label.Apply(&a.Label)
	p.Area.Apply(&a.Area)
	p.Street.Apply(&a.Street)
	p.Building.Apply(&a.Building)
	p.Floor.Apply(&a.Floor)
	p.Apartment.Apply(&a.Apartment)
	if p.City.Set && !p.City.Null {
		a.City = p.City.V
	}
	if p.IsDefault.Set && !p.IsDefault.Null {
		a.IsDefault = p.IsDefault.V
	}
}

// Repository persists addresses. Lookups are scoped to the owner.
type Repository interface {
	Create(ctx context.Context, a *Address) error
	Get(ctx context.Context, owner auth.Principal, id int64) (*Address, error)
	List(ctx context.Context, owner auth.Principal) ([]Address, error)
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, owner auth.Principal, id int64) error
	ClearDefault(ctx context.Context, owner auth.Principal) error
}

// Transactor runs fn in a database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
