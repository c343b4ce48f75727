package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/address"
	"github.com/xenking/buzzer/internal/domain/auth"
)

const (
	addressColumns = `id, user_type, user_id, label, city, area, street, building, floor, apartment,
		is_default, created_at, updated_at`

	createAddressSQL = `INSERT INTO addresses
		(user_type, user_id, label, city, area, street, building, floor, apartment, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	getAddressSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE id = $1 AND user_type = $2 AND user_id = $3`

	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_type = $1 AND user_id = $2 ORDER BY is_default DESC, id`

	updateAddressSQL = `UPDATE addresses SET
		label = $4, city = $5, area = $6, street = $7, building = $8, floor = $9, apartment = $10,
		is_default = $11, updated_at = now()
		WHERE id = $1 AND user_type = $2 AND user_id = $3
		RETURNING updated_at`

	deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND user_type = $2 AND user_id = $3`

	clearDefaultAddressSQL = `UPDATE addresses SET is_default = FALSE, updated_at = now()
		WHERE user_type = $1 AND user_id = $2 AND is_default`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	db *DB
}

// NewAddressRepository returns an AddressRepository.
func NewAddressRepository(db *DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var (
		a    address.Address
		role string
	)
	err := row.Scan(
		&a.ID, &role, &a.Owner.ID, &a.Label, &a.City, &a.Area, &a.Street, &a.Building, &a.Floor,
		&a.Apartment, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Owner.Role = auth.Role(role)
	return a, err
}

// Create inserts a.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	err := r.db.conn(ctx).QueryRow(ctx, createAddressSQL,
		a.Owner.Role, a.Owner.ID, a.Label, a.City, a.Area, a.Street, a.Building, a.Floor, a.Apartment, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating address: %w", err)
	}
	return nil
}

// Get returns an address owned by owner.
func (r *AddressRepository) Get(ctx context.Context, owner auth.Principal, id int64) (*address.Address, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getAddressSQL, id, owner.Role, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}
	a, err := collectOne(rows, scanAddress, address.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}
	return a, nil
}

// List returns the owner's addresses, default first.
func (r *AddressRepository) List(ctx context.Context, owner auth.Principal) ([]address.Address, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listAddressesSQL, owner.Role, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

// Update overwrites an owned address.
func (r *AddressRepository) Update(ctx context.Context, a *address.Address) error {
	err := r.db.conn(ctx).QueryRow(ctx, updateAddressSQL,
		a.ID, a.Owner.Role, a.Owner.ID,
		a.Label, a.City, a.Area, a.Street, a.Building, a.Floor, a.Apartment, a.IsDefault,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return address.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating address %d: %w", a.ID, err)
	}
	return nil
}

// Delete removes an owned address.
func (r *AddressRepository) Delete(ctx context.Context, owner auth.Principal, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteAddressSQL, id, owner.Role, owner.ID)
	if err != nil {
		return fmt.Errorf("deleting address %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

// ClearDefault unsets the owner's default address.
func (r *AddressRepository) ClearDefault(ctx context.Context, owner auth.Principal) error {
	if _, err := r.db.conn(ctx).Exec(ctx, clearDefaultAddressSQL, owner.Role, owner.ID); err != nil {
		return fmt.Errorf("clearing default address: %w", err)
	}
	return nil
}
