package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/product"
)

const (
	productColumns = `id, category_id, cafe_id, restaurant_id, name, description, price,
		is_available, available_quantity, images, created_at, updated_at`

	createProductSQL = `INSERT INTO products
		(category_id, cafe_id, restaurant_id, name, description, price, is_available, available_quantity, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	getProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	updateProductSQL = `UPDATE products SET
		category_id = $2, name = $3, description = $4, price = $5, is_available = $6,
		available_quantity = COALESCE($7, available_quantity), images = $8, updated_at = now()
		WHERE id = $1 RETURNING available_quantity, updated_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET available_quantity = available_quantity - $2, updated_at = now()
		WHERE id = $1 AND available_quantity >= $2`
	incrementStockSQL = `UPDATE products SET available_quantity = available_quantity + $2, updated_at = now()
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p            product.Product
		cafeID       *int64
		restaurantID *int64
	)
	err := row.Scan(
		&p.ID, &p.CategoryID, &cafeID, &restaurantID, &p.Name, &p.Description, &p.Price,
		&p.IsAvailable, &p.AvailableQuantity, &p.Images, &p.CreatedAt, &p.UpdatedAt,
	)
	switch {
	case cafeID != nil:
		p.Vendor = auth.Principal{ID: *cafeID, Role: auth.RoleCafe}
	case restaurantID != nil:
		p.Vendor = auth.Principal{ID: *restaurantID, Role: auth.RoleRestaurant}
	}
	return p, err
}

func vendorColumns(v auth.Principal) (cafeID, restaurantID *int64) {
	id := v.ID
	if v.Role == auth.RoleCafe {
		return &id, nil
	}
	return nil, &id
}

// Create inserts p.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	cafeID, restaurantID := vendorColumns(p.Vendor)
	images := p.Images
	if images == nil {
		images = []string{}
	}
	err := r.db.conn(ctx).QueryRow(ctx, createProductSQL,
		p.CategoryID, cafeID, restaurantID, p.Name, p.Description, p.Price,
		p.IsAvailable, p.AvailableQuantity, images,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	p, err := collectOne(rows, scanProduct, product.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// productFilter renders the WHERE clause of a listing.
func productFilter(f product.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*f.CategoryID))
	}
	switch {
	case f.VendorType != nil && *f.VendorType == auth.RoleCafe:
		if f.VendorID != nil {
			conds = append(conds, "cafe_id = "+arg(*f.VendorID))
		} else {
			conds = append(conds, "cafe_id IS NOT NULL")
		}
	case f.VendorType != nil && *f.VendorType == auth.RoleRestaurant:
		if f.VendorID != nil {
			conds = append(conds, "restaurant_id = "+arg(*f.VendorID))
		} else {
			conds = append(conds, "restaurant_id IS NOT NULL")
		}
	case f.VendorID != nil:
		p := arg(*f.VendorID)
		conds = append(conds, "(cafe_id = "+p+" OR restaurant_id = "+p+")")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of products, newest first, and the total match count.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, int, error) {
	where, args := productFilter(f)
	page := f.Page.Normalize()

	var total int
	if err := r.db.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	n := len(args)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	rows, err := r.db.conn(ctx).Query(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return products, total, nil
}

// Update overwrites the mutable columns of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product, quantity *int) error {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	err := r.db.conn(ctx).QueryRow(ctx, updateProductSQL,
		p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.IsAvailable, quantity, images,
	).Scan(&p.AvailableQuantity, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return product.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes the product.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// DecrementStock subtracts qty only when enough units are available.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	tag, err := r.db.conn(ctx).Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrOutOfStock
	}
	return nil
}

// IncrementStock returns qty units to the product. A deleted product is
// skipped.
func (r *ProductRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	if _, err := r.db.conn(ctx).Exec(ctx, incrementStockSQL, id, qty); err != nil {
		return fmt.Errorf("incrementing stock of product %d: %w", id, err)
	}
	return nil
}
