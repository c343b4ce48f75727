package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/category"
)

const (
	categoryColumns = `id, name, description, created_at, updated_at`

	createCategorySQL = `INSERT INTO categories (name, description) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`
	getCategoryByIDSQL   = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	getCategoryByNameSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE name = $1`
	listCategoriesSQL    = `SELECT ` + categoryColumns + ` FROM categories ORDER BY name`
	updateCategorySQL    = `UPDATE categories SET name = $2, description = $3, updated_at = now()
		WHERE id = $1 RETURNING updated_at`
	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`

	categoryNameKey = "categories_name_key"
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository returns a CategoryRepository.
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func scanCategory(row pgx.CollectableRow) (category.Category, error) {
	var c category.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create inserts c.
func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	err := r.db.conn(ctx).QueryRow(ctx, createCategorySQL, c.Name, c.Description).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err, categoryNameKey) {
		return category.ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	return nil
}

func (r *CategoryRepository) getOne(ctx context.Context, query string, arg any) (*category.Category, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting category %v: %w", arg, err)
	}
	c, err := collectOne(rows, scanCategory, category.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting category %v: %w", arg, err)
	}
	return c, nil
}

// GetByID returns the category with id.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	return r.getOne(ctx, getCategoryByIDSQL, id)
}

// GetByName returns the category with the exact name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*category.Category, error) {
	return r.getOne(ctx, getCategoryByNameSQL, name)
}

// List returns every category ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, scanCategory)
}

// Update overwrites c.
func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	err := r.db.conn(ctx).QueryRow(ctx, updateCategorySQL, c.ID, c.Name, c.Description).Scan(&c.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return category.ErrNotFound
	case isUniqueViolation(err, categoryNameKey):
		return category.ErrNameTaken
	case err != nil:
		return fmt.Errorf("updating category %d: %w", c.ID, err)
	}
	return nil
}

// Delete removes the category; its products keep existing uncategorized.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return category.ErrNotFound
	}
	return nil
}
