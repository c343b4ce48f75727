// Package category manages product categories.
package category

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/pkg/nullable"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrNameTaken = errors.New("category name already exists")
	ErrEmptyName = errors.New("category name is required")
)

// Category groups products.
type Category struct {
	ID          int64
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Patch is a partial update.
type Patch struct {
	Name        nullable.Value[string]
	Description nullable.Value[string]
}

// Repository persists categories. Create and Update return ErrNameTaken on a
// duplicate name.
type Repository interface {
	Create(ctx context.Context, c *Category) error
	GetByID(ctx context.Context, id int64) (*Category, error)
	GetByName(ctx context.Context, name string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
}

// Service implements category management.
type Service struct {
	repo Repository
}

// NewService creates a category Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add creates a category.
func (s *Service) Add(ctx context.Context, c *Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return ErrEmptyName
	}
	return s.repo.Create(ctx, c)
}

// GetByName finds a category by its exact name.
func (s *Service) GetByName(ctx context.Context, name string) (*Category, error) {
	return s.repo.GetByName(ctx, strings.TrimSpace(name))
}

// List returns every category ordered by name.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*Category, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.V)
		if patch.Name.Null || name == "" {
			return nil, ErrEmptyName
		}
		c.Name = name
	}
	patch.Description.Apply(&c.Description)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category. Its products are kept without a category.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete category %d", id)
	}
	return nil
}
