package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/file"
)

// Service implements catalog management.
type Service struct {
	repo  Repository
	files file.Store
}

// NewService creates a product Service.
func NewService(repo Repository, files file.Store) *Service {
	return &Service{repo: repo, files: files}
}

func validate(p *Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return ErrEmptyName
	case !p.Price.IsPositive():
		return ErrInvalidPrice
	case p.AvailableQuantity < 0:
		return ErrInvalidStock
	}
	return nil
}

// Add creates a product owned by vendor. Images are uploaded first and
// removed again when the insert fails.
func (s *Service) Add(ctx context.Context, vendor auth.Principal, p *Product, images []file.Upload) error {
	if !vendor.Role.IsVendor() {
		return ErrNotVendor
	}
	p.Vendor = vendor
	p.Name = strings.TrimSpace(p.Name)
	if err := validate(p); err != nil {
		return err
	}
	keys, err := s.upload(ctx, vendor, images)
	if err != nil {
		return err
	}
	p.Images = keys
	if err := s.repo.Create(ctx, p); err != nil {
		s.discard(ctx, keys)
		return errors.Wrap(err, "create product")
	}
	return nil
}

func (s *Service) upload(ctx context.Context, vendor auth.Principal, images []file.Upload) ([]string, error) {
	if len(images) > MaxImages {
		return nil, ErrTooManyImages
	}
	exts := make([]string, len(images))
	for i, img := range images {
		ext, err := file.ImageExt(img)
		if err != nil {
			return nil, err
		}
		exts[i] = ext
	}
	keys := make([]string, 0, len(images))
	for i, img := range images {
		key := file.ProductImageKey(vendor, exts[i])
		if err := s.files.Put(ctx, key, img); err != nil {
			s.discard(ctx, keys)
			return nil, errors.Wrap(err, "upload product image")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := s.files.DeleteMany(ctx, keys, true); err != nil {
		zctx.From(ctx).Warn("Failed to delete product images", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of products and the total matching count.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, int, error) {
	f.Page = f.Page.Normalize()
	return s.repo.List(ctx, f)
}

// Update applies a partial update. Supplied images replace the current ones.
func (s *Service) Update(ctx context.Context, caller auth.Principal, id int64, patch Patch, images []file.Upload) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Vendor != caller {
		return nil, ErrForbidden
	}

	patch.CategoryID.Apply(&p.CategoryID)
	patch.Description.Apply(&p.Description)
	if v := patch.Name.Ptr(); v != nil {
		p.Name = strings.TrimSpace(*v)
	}
	if v := patch.Price.Ptr(); v != nil {
		p.Price = *v
	}
	if v := patch.IsAvailable.Ptr(); v != nil {
		p.IsAvailable = *v
	}
	quantity := patch.AvailableQuantity.Ptr()
	if quantity != nil {
		p.AvailableQuantity = *quantity
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	old := p.Images
	var fresh []string
	if len(images) > 0 {
		if fresh, err = s.upload(ctx, caller, images); err != nil {
			return nil, err
		}
		p.Images = fresh
	}
	if err := s.repo.Update(ctx, p, quantity); err != nil {
		s.discard(ctx, fresh)
		return nil, errors.Wrap(err, "update product")
	}
	if fresh != nil {
		s.discard(ctx, old)
	}
	return p, nil
}

// Delete removes a product. Only its vendor or an admin may delete it.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id int64) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Vendor != caller && caller.Role != auth.RoleAdmin {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}
	s.discard(ctx, p.Images)
	return nil
}
