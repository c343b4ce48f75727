// Package file manages object storage keys: uploads for profile and product
// images, presigned downloads and owner-scoped deletion.
package file

import (
	"context"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/buzzer/internal/domain/auth"
)

// MaxImageSize bounds a single uploaded image.
const MaxImageSize = 5 << 20

const maxDeleteBatch = 1000

var (
	ErrForbidden       = errors.New("you don't have permission to access this file")
	ErrUnsupportedType = errors.New("only jpeg, png and webp images are allowed")
	ErrTooLarge        = errors.New("file is too large")
	ErrEmptyKey        = errors.New("file key is required")
	ErrTooManyKeys     = errors.New("at most 1000 keys can be deleted at once")
)

var imageExtByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is a file received from a client.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// Store is an object storage backend.
type Store interface {
	Put(ctx context.Context, key string, u Upload) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string, quiet bool) error
}

// ImageExt validates an image upload and returns the key extension for it.
func ImageExt(u Upload) (string, error) {
	if u.Size > MaxImageSize {
		return "", ErrTooLarge
	}
	ext, ok := imageExtByContentType[strings.ToLower(u.ContentType)]
	if !ok {
		return "", ErrUnsupportedType
	}
	return ext, nil
}

// ProfileImageKey builds the key of a new profile image for the principal.
func ProfileImageKey(p auth.Principal, ext string) string {
	return p.Prefix() + "profileImage/" + uuid.NewString() + ext
}

// ProductImageKey builds the key of a new product image owned by a vendor.
func ProductImageKey(vendor auth.Principal, ext string) string {
	return vendor.Prefix() + "productImages/" + uuid.NewString() + ext
}

// OwnedBy reports whether key lives under the principal's prefix.
func OwnedBy(p auth.Principal, key string) bool {
	return strings.HasPrefix(key, p.Prefix())
}

// Service exposes storage operations on behalf of an authenticated caller.
type Service struct {
	store Store
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// URL returns a presigned download URL for key.
func (s *Service) URL(ctx context.Context, key string) (string, error) {
	key = cleanKey(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	url, err := s.store.PresignGet(ctx, key)
	if err != nil {
		return "", errors.Wrapf(err, "presign %q", key)
	}
	return url, nil
}

// Delete removes key. Admins may delete any key, everyone else only keys
// under their own prefix.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, key string) error {
	key = cleanKey(key)
	if key == "" {
		return ErrEmptyKey
	}
	if !canDelete(caller, key) {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// DeleteMany removes up to 1000 keys in one request under the same
// ownership rule as Delete.
func (s *Service) DeleteMany(ctx context.Context, caller auth.Principal, keys []string, quiet bool) error {
	if len(keys) > maxDeleteBatch {
		return ErrTooManyKeys
	}
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		k = cleanKey(k)
		if k == "" {
			return ErrEmptyKey
		}
		if !canDelete(caller, k) {
			return errors.Wrapf(ErrForbidden, "%q", k)
		}
		cleaned = append(cleaned, k)
	}
	if len(cleaned) == 0 {
		return ErrEmptyKey
	}
	if err := s.store.DeleteMany(ctx, cleaned, quiet); err != nil {
		return errors.Wrap(err, "delete files")
	}
	return nil
}

func canDelete(caller auth.Principal, key string) bool {
	return caller.Role == auth.RoleAdmin || OwnedBy(caller, key)
}

func cleanKey(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if strings.Contains(key, "..") {
		return ""
	}
	return key
}
