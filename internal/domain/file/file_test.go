package file

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/buzzer/internal/domain/auth"
)

type mockStore struct {
	deleted   []string
	batch     []string
	presigned string
}

func (m *mockStore) Put(_ context.Context, _ string, _ Upload) error { return nil }

func (m *mockStore) PresignGet(_ context.Context, key string) (string, error) {
	m.presigned = key
	return "https://files.example/" + key + "?sig=1", nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStore) DeleteMany(_ context.Context, keys []string, _ bool) error {
	m.batch = keys
	return nil
}

func TestImageExt(t *testing.T) {
	tests := []struct {
		name    string
		upload  Upload
		want    string
		wantErr error
	}{
		{name: "jpeg", upload: Upload{ContentType: "image/jpeg", Size: 10}, want: ".jpg"},
		{name: "png upper case", upload: Upload{ContentType: "IMAGE/PNG", Size: 10}, want: ".png"},
		{name: "gif rejected", upload: Upload{ContentType: "image/gif", Size: 10}, wantErr: ErrUnsupportedType},
		{name: "too large", upload: Upload{ContentType: "image/webp", Size: MaxImageSize + 1}, wantErr: ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ImageExt(tt.upload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeys(t *testing.T) {
	cafe := auth.Principal{ID: 5, Role: auth.RoleCafe}

	key := ProfileImageKey(cafe, ".png")
	assert.True(t, strings.HasPrefix(key, "cafes/5/profileImage/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.True(t, OwnedBy(cafe, key))

	productKey := ProductImageKey(cafe, ".jpg")
	assert.True(t, strings.HasPrefix(productKey, "cafes/5/productImages/"))
	assert.False(t, OwnedBy(auth.Principal{ID: 55, Role: auth.RoleCafe}, productKey))
}

func TestService_URL(t *testing.T) {
	store := &mockStore{}
	svc := NewService(store)

	url, err := svc.URL(context.Background(), "/customers/1/profileImage/a.png")
	require.NoError(t, err)
	assert.Equal(t, "customers/1/profileImage/a.png", store.presigned)
	assert.Contains(t, url, "sig=1")

	_, err = svc.URL(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestService_Delete(t *testing.T) {
	customer := auth.Principal{ID: 1, Role: auth.RoleCustomer}
	admin := auth.Principal{ID: 9, Role: auth.RoleAdmin}

	tests := []struct {
		name    string
		caller  auth.Principal
		key     string
		wantErr error
	}{
		{name: "own key", caller: customer, key: "customers/1/profileImage/x.png"},
		{name: "foreign key", caller: customer, key: "customers/2/profileImage/x.png", wantErr: ErrForbidden},
		{name: "admin any key", caller: admin, key: "cafes/3/productImages/y.jpg"},
		{name: "path traversal", caller: customer, key: "customers/1/../2/x.png", wantErr: ErrEmptyKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			err := NewService(store).Delete(context.Background(), tt.caller, tt.key)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, store.deleted)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.key}, store.deleted)
		})
	}
}

func TestService_DeleteMany(t *testing.T) {
	vendor := auth.Principal{ID: 4, Role: auth.RoleRestaurant}
	store := &mockStore{}
	svc := NewService(store)

	err := svc.DeleteMany(context.Background(), vendor, []string{
		"restaurants/4/productImages/a.jpg",
		"restaurants/4/productImages/b.jpg",
	}, true)
	require.NoError(t, err)
	assert.Len(t, store.batch, 2)

	err = svc.DeleteMany(context.Background(), vendor, []string{
		"restaurants/4/productImages/a.jpg",
		"cafes/4/productImages/b.jpg",
	}, false)
	require.ErrorIs(t, err, ErrForbidden)

	err = svc.DeleteMany(context.Background(), vendor, nil, false)
	require.ErrorIs(t, err, ErrEmptyKey)

	err = svc.DeleteMany(context.Background(), vendor, make([]string, 1001), false)
	require.ErrorIs(t, err, ErrTooManyKeys)
}
