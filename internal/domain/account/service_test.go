package account

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/file"
)

// --- Mock implementations ---

type mockRepo struct {
	accounts map[int64]*Account
	nextID   int64
	images   map[int64]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{accounts: map[int64]*Account{}, images: map[int64]string{}}
}

func (m *mockRepo) Create(_ context.Context, a *Account) error {
	m.nextID++
	a.ID = m.nextID
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, role auth.Role, id int64) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.Role != role {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) GetByPhone(_ context.Context, role auth.Role, phone string) (*Account, error) {
	for _, a := range m.accounts {
		if a.Role == role && a.Phone == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByEmail(_ context.Context, role auth.Role, email string) (*Account, error) {
	for _, a := range m.accounts {
		if a.Role == role && a.Email != nil && *a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) UpdateBasicInfo(_ context.Context, role auth.Role, id int64, info BasicInfo) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.Role != role {
		return nil, ErrNotFound
	}
	if info.FullName != nil {
		a.FullName = *info.FullName
	}
	switch {
	case info.Email == nil:
	case *info.Email == "":
		a.Email = nil
	default:
		a.Email = info.Email
	}
	if info.Age != nil {
		a.Age = info.Age
	}
	if info.TelegramChatID != nil {
		a.TelegramChatID = info.TelegramChatID
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) SetProfileImage(_ context.Context, _ auth.Role, id int64, key string) error {
	m.accounts[id].ProfileImage = &key
	return nil
}

func (m *mockRepo) SetCredentialsChangedAt(_ context.Context, _ auth.Role, id int64, at time.Time) error {
	m.accounts[id].CredentialsChangedAt = &at
	return nil
}

func (m *mockRepo) Delete(_ context.Context, _ auth.Role, id int64) error {
	delete(m.accounts, id)
	return nil
}

func (m *mockRepo) ListActive(_ context.Context, role auth.Role) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.Role == role && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

type mockStore struct {
	put     []string
	deleted []string
}

func (m *mockStore) Put(_ context.Context, key string, _ file.Upload) error {
	m.put = append(m.put, key)
	return nil
}

func (m *mockStore) PresignGet(_ context.Context, key string) (string, error) { return key, nil }

func (m *mockStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStore) DeleteMany(_ context.Context, _ []string, _ bool) error { return nil }

// --- Helpers ---

func newTestService(t *testing.T) (*Service, *mockRepo, *mockStore) {
	t.Helper()
	tokens, err := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
	require.NoError(t, err)
	repo := newMockRepo()
	store := &mockStore{}
	return NewService(repo, tokens, store, bcrypt.MinCost), repo, store
}

func register(t *testing.T, svc *Service, role auth.Role, phone string) auth.TokenPair {
	t.Helper()
	pair, err := svc.Register(context.Background(), RegisterRequest{
		Role:     role,
		FullName: "Jane Doe",
		Email:    phone + "@example.com",
		Phone:    phone,
		Password: "password123",
	})
	require.NoError(t, err)
	return pair
}

// --- Tests ---

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+1 555-123-4567", want: "+15551234567"},
		{in: "79991234567", want: "79991234567"},
		{in: "0123456789", wantErr: true},
		{in: "12345", wantErr: true},
		{in: "+1abc5551234", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, auth.RoleCustomer, "+15550000001")

	_, err := svc.Register(ctx, RegisterRequest{
		Role: auth.RoleCustomer, FullName: "Other", Phone: "+15550000001", Password: "password123",
	})
	require.ErrorIs(t, err, ErrPhoneTaken)

	_, err = svc.Register(ctx, RegisterRequest{
		Role: auth.RoleCustomer, FullName: "Other", Email: "+15550000001@EXAMPLE.com",
		Phone: "+15550000002", Password: "password123",
	})
	require.ErrorIs(t, err, ErrEmailTaken)

	// Same phone in another role table is allowed.
	register(t, svc, auth.RoleCafe, "+15550000001")
}

func TestLogin(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, auth.RoleCustomer, "+15550000001")

	pair, err := svc.Login(ctx, LoginRequest{Role: auth.RoleCustomer, Phone: "+1 555 000 0001", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	_, err = svc.Login(ctx, LoginRequest{Role: auth.RoleCustomer, Phone: "+15550000001", Password: "wrong-pass"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Role: auth.RoleCafe, Phone: "+15550000001", Password: "password123"})
	require.ErrorIs(t, err, ErrNotFound)

	repo.accounts[1].IsActive = false
	_, err = svc.Login(ctx, LoginRequest{Role: auth.RoleCustomer, Phone: "+15550000001", Password: "password123"})
	require.ErrorIs(t, err, ErrInactive)
}

func TestAuthenticate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	pair := register(t, svc, auth.RoleRestaurant, "+15550000003")

	a, err := svc.Authenticate(ctx, "Bearer "+pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleRestaurant, a.Role)

	_, err = svc.Authenticate(ctx, "Bearer "+pair.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidBearer)

	access, err := svc.Refresh(ctx, "Bearer "+pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	future := time.Now().Add(time.Minute)
	repo.accounts[a.ID].CredentialsChangedAt = &future
	_, err = svc.Authenticate(ctx, "Bearer "+pair.AccessToken)
	require.ErrorIs(t, err, ErrCredentialsChanged)

	repo.accounts[a.ID].CredentialsChangedAt = nil
	delete(repo.accounts, a.ID)
	_, err = svc.Authenticate(ctx, "Bearer "+pair.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogout(t *testing.T) {
	svc, repo, _ := newTestService(t)
	register(t, svc, auth.RoleCustomer, "+15550000001")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return at }

	require.NoError(t, svc.Logout(context.Background(), auth.Principal{ID: 1, Role: auth.RoleCustomer}))
	require.NotNil(t, repo.accounts[1].CredentialsChangedAt)
	assert.Equal(t, at, *repo.accounts[1].CredentialsChangedAt)
}

func TestUpdateBasicInfo(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, auth.RoleCustomer, "+15550000001")
	register(t, svc, auth.RoleCustomer, "+15550000002")
	p := auth.Principal{ID: 2, Role: auth.RoleCustomer}

	taken := "+15550000001@example.com"
	_, err := svc.UpdateBasicInfo(ctx, p, BasicInfo{Email: &taken})
	require.ErrorIs(t, err, ErrEmailTaken)

	own := "+15550000002@example.com"
	name := "New Name"
	chat := int64(42)
	a, err := svc.UpdateBasicInfo(ctx, p, BasicInfo{Email: &own, FullName: &name, TelegramChatID: &chat})
	require.NoError(t, err)
	assert.Equal(t, "New Name", a.FullName)
	assert.Nil(t, a.TelegramChatID, "customers cannot set a chat id")
	require.NotNil(t, a.Email)

	blank := "  "
	a, err = svc.UpdateBasicInfo(ctx, p, BasicInfo{Email: &blank})
	require.NoError(t, err)
	assert.Nil(t, a.Email, "blank email is stored as null")

	a, err = svc.UpdateBasicInfo(ctx, auth.Principal{ID: 1, Role: auth.RoleCustomer}, BasicInfo{Email: &blank})
	require.NoError(t, err, "a second blank email does not collide")
	assert.Nil(t, a.Email)
}

func TestUploadProfileImage(t *testing.T) {
	svc, repo, store := newTestService(t)
	ctx := context.Background()
	register(t, svc, auth.RoleCafe, "+15550000001")
	p := auth.Principal{ID: 1, Role: auth.RoleCafe}

	_, err := svc.UploadProfileImage(ctx, p, file.Upload{ContentType: "image/gif", Size: 1})
	require.ErrorIs(t, err, file.ErrUnsupportedType)

	first, err := svc.UploadProfileImage(ctx, p, file.Upload{ContentType: "image/png", Size: 1})
	require.NoError(t, err)
	assert.Empty(t, store.deleted)

	second, err := svc.UploadProfileImage(ctx, p, file.Upload{ContentType: "image/jpeg", Size: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{first}, store.deleted)
	assert.Equal(t, second, *repo.accounts[1].ProfileImage)
}

func TestDeleteAccount(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, auth.RoleCafe, "+15550000001")

	err := svc.DeleteAccount(ctx, auth.RoleRestaurant, 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteAccount(ctx, auth.RoleCafe, 1))
	assert.Empty(t, repo.accounts)
}

func TestListVendors(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, auth.RoleCafe, "+15550000001")
	register(t, svc, auth.RoleRestaurant, "+15550000002")

	cafes, err := svc.ListVendors(context.Background(), auth.RoleCafe)
	require.NoError(t, err)
	assert.Len(t, cafes, 1)

	_, err = svc.ListVendors(context.Background(), auth.RoleCustomer)
	require.True(t, errors.Is(err, auth.ErrUnknownRole))
}
