package account

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/file"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

// ErrInvalidPhone is returned for phone numbers outside E.164-like shape.
var ErrInvalidPhone = errors.New("phone number is incorrect")

// NormalizePhone strips spaces and dashes and validates the result.
func NormalizePhone(phone string) (string, error) {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if !phonePattern.MatchString(clean) {
		return "", ErrInvalidPhone
	}
	return clean, nil
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Role     auth.Role
	FullName string
	Email    string
	Phone    string
	Password string
}

// LoginRequest is the input of Login.
type LoginRequest struct {
	Role     auth.Role
	Phone    string
	Password string
}

// Service implements the account use cases.
type Service struct {
	repo       Repository
	tokens     *auth.Tokens
	files      file.Store
	bcryptCost int
	now        func() time.Time
}

// NewService creates an account Service.
func NewService(repo Repository, tokens *auth.Tokens, files file.Store, bcryptCost int) *Service {
	return &Service{
		repo:       repo,
		tokens:     tokens,
		files:      files,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Register creates an account and returns its first token pair.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (auth.TokenPair, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return auth.TokenPair{}, err
	}

	var email *string
	if e := strings.TrimSpace(strings.ToLower(req.Email)); e != "" {
		email = &e
		if _, err := s.repo.GetByEmail(ctx, req.Role, e); err == nil {
			return auth.TokenPair{}, ErrEmailTaken
		} else if !errors.Is(err, ErrNotFound) {
			return auth.TokenPair{}, errors.Wrap(err, "check email")
		}
	}
	if _, err := s.repo.GetByPhone(ctx, req.Role, phone); err == nil {
		return auth.TokenPair{}, ErrPhoneTaken
	} else if !errors.Is(err, ErrNotFound) {
		return auth.TokenPair{}, errors.Wrap(err, "check phone")
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return auth.TokenPair{}, err
	}

	a := &Account{
		Role:         req.Role,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return auth.TokenPair{}, errors.Wrap(err, "create account")
	}

	zctx.From(ctx).Info("Account registered",
		zap.String("role", string(a.Role)),
		zap.Int64("account_id", a.ID),
	)
	return s.tokens.IssuePair(a.Principal())
}

// Login verifies the phone/password pair and issues tokens.
func (s *Service) Login(ctx context.Context, req LoginRequest) (auth.TokenPair, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return auth.TokenPair{}, err
	}
	a, err := s.repo.GetByPhone(ctx, req.Role, phone)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if !auth.CheckPassword(a.PasswordHash, req.Password) {
		return auth.TokenPair{}, ErrInvalidCredentials
	}
	if !a.IsActive {
		return auth.TokenPair{}, ErrInactive
	}
	return s.tokens.IssuePair(a.Principal())
}

// Refresh exchanges a refresh token from an Authorization header for a new
// access token.
func (s *Service) Refresh(ctx context.Context, header string) (string, error) {
	a, err := s.verify(ctx, auth.RefreshToken, header)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(auth.AccessToken, a.Principal())
}

// Authenticate resolves the account behind an access token header.
func (s *Service) Authenticate(ctx context.Context, header string) (*Account, error) {
	return s.verify(ctx, auth.AccessToken, header)
}

func (s *Service) verify(ctx context.Context, kind auth.TokenKind, header string) (*Account, error) {
	raw, err := auth.BearerToken(header)
	if err != nil {
		return nil, err
	}
	claims, err := s.tokens.Parse(kind, raw)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, claims.UserType, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errors.Wrap(auth.ErrInvalidToken, "account no longer exists")
		}
		return nil, errors.Wrap(err, "load account")
	}
	if a.CredentialsChangedAt != nil && claims.RevokedBy(*a.CredentialsChangedAt) {
		return nil, ErrCredentialsChanged
	}
	if !a.IsActive {
		return nil, ErrInactive
	}
	return a, nil
}

// Logout invalidates every token issued to the account so far.
func (s *Service) Logout(ctx context.Context, p auth.Principal) error {
	if err := s.repo.SetCredentialsChangedAt(ctx, p.Role, p.ID, s.now()); err != nil {
		return errors.Wrap(err, "set credentials changed")
	}
	return nil
}

// UpdateBasicInfo applies a partial profile update. The email must not
// belong to another account of the same role.
func (s *Service) UpdateBasicInfo(ctx context.Context, p auth.Principal, info BasicInfo) (*Account, error) {
	if info.Email != nil {
		e := strings.TrimSpace(strings.ToLower(*info.Email))
		info.Email = &e
	}
	if e := info.Email; e != nil && *e != "" {
		existing, err := s.repo.GetByEmail(ctx, p.Role, *e)
		switch {
		case err == nil && existing.ID != p.ID:
			return nil, ErrEmailTaken
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, errors.Wrap(err, "check email")
		}
	}
	if !p.Role.IsVendor() {
		info.TelegramChatID = nil
	}
	return s.repo.UpdateBasicInfo(ctx, p.Role, p.ID, info)
}

// UploadProfileImage stores a new profile image and removes the previous one.
func (s *Service) UploadProfileImage(ctx context.Context, p auth.Principal, u file.Upload) (string, error) {
	ext, err := file.ImageExt(u)
	if err != nil {
		return "", err
	}
	current, err := s.repo.GetByID(ctx, p.Role, p.ID)
	if err != nil {
		return "", err
	}

	key := file.ProfileImageKey(p, ext)
	if err := s.files.Put(ctx, key, u); err != nil {
		return "", errors.Wrap(err, "upload profile image")
	}
	if err := s.repo.SetProfileImage(ctx, p.Role, p.ID, key); err != nil {
		s.discard(ctx, key)
		return "", errors.Wrap(err, "save profile image")
	}
	if current.ProfileImage != nil && *current.ProfileImage != "" {
		s.discard(ctx, *current.ProfileImage)
	}
	return key, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		zctx.From(ctx).Warn("Failed to delete stale file", zap.String("key", key), zap.Error(err))
	}
}

// Profile returns the account of the principal.
func (s *Service) Profile(ctx context.Context, p auth.Principal) (*Account, error) {
	return s.repo.GetByID(ctx, p.Role, p.ID)
}

// DeleteAccount removes an account of any role.
func (s *Service) DeleteAccount(ctx context.Context, role auth.Role, id int64) error {
	a, err := s.repo.GetByID(ctx, role, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, role, id); err != nil {
		return errors.Wrap(err, "delete account")
	}
	if a.ProfileImage != nil && *a.ProfileImage != "" {
		s.discard(ctx, *a.ProfileImage)
	}
	zctx.From(ctx).Info("Account deleted", zap.String("role", string(role)), zap.Int64("account_id", id))
	return nil
}

// ListVendors returns the active accounts of a vendor role.
func (s *Service) ListVendors(ctx context.Context, role auth.Role) ([]Account, error) {
	if !role.IsVendor() {
		return nil, errors.Wrapf(auth.ErrUnknownRole, "%q is not a vendor role", role)
	}
	return s.repo.ListActive(ctx, role)
}
