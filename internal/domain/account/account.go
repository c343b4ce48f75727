// Package account implements registration, login and profile management for
// the four account roles.
package account

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/buzzer/internal/domain/auth"
)

// Gender is an optional profile attribute.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrPhoneTaken         = errors.New("user with this phone already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is deactivated")
	ErrCredentialsChanged = errors.New("credentials changed, login again")
)

// Account is a user of any role.
type Account struct {
	ID                   int64
	Role                 auth.Role
	FullName             string
	Email                *string
	Phone                string
	PasswordHash         string
	Age                  *int
	Gender               *Gender
	ProfileImage         *string
	TelegramChatID       *int64
	IsActive             bool
	CredentialsChangedAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Principal returns the account identity.
func (a *Account) Principal() auth.Principal {
	return auth.Principal{ID: a.ID, Role: a.Role}
}

// BasicInfo is a partial profile update. Nil fields are left unchanged and
// an empty Email removes the address.
type BasicInfo struct {
	FullName       *string
	Age            *int
	Gender         *Gender
	Email          *string
	TelegramChatID *int64
}

// Repository persists accounts. Every method is scoped to one role table.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, role auth.Role, id int64) (*Account, error)
	GetByPhone(ctx context.Context, role auth.Role, phone string) (*Account, error)
	GetByEmail(ctx context.Context, role auth.Role, email string) (*Account, error)
	UpdateBasicInfo(ctx context.Context, role auth.Role, id int64, info BasicInfo) (*Account, error)
	SetProfileImage(ctx context.Context, role auth.Role, id int64, key string) error
	SetCredentialsChangedAt(ctx context.Context, role auth.Role, id int64, at time.Time) error
	Delete(ctx context.Context, role auth.Role, id int64) error
	ListActive(ctx context.Context, role auth.Role) ([]Account, error)
}
