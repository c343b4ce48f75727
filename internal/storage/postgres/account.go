package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/auth"
)

// Account tables share one shape; the table name is taken from the
// validated role.
const (
	accountColumns = `id, full_name, email, phone, password_hash, age, gender, profile_image,
		telegram_chat_id, is_active, credentials_changed_at, created_at, updated_at`

	createAccountSQL = `INSERT INTO %s (full_name, email, phone, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`

	getAccountByIDSQL    = `SELECT ` + accountColumns + ` FROM %s WHERE id = $1`
	getAccountByPhoneSQL = `SELECT ` + accountColumns + ` FROM %s WHERE phone = $1`
	getAccountByEmailSQL = `SELECT ` + accountColumns + ` FROM %s WHERE LOWER(email) = LOWER($1)`

	updateAccountInfoSQL = `UPDATE %s SET
		full_name = COALESCE($2, full_name),
		age = COALESCE($3, age),
		gender = COALESCE($4, gender),
		email = CASE WHEN $5::text IS NULL THEN email ELSE NULLIF($5::text, '') END,
		telegram_chat_id = COALESCE($6, telegram_chat_id),
		updated_at = now()
		WHERE id = $1 RETURNING ` + accountColumns

	setProfileImageSQL    = `UPDATE %s SET profile_image = $2, updated_at = now() WHERE id = $1`
	setCredentialsSQL     = `UPDATE %s SET credentials_changed_at = $2, updated_at = now() WHERE id = $1`
	deleteAccountSQL      = `DELETE FROM %s WHERE id = $1`
	listActiveAccountsSQL = `SELECT ` + accountColumns + ` FROM %s WHERE is_active ORDER BY id`
	vendorChatIDSQL       = `SELECT telegram_chat_id FROM %s WHERE id = $1 AND is_active`
)

var _ account.Repository = (*AccountRepository)(nil)

// AccountRepository implements account.Repository over the four role tables.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository returns an AccountRepository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func table(role auth.Role) (string, error) {
	t := role.Collection()
	if t == "" {
		return "", errors.Wrapf(auth.ErrUnknownRole, "%q", role)
	}
	return t, nil
}

func scanAccount(role auth.Role) pgx.RowToFunc[account.Account] {
	return func(row pgx.CollectableRow) (account.Account, error) {
		var (
			a      account.Account
			age    *int32
			gender *string
		)
		err := row.Scan(
			&a.ID, &a.FullName, &a.Email, &a.Phone, &a.PasswordHash, &age, &gender, &a.ProfileImage,
			&a.TelegramChatID, &a.IsActive, &a.CredentialsChangedAt, &a.CreatedAt, &a.UpdatedAt,
		)
		a.Role = role
		if age != nil {
			v := int(*age)
			a.Age = &v
		}
		if gender != nil {
			g := account.Gender(*gender)
			a.Gender = &g
		}
		return a, err
	}
}

// Create inserts an account into its role table.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	t, err := table(a.Role)
	if err != nil {
		return err
	}
	err = r.db.conn(ctx).QueryRow(ctx, fmt.Sprintf(createAccountSQL, t),
		a.FullName, a.Email, a.Phone, a.PasswordHash, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	switch {
	case isUniqueViolation(err, t+"_email_key"):
		return account.ErrEmailTaken
	case isUniqueViolation(err, t+"_phone_key"):
		return account.ErrPhoneTaken
	case err != nil:
		return fmt.Errorf("creating %s account: %w", a.Role, err)
	}
	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, role auth.Role, query string, arg any) (*account.Account, error) {
	t, err := table(role)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.conn(ctx).Query(ctx, fmt.Sprintf(query, t), arg)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t, err)
	}
	a, err := collectOne(rows, scanAccount(role), account.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting %s account: %w", role, err)
	}
	return a, nil
}

// GetByID returns the account with id.
func (r *AccountRepository) GetByID(ctx context.Context, role auth.Role, id int64) (*account.Account, error) {
	return r.getOne(ctx, role, getAccountByIDSQL, id)
}

// GetByPhone returns the account with the normalized phone.
func (r *AccountRepository) GetByPhone(ctx context.Context, role auth.Role, phone string) (*account.Account, error) {
	return r.getOne(ctx, role, getAccountByPhoneSQL, phone)
}

// GetByEmail matches the email case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, role auth.Role, email string) (*account.Account, error) {
	return r.getOne(ctx, role, getAccountByEmailSQL, email)
}

// UpdateBasicInfo applies the non-nil fields of info.
func (r *AccountRepository) UpdateBasicInfo(ctx context.Context, role auth.Role, id int64, info account.BasicInfo) (*account.Account, error) {
	t, err := table(role)
	if err != nil {
		return nil, err
	}
	var gender *string
	if info.Gender != nil {
		g := string(*info.Gender)
		gender = &g
	}
	rows, err := r.db.conn(ctx).Query(ctx, fmt.Sprintf(updateAccountInfoSQL, t),
		id, info.FullName, info.Age, gender, info.Email, info.TelegramChatID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating %s %d: %w", role, id, err)
	}
	a, err := collectOne(rows, scanAccount(role), account.ErrNotFound)
	if isUniqueViolation(err, t+"_email_key") {
		return nil, account.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("updating %s %d: %w", role, id, err)
	}
	return a, nil
}

func (r *AccountRepository) execByID(ctx context.Context, role auth.Role, query string, id int64, args ...any) error {
	t, err := table(role)
	if err != nil {
		return err
	}
	tag, err := r.db.conn(ctx).Exec(ctx, fmt.Sprintf(query, t), append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("updating %s %d: %w", role, id, err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

// SetProfileImage stores the object key of the profile image.
func (r *AccountRepository) SetProfileImage(ctx context.Context, role auth.Role, id int64, key string) error {
	return r.execByID(ctx, role, setProfileImageSQL, id, key)
}

// SetCredentialsChangedAt revokes tokens issued before at.
func (r *AccountRepository) SetCredentialsChangedAt(ctx context.Context, role auth.Role, id int64, at time.Time) error {
	return r.execByID(ctx, role, setCredentialsSQL, id, at)
}

// Delete removes the account.
func (r *AccountRepository) Delete(ctx context.Context, role auth.Role, id int64) error {
	return r.execByID(ctx, role, deleteAccountSQL, id)
}

// ListActive returns the active accounts of a role ordered by id.
func (r *AccountRepository) ListActive(ctx context.Context, role auth.Role) ([]account.Account, error) {
	t, err := table(role)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.conn(ctx).Query(ctx, fmt.Sprintf(listActiveAccountsSQL, t))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", t, err)
	}
	return pgx.CollectRows(rows, scanAccount(role))
}

// VendorChatID returns the Telegram chat of an active vendor. ok is false
// when the vendor is gone, inactive or has no chat configured.
func (r *AccountRepository) VendorChatID(ctx context.Context, role auth.Role, id int64) (chatID int64, ok bool, err error) {
	if !role.IsVendor() {
		return 0, false, errors.Wrapf(auth.ErrUnknownRole, "%q is not a vendor role", role)
	}
	t, _ := table(role)
	var chat *int64
	err = r.db.conn(ctx).QueryRow(ctx, fmt.Sprintf(vendorChatIDSQL, t), id).Scan(&chat)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting chat of %s %d: %w", role, id, err)
	}
	if chat == nil {
		return 0, false, nil
	}
	return *chat, true, nil
}
