package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/account"
	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/category"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/internal/domain/product"
	"github.com/xenking/buzzer/internal/storage/postgres"
)

type accountJSON struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Password       string `json:"password"`
	TelegramChatID *int64 `json:"telegramChatId"`
}

type vendorJSON struct {
	accountJSON
	Type     string        `json:"type"`
	Products []productJSON `json:"products"`
}

type productJSON struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	AvailableQuantity int             `json:"availableQuantity"`
	Images            []string        `json:"images"`
}

type categoryJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type couponJSON struct {
	Code           string              `json:"code"`
	DiscountType   coupon.DiscountType `json:"discountType"`
	DiscountValue  decimal.Decimal     `json:"discountValue"`
	MaxDiscount    *decimal.Decimal    `json:"maxDiscount"`
	MinOrderAmount *decimal.Decimal    `json:"minOrderAmount"`
	ExpiresAt      *time.Time          `json:"expiresAt"`
	UsageLimit     *int                `json:"usageLimit"`
}

type seedJSON struct {
	Admin      accountJSON    `json:"admin"`
	Categories []categoryJSON `json:"categories"`
	Vendors    []vendorJSON   `json:"vendors"`
	Coupons    []couponJSON   `json:"coupons"`
}

type seeder struct {
	accounts   *postgres.AccountRepository
	categories *postgres.CategoryRepository
	products   *postgres.ProductRepository
	coupons    *postgres.CouponRepository
	bcryptCost int

	categoryIDs map[string]int64
}

func main() {
	var (
		databaseURL string
		seedFile    string
		bcryptCost  int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/seed.json", "path to the seed JSON file")
	flag.IntVar(&bcryptCost, "bcrypt-cost", 10, "bcrypt cost for seeded passwords")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedFile, bcryptCost); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedFile string, bcryptCost int) error {
	slog.Info("reading seed file", slog.String("path", seedFile))

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedJSON
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	db := postgres.NewDB(pool)
	s := &seeder{
		accounts:    postgres.NewAccountRepository(db),
		categories:  postgres.NewCategoryRepository(db),
		products:    postgres.NewProductRepository(db),
		coupons:     postgres.NewCouponRepository(db),
		bcryptCost:  bcryptCost,
		categoryIDs: make(map[string]int64),
	}

	if seed.Admin.Phone != "" {
		if _, err := s.ensureAccount(ctx, auth.RoleAdmin, seed.Admin); err != nil {
			return errors.Wrap(err, "seed admin")
		}
	}
	if err := s.seedCategories(ctx, seed.Categories); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := s.seedVendors(ctx, seed.Vendors); err != nil {
		return errors.Wrap(err, "seed vendors")
	}
	if err := s.seedCoupons(ctx, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

// ensureAccount returns the account with the seed's phone, creating it when
// missing.
func (s *seeder) ensureAccount(ctx context.Context, role auth.Role, a accountJSON) (*account.Account, error) {
	phone, err := account.NormalizePhone(a.Phone)
	if err != nil {
		return nil, errors.Wrapf(err, "phone %q", a.Phone)
	}
	existing, err := s.accounts.GetByPhone(ctx, role, phone)
	switch {
	case err == nil:
		slog.Info("account exists", slog.String("role", string(role)), slog.String("phone", phone))
		return existing, nil
	case !errors.Is(err, account.ErrNotFound):
		return nil, err
	}

	hash, err := auth.HashPassword(a.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	acc := &account.Account{
		Role:         role,
		FullName:     a.FullName,
		Phone:        phone,
		PasswordHash: hash,
		IsActive:     true,
	}
	if a.Email != "" {
		acc.Email = &a.Email
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	if a.TelegramChatID != nil {
		if acc, err = s.accounts.UpdateBasicInfo(ctx, role, acc.ID, account.BasicInfo{
			TelegramChatID: a.TelegramChatID,
		}); err != nil {
			return nil, errors.Wrap(err, "set telegram chat")
		}
	}

	slog.Info("created account",
		slog.String("role", string(role)),
		slog.Int64("id", acc.ID),
		slog.String("name", acc.FullName),
	)
	return acc, nil
}

func (s *seeder) seedCategories(ctx context.Context, categories []categoryJSON) error {
	for _, c := range categories {
		existing, err := s.categories.GetByName(ctx, c.Name)
		if err == nil {
			s.categoryIDs[c.Name] = existing.ID
			continue
		}
		if !errors.Is(err, category.ErrNotFound) {
			return errors.Wrapf(err, "get category %s", c.Name)
		}

		cat := &category.Category{Name: c.Name}
		if c.Description != "" {
			cat.Description = &c.Description
		}
		if err := s.categories.Create(ctx, cat); err != nil {
			return errors.Wrapf(err, "create category %s", c.Name)
		}
		s.categoryIDs[c.Name] = cat.ID

		slog.Info("created category", slog.Int64("id", cat.ID), slog.String("name", cat.Name))
	}
	return nil
}

func (s *seeder) seedVendors(ctx context.Context, vendors []vendorJSON) error {
	for _, v := range vendors {
		role, err := auth.ParseRole(v.Type)
		if err != nil {
			return err
		}
		if !role.IsVendor() {
			return errors.Errorf("vendor %q has non-vendor type %q", v.FullName, v.Type)
		}
		acc, err := s.ensureAccount(ctx, role, v.accountJSON)
		if err != nil {
			return errors.Wrapf(err, "seed vendor %s", v.FullName)
		}
		if err := s.seedProducts(ctx, acc.Principal(), v.Products); err != nil {
			return errors.Wrapf(err, "seed products of %s", v.FullName)
		}
	}
	return nil
}

// seedProducts creates the vendor's products whose names are not yet taken
// by that vendor.
func (s *seeder) seedProducts(ctx context.Context, vendor auth.Principal, products []productJSON) error {
	existing, _, err := s.products.List(ctx, product.Filter{
		VendorType: &vendor.Role,
		VendorID:   &vendor.ID,
		Page:       pagination.Params{Page: 1, Limit: pagination.MaxLimit},
	})
	if err != nil {
		return err
	}
	names := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		names[p.Name] = struct{}{}
	}

	for _, p := range products {
		if _, ok := names[p.Name]; ok {
			continue
		}
		prod := &product.Product{
			Vendor:            vendor,
			Name:              p.Name,
			Price:             p.Price,
			IsAvailable:       true,
			AvailableQuantity: p.AvailableQuantity,
			Images:            p.Images,
		}
		if p.Description != "" {
			prod.Description = &p.Description
		}
		if p.Category != "" {
			id, ok := s.categoryIDs[p.Category]
			if !ok {
				return errors.Errorf("product %q: unknown category %q", p.Name, p.Category)
			}
			prod.CategoryID = &id
		}
		if err := s.products.Create(ctx, prod); err != nil {
			return err
		}

		slog.Info("created product",
			slog.Int64("id", prod.ID),
			slog.String("name", prod.Name),
			slog.String("price", prod.Price.StringFixed(2)),
		)
	}
	return nil
}

func (s *seeder) seedCoupons(ctx context.Context, coupons []couponJSON) error {
	batch := make([]coupon.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if !c.DiscountType.Valid() {
			return errors.Errorf("coupon %s: invalid discount type %q", c.Code, c.DiscountType)
		}
		batch = append(batch, coupon.Coupon{
			Code:           c.Code,
			DiscountType:   c.DiscountType,
			DiscountValue:  c.DiscountValue,
			MaxDiscount:    c.MaxDiscount,
			MinOrderAmount: c.MinOrderAmount,
			ExpiresAt:      c.ExpiresAt,
			UsageLimit:     c.UsageLimit,
			IsActive:       true,
		})
	}
	if err := s.coupons.Upsert(ctx, batch); err != nil {
		return err
	}

	slog.Info("upserted coupons", slog.Int("count", len(batch)))
	return nil
}
