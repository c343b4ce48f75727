package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/storage/postgres"
)

const batchSize = 1000

// rule is the discount applied to every imported code.
type rule struct {
	discountType coupon.DiscountType
	value        decimal.Decimal
	maxDiscount  *decimal.Decimal
	minOrder     *decimal.Decimal
	usageLimit   *int
	expiresAt    *time.Time
}

func (r rule) coupon(code string) coupon.Coupon {
	return coupon.Coupon{
		Code:           code,
		DiscountType:   r.discountType,
		DiscountValue:  r.value,
		MaxDiscount:    r.maxDiscount,
		MinOrderAmount: r.minOrder,
		ExpiresAt:      r.expiresAt,
		UsageLimit:     r.usageLimit,
		IsActive:       true,
	}
}

type options struct {
	dataDir      string
	databaseURL  string
	expected     uint
	fpr          float64
	discountType string
	value        string
	maxDiscount  string
	minOrder     string
	usageLimit   int
	expires      string
	dryRun       bool
}

func main() {
	var o options

	flag.StringVar(&o.dataDir, "data-dir", "data", "directory containing *.gz coupon files")
	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&o.expected, "expected-codes", 10_000_000, "expected number of codes per file, sizes the bloom filters")
	flag.Float64Var(&o.fpr, "false-positive-rate", 0.001, "bloom filter false positive rate")
	flag.StringVar(&o.discountType, "type", string(coupon.DiscountPercentage), "discount type: percentage or fixed")
	flag.StringVar(&o.value, "value", "10", "discount value")
	flag.StringVar(&o.maxDiscount, "max-discount", "", "cap of a percentage discount")
	flag.StringVar(&o.minOrder, "min-order", "", "minimum order amount")
	flag.IntVar(&o.usageLimit, "limit", 0, "usage limit per code, 0 for unlimited")
	flag.StringVar(&o.expires, "expires", "", "expiry time, RFC 3339")
	flag.BoolVar(&o.dryRun, "dry-run", false, "report counts without writing to the database")
	flag.Parse()

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" && !o.dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	r, err := o.rule()
	if err != nil {
		slog.Error("invalid discount flags", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o, r); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

// rule validates the discount flags.
func (o options) rule() (rule, error) {
	r := rule{discountType: coupon.DiscountType(o.discountType)}
	if !r.discountType.Valid() {
		return rule{}, errors.Errorf("unknown discount type %q", o.discountType)
	}

	var err error
	if r.value, err = decimal.NewFromString(o.value); err != nil {
		return rule{}, errors.Wrap(err, "parse value")
	}
	if !r.value.IsPositive() {
		return rule{}, errors.New("value must be positive")
	}
	if r.discountType == coupon.DiscountPercentage && r.value.GreaterThan(decimal.NewFromInt(100)) {
		return rule{}, errors.New("percentage value must be at most 100")
	}

	if r.maxDiscount, err = optionalDecimal(o.maxDiscount); err != nil {
		return rule{}, errors.Wrap(err, "parse max discount")
	}
	if r.minOrder, err = optionalDecimal(o.minOrder); err != nil {
		return rule{}, errors.Wrap(err, "parse min order")
	}
	switch {
	case o.usageLimit < 0:
		return rule{}, errors.New("limit must not be negative")
	case o.usageLimit > 0:
		limit := o.usageLimit
		r.usageLimit = &limit
	}
	if o.expires != "" {
		t, err := time.Parse(time.RFC3339, o.expires)
		if err != nil {
			return rule{}, errors.Wrap(err, "parse expires")
		}
		r.expiresAt = &t
	}
	return r, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func run(ctx context.Context, o options, r rule) error {
	files, err := filepath.Glob(filepath.Join(o.dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list coupon files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files in %s", o.dataDir)
	}
	slices.Sort(files)

	s := scanner{capacity: o.expected, fpr: o.fpr}
	dups, err := s.duplicates(ctx, files)
	if err != nil {
		return err
	}
	if len(dups) > 0 {
		sample := make([]string, 0, 10)
		for code := range dups {
			if len(sample) == cap(sample) {
				break
			}
			sample = append(sample, code)
		}
		slog.Warn("skipping codes present in more than one file",
			slog.Int("count", len(dups)),
			slog.Any("sample", sample),
		)
	}

	if o.dryRun {
		var total int
		err := uniqueCodes(ctx, files, dups, batchSize, func(codes []string) error {
			total += len(codes)
			return nil
		})
		slog.Info("dry run", slog.Int("importable", total))
		return err
	}

	slog.Info("pass 3: writing coupons to database")

	pool, err := postgres.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, postgres.NewCouponRepository(postgres.NewDB(pool)), files, dups, r); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}
	return nil
}

type upserter interface {
	Upsert(ctx context.Context, coupons []coupon.Coupon) error
}

// writeCoupons upserts every code outside dups in batches.
func writeCoupons(ctx context.Context, repo upserter, files []string, dups map[string]struct{}, r rule) error {
	var written int
	batch := make([]coupon.Coupon, 0, batchSize)
	return uniqueCodes(ctx, files, dups, batchSize, func(codes []string) error {
		batch = batch[:0]
		for _, code := range codes {
			batch = append(batch, r.coupon(code))
		}
		if err := repo.Upsert(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		slog.Info("write progress", slog.Int("written", written))
		return nil
	})
}
