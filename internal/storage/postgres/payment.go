package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/payment"
)

const (
	paymentColumns = `id, customer_id, checkout_session_id, payment_intent_id, refund_id, refunded_at,
		amount, coupon_code, status, created_at, updated_at`

	createPaymentSQL = `INSERT INTO payments (customer_id, checkout_session_id, amount, coupon_code, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	insertPaymentItemSQL = `INSERT INTO payment_items
		(payment_id, product_id, product_name, product_price, quantity, vendor_type, vendor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	listPaymentItemsSQL = `SELECT product_id, product_name, product_price, quantity, vendor_type, vendor_id
		FROM payment_items WHERE payment_id = $1 ORDER BY id`

	getPaymentByIDSQL      = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	getPaymentBySessionSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_session_id = $1 FOR UPDATE`

	markPaymentCompletedSQL = `UPDATE payments SET status = 'completed', payment_intent_id = $2, updated_at = now()
		WHERE id = $1`
	markPaymentRefundedSQL = `UPDATE payments SET status = 'refunded', refund_id = $2, refunded_at = $3, updated_at = now()
		WHERE id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository returns a PaymentRepository.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.CheckoutSessionID, &p.PaymentIntentID, &p.RefundID, &p.RefundedAt,
		&p.Amount, &p.CouponCode, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanPaymentItem(row pgx.CollectableRow) (payment.Item, error) {
	var (
		it         payment.Item
		vendorType string
	)
	err := row.Scan(&it.ProductID, &it.Name, &it.Price, &it.Quantity, &vendorType, &it.VendorID)
	it.VendorType = auth.Role(vendorType)
	return it, err
}

// Create inserts p and its items in one transaction.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.InTx(ctx, func(ctx context.Context) error {
		conn := r.db.conn(ctx)
		err := conn.QueryRow(ctx, createPaymentSQL,
			p.CustomerID, p.CheckoutSessionID, p.Amount, p.CouponCode, p.Status,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating payment for session %q: %w", p.CheckoutSessionID, err)
		}
		if len(p.Items) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, it := range p.Items {
			batch.Queue(insertPaymentItemSQL,
				p.ID, it.ProductID, it.Name, it.Price, it.Quantity, string(it.VendorType), it.VendorID,
			)
		}
		if err := conn.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("creating items of payment %d: %w", p.ID, err)
		}
		return nil
	})
}

func (r *PaymentRepository) one(ctx context.Context, query string, arg any) (*payment.Payment, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	p, err := collectOne(rows, scanPayment, payment.ErrNotFound)
	if err != nil {
		return nil, err
	}

	rows, err = r.db.conn(ctx).Query(ctx, listPaymentItemsSQL, p.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	if p.Items, err = pgx.CollectRows(rows, scanPaymentItem); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return p, nil
}

// GetByID returns the payment with the given id.
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	p, err := r.one(ctx, getPaymentByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting payment %d: %w", id, err)
	}
	return p, nil
}

// GetBySession returns the payment of a checkout session. Inside a
// transaction the row stays locked until commit.
func (r *PaymentRepository) GetBySession(ctx context.Context, sessionID string) (*payment.Payment, error) {
	p, err := r.one(ctx, getPaymentBySessionSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting payment of session %q: %w", sessionID, err)
	}
	return p, nil
}

// MarkCompleted records the payment intent of a finished checkout.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id int64, paymentIntentID string) error {
	return r.exec(ctx, markPaymentCompletedSQL, id, paymentIntentID)
}

// MarkRefunded records a refund.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, id int64, refundID string, at time.Time) error {
	return r.exec(ctx, markPaymentRefundedSQL, id, refundID, at)
}

func (r *PaymentRepository) exec(ctx context.Context, query string, id int64, args ...any) error {
	tag, err := r.db.conn(ctx).Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("updating payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNotFound
	}
	return nil
}
