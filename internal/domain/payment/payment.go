// Package payment implements hosted checkout, its completion webhook and
// refunds on top of a payment Gateway.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/buzzer/internal/domain/auth"
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// EventCheckoutCompleted is the webhook event that settles a checkout.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	ErrNotFound         = errors.New("payment not found or you are not authorized")
	ErrAlreadyRefunded  = errors.New("payment has already been refunded")
	ErrNotCompleted     = errors.New("only completed payments can be refunded")
	ErrNoPaymentIntent  = errors.New("payment intent not found")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Payment is one checkout attempt of a customer.
type Payment struct {
	ID                int64
	CustomerID        *int64
	CheckoutSessionID string
	PaymentIntentID   *string
	RefundID          *string
	RefundedAt        *time.Time
	Amount            decimal.Decimal
	CouponCode        *string
	Status            Status
	// Items are the cart lines captured when the checkout was opened.
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a cart line as it was paid for. ProductID is nil once the
// product is deleted.
type Item struct {
	ProductID  *int64
	Name       string
	Price      decimal.Decimal
	Quantity   int
	VendorType auth.Role
	VendorID   int64
}

// Repository persists payments.
type Repository interface {
	// Create inserts the payment together with its items.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	// GetBySession locks the row when called inside a transaction.
	GetBySession(ctx context.Context, sessionID string) (*Payment, error)
	MarkCompleted(ctx context.Context, id int64, paymentIntentID string) error
	MarkRefunded(ctx context.Context, id int64, refundID string, at time.Time) error
}

// LineItem is a checkout line in minor currency units.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CheckoutRequest describes a hosted checkout session.
type CheckoutRequest struct {
	Items []LineItem
	// Discount in minor units, applied as a one-off coupon when positive.
	Discount int64
	Metadata map[string]string
}

// CheckoutSession is a created hosted checkout.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedSession is the payload of a completed checkout.
type CompletedSession struct {
	ID              string
	PaymentIntentID string
	AmountTotal     int64
	Metadata        map[string]string
}

// WebhookEvent is a verified webhook notification. Session is set for
// EventCheckoutCompleted.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CompletedSession
}

// Gateway is the payment provider.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Refund(ctx context.Context, paymentIntentID string) (refundID string, err error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

var hundred = decimal.NewFromInt(100)

// ToMinor converts an amount to minor currency units.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts minor currency units to an amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
