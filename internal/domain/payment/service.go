package payment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/order"
	"github.com/xenking/buzzer/internal/domain/product"
	"github.com/xenking/buzzer/internal/event"
)

// Carts returns the customer's cart view.
type Carts interface {
	Get(ctx context.Context, customerID int64) (*cart.View, error)
}

// Orders is the order side of payment settlement.
type Orders interface {
	PlacePaidOrder(ctx context.Context, req order.PaidOrderRequest) (*order.Order, error)
	MarkRefunded(ctx context.Context, paymentID int64) (*order.Order, error)
	Notify(ctx context.Context, typ event.Type, o *order.Order)
}

// Transactor runs fn in a database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CheckoutResult is returned by Checkout.
type CheckoutResult struct {
	Session   *CheckoutSession
	PaymentID int64
	Amount    decimal.Decimal
}

// Deps are the collaborators of Service.
type Deps struct {
	Payments  Repository
	Carts     Carts
	Coupons   coupon.Validator
	Orders    Orders
	Gateway   Gateway
	Tx        Transactor
	Publisher event.Publisher

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service implements checkout, settlement and refunds.
type Service struct {
	payments Repository
	carts    Carts
	coupons  coupon.Validator
	orders   Orders
	gateway  Gateway
	tx       Transactor
	pub      event.Publisher
	now      func() time.Time

	tracer    trace.Tracer
	completed metric.Int64Counter
	refunded  metric.Int64Counter
}

// NewService creates a payment Service.
func NewService(d Deps) (*Service, error) {
	if d.TracerProvider == nil {
		d.TracerProvider = tracenoop.NewTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = metricnoop.NewMeterProvider()
	}
	const scope = "github.com/xenking/buzzer/internal/domain/payment"
	meter := d.MeterProvider.Meter(scope)

	s := &Service{
		payments: d.Payments,
		carts:    d.Carts,
		coupons:  d.Coupons,
		orders:   d.Orders,
		gateway:  d.Gateway,
		tx:       d.Tx,
		pub:      d.Publisher,
		now:      time.Now,
		tracer:   d.TracerProvider.Tracer(scope),
	}
	var err error
	if s.completed, err = meter.Int64Counter("buzzer.payments.completed",
		metric.WithDescription("Checkout sessions settled")); err != nil {
		return nil, errors.Wrap(err, "payments completed counter")
	}
	if s.refunded, err = meter.Int64Counter("buzzer.payments.refunded",
		metric.WithDescription("Payments refunded")); err != nil {
		return nil, errors.Wrap(err, "payments refunded counter")
	}
	return s, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Checkout opens a hosted checkout session for the customer's cart and
// records a pending payment for the discounted amount.
func (s *Service) Checkout(ctx context.Context, customerID int64, couponCode string) (_ *CheckoutResult, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.Checkout",
		trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer func() { endSpan(span, err) }()

	view, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if view.Cart == nil {
		return nil, cart.ErrNotFound
	}
	if len(view.Lines) == 0 {
		return nil, cart.ErrEmpty
	}

	items := make([]LineItem, 0, len(view.Lines))
	captured := make([]Item, 0, len(view.Lines))
	for _, l := range view.Lines {
		if l.Product.ID == 0 {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", l.ProductID)
		}
		items = append(items, LineItem{
			Name:       l.Product.Name,
			UnitAmount: ToMinor(l.Product.Price),
			Quantity:   int64(l.Quantity),
		})
		productID := l.Product.ID
		captured = append(captured, Item{
			ProductID:  &productID,
			Name:       l.Product.Name,
			Price:      l.Product.Price,
			Quantity:   l.Quantity,
			VendorType: l.Product.Vendor.Role,
			VendorID:   l.Product.Vendor.ID,
		})
	}

	discount := decimal.Zero
	var code *string
	if c := strings.TrimSpace(couponCode); c != "" {
		d, err := s.coupons.Validate(ctx, c, view.TotalPrice)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = d.Amount
		code = &d.Code
	}
	amount := view.TotalPrice.Sub(discount).Round(2)

	meta := map[string]string{
		"customerId": strconv.FormatInt(customerID, 10),
		"cartId":     strconv.FormatInt(view.Cart.ID, 10),
		"couponCode": "",
	}
	if code != nil {
		meta["couponCode"] = *code
	}
	session, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		Items:    items,
		Discount: ToMinor(discount),
		Metadata: meta,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	p := &Payment{
		CustomerID:        &customerID,
		CheckoutSessionID: session.ID,
		Amount:            amount,
		CouponCode:        code,
		Status:            StatusPending,
		Items:             captured,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create payment")
	}

	zctx.From(ctx).Info("Checkout session created",
		zap.Int64("payment_id", p.ID),
		zap.String("session_id", session.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &CheckoutResult{Session: session, PaymentID: p.ID, Amount: amount}, nil
}

// HandleWebhook verifies and dispatches a provider webhook. Events other
// than a completed checkout are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if ev.Type != EventCheckoutCompleted || ev.Session == nil {
		zctx.From(ctx).Debug("Ignoring webhook event", zap.String("type", ev.Type), zap.String("id", ev.ID))
		return nil
	}
	return s.CompleteCheckout(ctx, *ev.Session)
}

// CompleteCheckout marks the session's payment completed and books the
// lines captured at checkout as a paid order. Completing an already settled
// payment is a no-op. When the order can no longer be fulfilled the payment
// stays completed and is refunded.
func (s *Service) CompleteCheckout(ctx context.Context, session CompletedSession) (err error) {
	ctx, span := s.tracer.Start(ctx, "payment.CompleteCheckout",
		trace.WithAttributes(attribute.String("checkout.session", session.ID)))
	defer func() { endSpan(span, err) }()

	lg := zctx.From(ctx).With(zap.String("session_id", session.ID))
	var (
		settled   *Payment
		placed    *order.Order
		placeFail error
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			lg.Info("Checkout already settled", zap.Int64("payment_id", p.ID), zap.String("status", string(p.Status)))
			return nil
		}
		if err := s.payments.MarkCompleted(ctx, p.ID, session.PaymentIntentID); err != nil {
			return errors.Wrap(err, "mark payment completed")
		}
		p.Status = StatusCompleted
		p.PaymentIntentID = &session.PaymentIntentID
		settled = p
		if p.CustomerID == nil {
			lg.Warn("Completed payment has no customer", zap.Int64("payment_id", p.ID))
			return nil
		}

		paid := p.Amount
		if session.AmountTotal > 0 {
			paid = FromMinor(session.AmountTotal)
		}
		var code string
		if p.CouponCode != nil {
			code = *p.CouponCode
		}
		o, err := s.orders.PlacePaidOrder(ctx, order.PaidOrderRequest{
			CustomerID: *p.CustomerID,
			PaymentID:  p.ID,
			CouponCode: code,
			Items:      orderItems(p.Items),
			AmountPaid: paid,
		})
		switch {
		case err == nil:
			placed = o
		case order.Unfulfillable(err):
			placeFail = err
		default:
			return errors.Wrap(err, "place paid order")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if settled != nil {
		s.completed.Add(ctx, 1)
	}

	switch {
	case placed != nil:
		lg.Info("Checkout settled", zap.Int64("order_id", placed.ID))
		s.orders.Notify(ctx, event.OrderPaid, placed)
	case placeFail != nil:
		lg.Error("Paid order cannot be fulfilled, refunding",
			zap.Int64("payment_id", settled.ID),
			zap.Error(placeFail),
		)
		if _, err := s.refund(ctx, settled); err != nil {
			lg.Error("Automatic refund failed, payment left completed",
				zap.Int64("payment_id", settled.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func orderItems(items []Item) []order.Item {
	out := make([]order.Item, len(items))
	for i, it := range items {
		out[i] = order.Item{
			ProductID:  it.ProductID,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			VendorType: it.VendorType,
			VendorID:   it.VendorID,
		}
	}
	return out
}

// Refund refunds a completed payment of the customer and marks its order
// refunded.
func (s *Service) Refund(ctx context.Context, customerID, paymentID int64) (_ *Payment, err error) {
	ctx, span := s.tracer.Start(ctx, "payment.Refund",
		trace.WithAttributes(attribute.Int64("payment.id", paymentID)))
	defer func() { endSpan(span, err) }()

	p, err := s.payments.GetByID(ctx, paymentID)
	if errors.Is(err, ErrNotFound) || (err == nil && (p.CustomerID == nil || *p.CustomerID != customerID)) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	switch {
	case p.Status == StatusRefunded:
		return nil, ErrAlreadyRefunded
	case p.Status != StatusCompleted:
		return nil, ErrNotCompleted
	}
	return s.refund(ctx, p)
}

// refund returns the money of the completed payment p and records it.
func (s *Service) refund(ctx context.Context, p *Payment) (*Payment, error) {
	if p.PaymentIntentID == nil || *p.PaymentIntentID == "" {
		return nil, ErrNoPaymentIntent
	}
	refundID, err := s.gateway.Refund(ctx, *p.PaymentIntentID)
	if err != nil {
		return nil, errors.Wrap(err, "create refund")
	}

	now := s.now()
	var refundedOrder *order.Order
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.payments.MarkRefunded(ctx, p.ID, refundID, now); err != nil {
			return errors.Wrap(err, "mark payment refunded")
		}
		o, err := s.orders.MarkRefunded(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "mark order refunded")
		}
		refundedOrder = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Status = StatusRefunded
	p.RefundID = &refundID
	p.RefundedAt = &now
	s.refunded.Add(ctx, 1)
	s.publishRefund(ctx, p, refundedOrder)
	return p, nil
}

func (s *Service) publishRefund(ctx context.Context, p *Payment, o *order.Order) {
	var e event.Event
	if o != nil {
		e = order.NewEvent(event.PaymentRefunded, o)
	} else {
		e = event.New(event.PaymentRefunded)
		e.CustomerID = *p.CustomerID
		e.Status = string(p.Status)
		e.TotalAmount = p.Amount
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		zctx.From(ctx).Error("Failed to publish refund event", zap.Int64("payment_id", p.ID), zap.Error(err))
	}
}
