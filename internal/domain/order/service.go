package order

import (
	"context"
	"strings"
	"unicode/utf8"

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

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/cart"
	"github.com/xenking/buzzer/internal/domain/coupon"
	"github.com/xenking/buzzer/internal/domain/pagination"
	"github.com/xenking/buzzer/internal/domain/product"
	"github.com/xenking/buzzer/internal/event"
)

const maxNotesLen = 500

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerID int64
	CouponCode string
	AddressID  *int64
	Notes      *string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order         *Order
	ItemsCount    int
	CouponApplied *string
}

// PaidOrderRequest describes an order settled by an external payment.
type PaidOrderRequest struct {
	CustomerID int64
	PaymentID  int64
	CouponCode string
	// Items are the lines captured when the checkout was opened.
	Items []Item
	// AmountPaid is the charged total and overrides the computed discount.
	AmountPaid decimal.Decimal
}

// Deps are the collaborators of Service.
type Deps struct {
	Orders      Repository
	Carts       Carts
	Stock       Stock
	Addresses   Addresses
	Coupons     coupon.Validator
	Redemptions Redemptions
	Tx          Transactor
	Publisher   event.Publisher

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service encapsulates order placement and lifecycle logic.
type Service struct {
	orders      Repository
	carts       Carts
	stock       Stock
	addresses   Addresses
	coupons     coupon.Validator
	redemptions Redemptions
	tx          Transactor
	pub         event.Publisher

	tracer    trace.Tracer
	placed    metric.Int64Counter
	cancelled metric.Int64Counter
	redeemed  metric.Int64Counter
}

// NewService creates an order Service.
func NewService(d Deps) (*Service, error) {
	if d.TracerProvider == nil {
		d.TracerProvider = tracenoop.NewTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = metricnoop.NewMeterProvider()
	}
	meter := d.MeterProvider.Meter("github.com/xenking/buzzer/internal/domain/order")

	s := &Service{
		orders:      d.Orders,
		carts:       d.Carts,
		stock:       d.Stock,
		addresses:   d.Addresses,
		coupons:     d.Coupons,
		redemptions: d.Redemptions,
		tx:          d.Tx,
		pub:         d.Publisher,
		tracer:      d.TracerProvider.Tracer("github.com/xenking/buzzer/internal/domain/order"),
	}

	var err error
	if s.placed, err = meter.Int64Counter("buzzer.orders.placed",
		metric.WithDescription("Orders placed, by status")); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if s.cancelled, err = meter.Int64Counter("buzzer.orders.cancelled",
		metric.WithDescription("Orders cancelled by customers")); err != nil {
		return nil, errors.Wrap(err, "orders cancelled counter")
	}
	if s.redeemed, err = meter.Int64Counter("buzzer.coupons.redeemed",
		metric.WithDescription("Coupon redemptions recorded on orders")); err != nil {
		return nil, errors.Wrap(err, "coupons redeemed counter")
	}
	return s, nil
}

// draft is a cart resolved against current products.
type draft struct {
	cartID    int64
	items     []Item
	subtotal  decimal.Decimal
	count     int // lines
	available map[int64]int // stock seen while drafting
}

// loadDraft loads the customer's cart and verifies every line against the
// product catalog.
func (s *Service) loadDraft(ctx context.Context, customerID int64) (*draft, error) {
	c, err := s.carts.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	lines, err := s.carts.Items(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	if len(lines) == 0 {
		return nil, cart.ErrEmpty
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	fetched, err := s.stock.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	d := &draft{
		cartID:    c.ID,
		subtotal:  decimal.Zero,
		items:     make([]Item, 0, len(lines)),
		available: make(map[int64]int, len(lines)),
	}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", l.ProductID)
		}
		if !p.IsAvailable {
			return nil, errors.Wrapf(product.ErrNotAvailable, "%q", p.Name)
		}
		if p.AvailableQuantity < l.Quantity {
			return nil, &InsufficientStockError{Name: p.Name, Available: p.AvailableQuantity}
		}
		d.available[p.ID] = p.AvailableQuantity
		productID := p.ID
		d.items = append(d.items, Item{
			ProductID:  &productID,
			Name:       p.Name,
			Price:      p.Price,
			Quantity:   l.Quantity,
			VendorType: p.Vendor.Role,
			VendorID:   p.Vendor.ID,
		})
		d.subtotal = d.subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		d.count++
	}
	d.subtotal = d.subtotal.Round(2)
	return d, nil
}

// commit writes the order, books the stock, records the coupon and clears
// the cart, if any, in one transaction.
func (s *Service) commit(ctx context.Context, d *draft, o *Order, couponID int64, enforceLimit bool) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		for _, it := range o.Items {
			if err := s.stock.DecrementStock(ctx, *it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, product.ErrOutOfStock) {
					return &InsufficientStockError{Name: it.Name, Available: d.available[*it.ProductID]}
				}
				return errors.Wrapf(err, "decrement stock of product %d", *it.ProductID)
			}
		}
		if couponID != 0 {
			if err := s.redemptions.RecordRedemption(ctx, couponID, o.ID, enforceLimit); err != nil {
				return errors.Wrap(err, "record coupon redemption")
			}
		}
		if d.cartID == 0 {
			return nil
		}
		if err := s.carts.Clear(ctx, d.cartID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
}

// PlaceOrder turns the customer's cart into a pending order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *PlaceOrderResult, err error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.Int64("customer.id", req.CustomerID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > maxNotesLen {
		return nil, ErrNotesTooLong
	}

	d, err := s.loadDraft(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if req.AddressID != nil {
		owner := auth.Principal{ID: req.CustomerID, Role: auth.RoleCustomer}
		if _, err := s.addresses.Get(ctx, owner, *req.AddressID); err != nil {
			return nil, err
		}
	}

	discount := decimal.Zero
	var (
		couponID   int64
		couponCode *string
	)
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		dsc, err := s.coupons.Validate(ctx, code, d.subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = dsc.Amount
		couponID = dsc.CouponID
		couponCode = &dsc.Code
	}

	o := &Order{
		CustomerID:     req.CustomerID,
		AddressID:      req.AddressID,
		Status:         StatusPending,
		Notes:          req.Notes,
		Subtotal:       d.subtotal,
		DiscountAmount: discount,
		TotalAmount:    d.subtotal.Sub(discount).Round(2),
		CouponCode:     couponCode,
		Items:          d.items,
	}
	if err := s.commit(ctx, d, o, couponID, true); err != nil {
		return nil, err
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(o.Status))))
	if couponID != 0 {
		s.redeemed.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("customer_id", o.CustomerID),
		zap.String("total", o.TotalAmount.StringFixed(2)),
	)
	s.Notify(ctx, event.OrderPlaced, o)

	return &PlaceOrderResult{Order: o, ItemsCount: d.count, CouponApplied: couponCode}, nil
}

// PlacePaidOrder books the lines captured at checkout as a paid order and
// clears the customer's cart. The charged amount is authoritative: the
// discount is whatever the payment provider took off the subtotal. Coupon
// usage is recorded without enforcing its limit. The caller publishes the
// order.paid event once its own transaction commits.
func (s *Service) PlacePaidOrder(ctx context.Context, req PaidOrderRequest) (*Order, error) {
	d, err := s.paidDraft(ctx, req)
	if err != nil {
		return nil, err
	}

	discount := d.subtotal.Sub(req.AmountPaid)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	var (
		couponID   int64
		couponCode *string
	)
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		c, err := s.redemptions.GetByCode(ctx, code)
		switch {
		case err == nil:
			couponID = c.ID
			couponCode = &c.Code
		case errors.Is(err, coupon.ErrNotFound):
			zctx.From(ctx).Warn("Paid order references unknown coupon", zap.String("code", code))
		default:
			return nil, errors.Wrap(err, "get coupon")
		}
	}

	paymentID := req.PaymentID
	o := &Order{
		CustomerID:     req.CustomerID,
		PaymentID:      &paymentID,
		Status:         StatusPaid,
		Subtotal:       d.subtotal,
		DiscountAmount: discount.Round(2),
		TotalAmount:    req.AmountPaid.Round(2),
		CouponCode:     couponCode,
		Items:          d.items,
	}
	if err := s.commit(ctx, d, o, couponID, false); err != nil {
		return nil, err
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(o.Status))))
	if couponID != 0 {
		s.redeemed.Add(ctx, 1)
	}
	return o, nil
}

// paidDraft checks the captured lines against the current catalog. Prices
// stay as captured.
func (s *Service) paidDraft(ctx context.Context, req PaidOrderRequest) (*draft, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}

	ids := make([]int64, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == nil {
			return nil, errors.Wrapf(product.ErrNotFound, "%q", it.Name)
		}
		ids = append(ids, *it.ProductID)
	}
	fetched, err := s.stock.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	d := &draft{
		subtotal:  decimal.Zero,
		items:     make([]Item, 0, len(req.Items)),
		available: make(map[int64]int, len(req.Items)),
	}
	for _, it := range req.Items {
		p, ok := byID[*it.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "%q", it.Name)
		}
		if !p.IsAvailable {
			return nil, errors.Wrapf(product.ErrNotAvailable, "%q", it.Name)
		}
		d.available[p.ID] = p.AvailableQuantity
		it.ID, it.OrderID = 0, 0
		d.items = append(d.items, it)
		d.subtotal = d.subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		d.count++
	}
	d.subtotal = d.subtotal.Round(2)

	c, err := s.carts.GetByCustomer(ctx, req.CustomerID)
	switch {
	case err == nil:
		d.cartID = c.ID
	case !errors.Is(err, cart.ErrNotFound):
		return nil, errors.Wrap(err, "get cart")
	}
	return d, nil
}

// Get returns an order visible to the caller.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleAdmin && (caller.Role != auth.RoleCustomer || o.CustomerID != caller.ID) {
		return nil, ErrForbidden
	}
	return o, nil
}

// List returns the caller's orders newest first. Admins see every order.
func (s *Service) List(ctx context.Context, caller auth.Principal, status *Status, p pagination.Params) ([]Order, pagination.Info, error) {
	if status != nil && !status.Valid() {
		return nil, pagination.Info{}, ErrInvalidStatus
	}
	f := ListFilter{Status: status, Page: p.Normalize()}
	if caller.Role != auth.RoleAdmin {
		id := caller.ID
		f.CustomerID = &id
	}
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, pagination.Info{}, errors.Wrap(err, "list orders")
	}
	return orders, pagination.NewInfo(f.Page, total), nil
}

// UpdateStatus changes the status of an order owned by the caller, or of any
// order for admins. Cancelled and refunded orders are final.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Principal, id int64, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetStatus(ctx, id, status, openStatuses...); err != nil {
		return nil, errors.Wrap(err, "set order status")
	}
	o.Status = status
	s.Notify(ctx, event.OrderStatusUpdated, o)
	return o, nil
}

// Cancel cancels a pending order of the caller and puts its stock back.
func (s *Service) Cancel(ctx context.Context, caller auth.Principal, id int64) (_ *Order, err error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != auth.RoleCustomer || o.CustomerID != caller.ID {
		return nil, ErrForbidden
	}
	if o.Status != StatusPending {
		return nil, &StatusConflictError{Status: o.Status, Cancel: true}
	}

	// The guarded status change decides which of concurrent cancellations
	// restores the stock.
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.orders.SetStatus(ctx, id, StatusCancelled, StatusPending); err != nil {
			var conflict *StatusConflictError
			if errors.As(err, &conflict) {
				conflict.Cancel = true
			}
			return err
		}
		for _, it := range o.Items {
			if it.ProductID == nil {
				continue
			}
			if err := s.stock.IncrementStock(ctx, *it.ProductID, it.Quantity); err != nil {
				return errors.Wrapf(err, "restore stock of product %d", *it.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Status = StatusCancelled
	s.cancelled.Add(ctx, 1)
	s.Notify(ctx, event.OrderCancelled, o)
	return o, nil
}

// MarkRefunded moves the order settled by the payment to refunded. A payment
// without an order, or whose order is already refunded, is not an error.
func (s *Service) MarkRefunded(ctx context.Context, paymentID int64) (*Order, error) {
	o, err := s.orders.GetByPaymentID(ctx, paymentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	err = s.orders.SetStatus(ctx, o.ID, StatusRefunded, StatusPending, StatusPaid, StatusCancelled)
	var conflict *StatusConflictError
	if errors.As(err, &conflict) {
		return o, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "set order refunded")
	}
	o.Status = StatusRefunded
	return o, nil
}

// Notify publishes an event about o. Failures are logged, never returned.
func (s *Service) Notify(ctx context.Context, typ event.Type, o *Order) {
	e := NewEvent(typ, o)
	if err := s.pub.Publish(ctx, e); err != nil {
		zctx.From(ctx).Error("Failed to publish order event",
			zap.String("type", string(typ)),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// NewEvent converts an order into an event of the given type.
func NewEvent(typ event.Type, o *Order) event.Event {
	e := event.New(typ)
	e.OrderID = o.ID
	e.CustomerID = o.CustomerID
	e.Status = string(o.Status)
	e.TotalAmount = o.TotalAmount
	e.Items = make([]event.Item, len(o.Items))
	for i, it := range o.Items {
		var productID int64
		if it.ProductID != nil {
			productID = *it.ProductID
		}
		e.Items[i] = event.Item{
			ProductID:  productID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
			VendorType: string(it.VendorType),
			VendorID:   it.VendorID,
		}
	}
	return e
}
