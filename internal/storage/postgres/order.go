package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/buzzer/internal/domain/auth"
	"github.com/xenking/buzzer/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(customer_id, address_id, payment_id, notes, subtotal, discount_amount, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, product_id, product_name, product_price, quantity, vendor_type, vendor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	orderSelect = `SELECT o.id, COALESCE(o.customer_id, 0), o.address_id, o.payment_id, o.status, o.notes,
		o.subtotal, o.discount_amount, o.total_amount, c.code, o.created_at, o.updated_at
		FROM orders o
		LEFT JOIN order_coupons oc ON oc.order_id = o.id
		LEFT JOIN coupons c ON c.id = oc.coupon_id`

	getOrderByIDSQL        = orderSelect + ` WHERE o.id = $1`
	getOrderByPaymentIDSQL = orderSelect + ` WHERE o.payment_id = $1 ORDER BY o.id DESC LIMIT 1`

	listOrderItemsSQL = `SELECT id, order_id, product_id, product_name, product_price, quantity, vendor_type, vendor_id
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	setOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`
	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.AddressID, &o.PaymentID, &o.Status, &o.Notes,
		&o.Subtotal, &o.DiscountAmount, &o.TotalAmount, &o.CouponCode, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it         order.Item
		vendorType string
	)
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Price, &it.Quantity, &vendorType, &it.VendorID)
	it.VendorType = auth.Role(vendorType)
	return it, err
}

// Create inserts the order and its items. Call it inside a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	conn := r.db.conn(ctx)

	var customerID *int64
	if o.CustomerID != 0 {
		customerID = &o.CustomerID
	}
	err := conn.QueryRow(ctx, insertOrderSQL,
		customerID, o.AddressID, o.PaymentID, o.Notes,
		o.Subtotal, o.DiscountAmount, o.TotalAmount, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating order for customer %d: %w", o.CustomerID, err)
	}
	if len(o.Items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		batch.Queue(insertOrderItemSQL,
			it.OrderID, it.ProductID, it.Name, it.Price, it.Quantity, string(it.VendorType), it.VendorID,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&it.ID)
		})
	}
	if err := conn.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating items of order %d: %w", o.ID, err)
	}
	return nil
}

// withItems loads the items of every order in orders.
func (r *OrderRepository) withItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.conn(ctx).Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}

func (r *OrderRepository) one(ctx context.Context, query string, id int64) (*order.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := collectOne(rows, scanOrder, order.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	orders := []order.Order{*o}
	if err := r.withItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// GetByID returns the order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.one(ctx, getOrderByIDSQL, id)
}

// GetByPaymentID returns the order placed for a payment.
func (r *OrderRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*order.Order, error) {
	return r.one(ctx, getOrderByPaymentIDSQL, paymentID)
}

// List returns a page of orders, newest first, with their items.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.CustomerID != nil {
		args = append(args, *f.CustomerID)
		conds = append(conds, "o.customer_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, "o.status = $"+strconv.Itoa(len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	page := f.Page.Normalize()
	n := len(args)
	query := orderSelect + where + fmt.Sprintf(` ORDER BY o.id DESC LIMIT $%d OFFSET $%d`, n+1, n+2)
	rows, err := r.db.conn(ctx).Query(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.withItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// SetStatus moves the order to status only from one of the from statuses.
func (r *OrderRepository) SetStatus(ctx context.Context, id int64, status order.Status, from ...order.Status) error {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	conn := r.db.conn(ctx)
	tag, err := conn.Exec(ctx, setOrderStatusSQL, id, string(status), allowed)
	if err != nil {
		return fmt.Errorf("setting status of order %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current order.Status
	if err := conn.QueryRow(ctx, getOrderStatusSQL, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("getting status of order %d: %w", id, err)
	}
	return &order.StatusConflictError{Status: current}
}
