package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Order statuses used by the checkout and payment flows.
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusCancelled      = "CANCELLED"
)

// Order is the persisted order record with its frozen totals breakdown.
type Order struct {
	ID                pgtype.UUID
	UserID            pgtype.UUID
	Status            string
	Currency          string
	PricingSubtotal   int64
	PricingDiscount   int64
	PricingTax        int64
	PricingShipping   int64
	PricingTotal      int64
	AppliedCouponCode pgtype.Text
	CreatedAt         pgtype.Timestamptz
}

// OrderItem is an immutable order line. UnitPrice and LineTotal are the
// amounts actually charged, frozen at order creation.
type OrderItem struct {
	ID          pgtype.UUID
	OrderID     pgtype.UUID
	ProductID   pgtype.UUID
	Title       string
	Slug        string
	VariantName pgtype.Text
	SizeName    pgtype.Text
	Qty         int32
	UnitPrice   int64
	LineTotal   int64
}

const orderColumns = `id, user_id, status, currency, pricing_subtotal, pricing_discount, pricing_tax, pricing_shipping, pricing_total, applied_coupon_code, created_at`

func scanOrder(row scanner, o *Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.Status, &o.Currency,
		&o.PricingSubtotal, &o.PricingDiscount, &o.PricingTax, &o.PricingShipping, &o.PricingTotal,
		&o.AppliedCouponCode, &o.CreatedAt)
}

// CreateOrderParams holds the fields persisted for a new order.
type CreateOrderParams struct {
	UserID            pgtype.UUID
	Status            string
	Currency          string
	PricingSubtotal   int64
	PricingDiscount   int64
	PricingTax        int64
	PricingShipping   int64
	PricingTotal      int64
	AppliedCouponCode pgtype.Text
}

const createOrder = `
INSERT INTO orders (user_id, status, currency, pricing_subtotal, pricing_discount, pricing_tax, pricing_shipping, pricing_total, applied_coupon_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns

// CreateOrder inserts a new order and returns the stored row.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	var o Order
	err := scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.UserID, arg.Status, arg.Currency,
		arg.PricingSubtotal, arg.PricingDiscount, arg.PricingTax, arg.PricingShipping, arg.PricingTotal,
		arg.AppliedCouponCode), &o)
	return o, err
}

// CreateOrderItemParams holds the fields persisted for one order line.
type CreateOrderItemParams struct {
	OrderID     pgtype.UUID
	ProductID   pgtype.UUID
	Title       string
	Slug        string
	VariantName pgtype.Text
	SizeName    pgtype.Text
	Qty         int32
	UnitPrice   int64
	LineTotal   int64
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, title, slug, variant_name, size_name, qty, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// CreateOrderItem inserts one immutable order line.
func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, createOrderItem,
		arg.OrderID, arg.ProductID, arg.Title, arg.Slug,
		arg.VariantName, arg.SizeName, arg.Qty, arg.UnitPrice, arg.LineTotal)
	return err
}

const getOrderByID = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

// GetOrderByID fetches a single order.
func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	var o Order
	err := scanOrder(q.db.QueryRow(ctx, getOrderByID, id), &o)
	return o, err
}

const listOrdersByUser = `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

// ListOrdersByUser returns a page of a user's orders, newest first.
func (q *Queries) ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const listOrderItems = `
SELECT id, order_id, product_id, title, slug, variant_name, size_name, qty, unit_price, line_total
FROM order_items
WHERE order_id = $1
ORDER BY id
`

// ListOrderItems returns the frozen lines of an order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.Slug,
			&it.VariantName, &it.SizeName, &it.Qty, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const markOrderPaid = `
UPDATE orders
SET status = $2
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

// MarkOrderPaid transitions a pending order to PAID. It reports pgx.ErrNoRows
// when the order is missing or already settled, which callers treat as a
// replayed confirmation.
func (q *Queries) MarkOrderPaid(ctx context.Context, id pgtype.UUID) (Order, error) {
	var o Order
	err := scanOrder(q.db.QueryRow(ctx, markOrderPaid, id, OrderStatusPaid, OrderStatusPendingPayment), &o)
	return o, err
}
