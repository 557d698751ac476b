package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repo runs the order-lifecycle transactions. Every multi-row mutation is one
// pgx transaction; an early return rolls back everything written so far.
type Repo struct {
	DB  DB
	Now func() time.Time
}

func (r *Repo) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

const orderColumns = `id, order_number, guest_token, order_status, payment_status, reservation_status,
	created_at, last_edited, reserved_at, cancelled_at, paid_at, total_price,
	customer_first_name, customer_last_name, customer_email, customer_phone,
	ship_street, ship_city, ship_postcode, ship_country`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.GuestToken, &o.OrderStatus, &o.PaymentStatus, &o.ReservationStatus,
		&o.CreatedAt, &o.LastEdited, &o.ReservedAt, &o.CancelledAt, &o.PaidAt, &o.TotalPrice,
		&o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.Postcode, &o.ShippingAddress.Country,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrderTx validates, reserves and persists a new order all-or-nothing.
func (r *Repo) CreateOrderTx(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	items, err := MergeItems(in.Items)
	if err != nil {
		return CreateOrderResult{}, err
	}
	token, err := NewGuestToken()
	if err != nil {
		return CreateOrderResult{}, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CreateOrderResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := r.now()
	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(
			guest_token, created_at, last_edited,
			order_status, payment_status, reservation_status, reserved_at,
			customer_first_name, customer_last_name, customer_email, customer_phone,
			ship_street, ship_city, ship_postcode, ship_country)
		VALUES ($1, $2, $2, $3, $4, $5, $2, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		token, now,
		OrderStatusPending, PaymentStatusUnpaid, ReservationActive,
		in.Customer.FirstName, in.Customer.LastName, in.Customer.Email, in.Customer.Phone,
		in.ShippingAddress.Street, in.ShippingAddress.City, in.ShippingAddress.Postcode, in.ShippingAddress.Country,
	).Scan(&orderID)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("insert order: %w", err)
	}

	// identity is only known after insert
	orderNumber := FormatOrderNumber(orderID)
	if _, err := tx.Exec(ctx, `UPDATE orders SET order_number = $2 WHERE id = $1`, orderID, orderNumber); err != nil {
		return CreateOrderResult{}, fmt.Errorf("set order number: %w", err)
	}

	stock := ReservationRepo{Q: tx}
	products, err := stock.LookupProducts(ctx, productIDs(items))
	if err != nil {
		return CreateOrderResult{}, err
	}
	if err := ValidateItems(items, products); err != nil {
		return CreateOrderResult{}, err
	}

	// stock may have moved since the lookup; the conditional write decides
	for _, it := range items {
		if err := stock.TryReserve(ctx, it.ProductID, it.Quantity); err != nil {
			return CreateOrderResult{}, err
		}
	}

	lines := make([]OrderItem, 0, len(items))
	for _, it := range items {
		p := products[it.ProductID]
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, product_name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			orderID, it.ProductID, p.Name, p.Price, it.Quantity); err != nil {
			return CreateOrderResult{}, fmt.Errorf("insert order item: %w", err)
		}
		lines = append(lines, OrderItem{
			OrderID:     orderID,
			ProductID:   it.ProductID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    it.Quantity,
		})
	}

	total := TotalPrice(items, products)
	if _, err := tx.Exec(ctx, `UPDATE orders SET total_price = $2 WHERE id = $1`, orderID, total); err != nil {
		return CreateOrderResult{}, fmt.Errorf("set total price: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateOrderResult{}, err
	}
	return CreateOrderResult{
		OrderNumber:   orderNumber,
		GuestToken:    token,
		OrderStatus:   OrderStatusPending,
		PaymentStatus: PaymentStatusUnpaid,
		TotalPrice:    total,
		Items:         lines,
	}, nil
}

// GetOrder returns the guest view. A wrong number and a wrong token are
// reported identically.
func (r *Repo) GetOrder(ctx context.Context, orderNumber, guestToken string) (OrderView, error) {
	o, err := r.findOrder(ctx, r.DB, `order_number = $1 AND guest_token = $2`, orderNumber, guestToken)
	if err != nil {
		return OrderView{}, err
	}
	if o.Items, err = loadItems(ctx, r.DB, o.ID); err != nil {
		return OrderView{}, err
	}
	return o.View(), nil
}

// CancelOrderTx releases the order's reservations and flips it to Cancelled
// in one transaction.
func (r *Repo) CancelOrderTx(ctx context.Context, orderNumber, guestToken string) (CancelOrderResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return CancelOrderResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.findOrder(ctx, tx, `order_number = $1 AND guest_token = $2`, orderNumber, guestToken)
	if err != nil {
		return CancelOrderResult{}, err
	}
	if !o.Cancellable() {
		return CancelOrderResult{}, &OrderError{OrderNumber: o.OrderNumber, Err: ErrOrderNotCancellable}
	}
	if !o.ReservationStatus.CanTransition(ReservationCancelled) {
		return CancelOrderResult{}, ErrOrderCancelConflict
	}

	// compare-and-set against the state just read; a concurrent cancel that
	// committed first leaves zero rows here
	now := r.now()
	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $2, reservation_status = $3, cancelled_at = $4, last_edited = $4
		WHERE id = $1 AND order_status = $5 AND payment_status = $6 AND reservation_status = $7`,
		o.ID, OrderStatusCancelled, ReservationCancelled, now,
		o.OrderStatus, o.PaymentStatus, o.ReservationStatus)
	if err != nil {
		return CancelOrderResult{}, fmt.Errorf("cancel order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return CancelOrderResult{}, ErrOrderCancelConflict
	}

	items, err := loadItems(ctx, tx, o.ID)
	if err != nil {
		return CancelOrderResult{}, err
	}
	stock := ReservationRepo{Q: tx}
	for _, it := range items {
		if err := stock.Release(ctx, it.ProductID, it.Quantity); err != nil {
			return CancelOrderResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelOrderResult{}, err
	}
	return CancelOrderResult{
		OrderNumber:   o.OrderNumber,
		OrderStatus:   OrderStatusCancelled,
		CancelledAt:   now,
		CustomerEmail: o.Customer.Email,
	}, nil
}

// StaffGetOrder loads the full projection without a guest token.
func (r *Repo) StaffGetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := r.findOrder(ctx, r.DB, `order_number = $1`, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE order_number IS NOT NULL ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(out))
	idx := make(map[int64]int, len(out))
	for i := range out {
		ids = append(ids, out[i].ID)
		idx[out[i].ID] = i
		out[i].Items = []OrderItem{}
	}
	items, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var it OrderItem
		if err := items.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		i := idx[it.OrderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, items.Err()
}

func (r *Repo) findOrder(ctx context.Context, q Querier, where string, args ...any) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidOrder
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

func loadItems(ctx context.Context, q Querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
