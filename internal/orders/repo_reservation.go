package orders

import (
	"context"
	"fmt"
)

// ReservationRepo is the stock primitive. It runs on whatever Querier it is
// given, normally the transaction of the enclosing order operation.
type ReservationRepo struct{ Q Querier }

// LookupProducts loads the referenced products, deleted ones included, so the
// caller can tell "not found" from "unavailable".
func (r ReservationRepo) LookupProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	rows, err := r.Q.Query(ctx, `
		SELECT id, name, price, is_deleted, total_stock, reserved_stock, created_at, last_edited
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.IsDeleted, &p.TotalStock, &p.ReservedStock, &p.CreatedAt, &p.LastEdited); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// TryReserve adds qty to reserved_stock in a single conditional write. The
// WHERE clause re-checks existence, the soft-delete flag and availability at
// write time; zero affected rows means the reservation lost and nothing changed.
func (r ReservationRepo) TryReserve(ctx context.Context, productID int64, qty int) error {
	ct, err := r.Q.Exec(ctx, `
		UPDATE products
		SET reserved_stock = reserved_stock + $2, last_edited = now()
		WHERE id = $1 AND is_deleted = false AND (total_stock - reserved_stock) >= $2`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("reserve product %d: %w", productID, err)
	}
	if ct.RowsAffected() != 1 {
		return &ProductError{ProductID: productID, Err: ErrInsufficientStock}
	}
	return nil
}

// Release gives back qty previously taken by TryReserve.
func (r ReservationRepo) Release(ctx context.Context, productID int64, qty int) error {
	ct, err := r.Q.Exec(ctx, `
		UPDATE products
		SET reserved_stock = reserved_stock - $2, last_edited = now()
		WHERE id = $1`,
		productID, qty)
	if err != nil {
		return fmt.Errorf("release product %d: %w", productID, err)
	}
	if ct.RowsAffected() != 1 {
		return &ProductError{ProductID: productID, Err: ErrProductNotFound}
	}
	return nil
}
