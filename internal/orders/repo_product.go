package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type NewProduct struct {
	Name       string          `json:"name" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	TotalStock int             `json:"totalStock" validate:"gte=0"`
}

// ProductPatch carries the fields to change; nil means keep.
type ProductPatch struct {
	Name  *string          `json:"name" validate:"omitempty,min=1"`
	Price *decimal.Decimal `json:"price"`
}

// ProductRepo is the catalog side of the products table.
type ProductRepo struct{ DB Querier }

const productColumns = `id, name, price, is_deleted, total_stock, reserved_stock, created_at, last_edited`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.IsDeleted, &p.TotalStock, &p.ReservedStock, &p.CreatedAt, &p.LastEdited); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepo) Create(ctx context.Context, np NewProduct) (*Product, error) {
	if np.Price.IsNegative() {
		return nil, fmt.Errorf("create product: price must be >= 0")
	}
	p, err := scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products(name, price, total_stock, reserved_stock)
		VALUES ($1, $2, $3, 0)
		RETURNING `+productColumns, np.Name, np.Price, np.TotalStock))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE is_deleted = false ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND is_deleted = false`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ProductError{ProductID: id, Err: ErrProductNotFound}
	}
	return p, err
}

// Update changes name and/or price. last_edited only moves when a value
// actually differs.
func (r *ProductRepo) Update(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, fmt.Errorf("update product: price must be >= 0")
	}
	_, err := r.DB.Exec(ctx, `
		UPDATE products
		SET name = COALESCE($2::text, name),
		    price = COALESCE($3::numeric, price),
		    last_edited = now()
		WHERE id = $1
		  AND is_deleted = false
		  AND (($2::text IS NOT NULL AND $2::text <> name) OR ($3::numeric IS NOT NULL AND $3::numeric <> price))`,
		id, patch.Name, patch.Price)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return r.Get(ctx, id)
}

// SoftDelete flags the product; existing reservations against it stay valid.
func (r *ProductRepo) SoftDelete(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET is_deleted = true, last_edited = now()
		WHERE id = $1 AND is_deleted = false`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return &ProductError{ProductID: id, Err: ErrProductNotFound}
	}
	return nil
}
