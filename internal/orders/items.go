package orders

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// MergeItems collapses duplicate product entries by summing their quantities.
// The result is sorted by product id so concurrent creations lock product rows
// in the same order.
func MergeItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	qty := make(map[int64]int, len(items))
	for _, it := range items {
		sum := int64(qty[it.ProductID]) + int64(it.Quantity)
		// quantity columns are INTEGER
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return nil, &ProductError{ProductID: it.ProductID, Err: ErrInvalidQuantity}
		}
		qty[it.ProductID] = int(sum)
	}
	out := make([]ItemInput, 0, len(qty))
	for id, q := range qty {
		if q <= 0 {
			return nil, &ProductError{ProductID: id, Err: ErrInvalidQuantity}
		}
		out = append(out, ItemInput{ProductID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func productIDs(items []ItemInput) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// ValidateItems checks merged items against a product snapshot. The first
// failing item decides the error.
func ValidateItems(items []ItemInput, products map[int64]Product) error {
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return &ProductError{ProductID: it.ProductID, Err: ErrProductNotFound}
		}
		if p.IsDeleted {
			return &ProductError{ProductID: it.ProductID, Err: ErrProductUnavailable}
		}
		if p.AvailableStock() < it.Quantity {
			return &ProductError{ProductID: it.ProductID, Err: ErrInsufficientStock}
		}
	}
	return nil
}

// TotalPrice sums unitPrice x quantity using the snapshot prices.
func TotalPrice(items []ItemInput, products map[int64]Product) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(products[it.ProductID].Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
