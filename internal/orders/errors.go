package orders

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidQuantity     = errors.New("quantity must be greater than 0")
	ErrNoItems             = errors.New("order must contain items")
	ErrInvalidOrder        = errors.New("invalid order credentials")
	ErrOrderNotCancellable = errors.New("order not cancellable")
	ErrOrderCancelConflict = errors.New("unable to cancel order due to inventory conflict")
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// KindOf classifies err so the transport layer can pick a response without
// looking at messages.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrInvalidOrder):
		return KindNotFound
	case errors.Is(err, ErrProductUnavailable),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrOrderNotCancellable),
		errors.Is(err, ErrOrderCancelConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNoItems):
		return KindValidation
	default:
		return KindInternal
	}
}

// ProductError ties a reservation failure to the product that caused it.
type ProductError struct {
	ProductID int64
	Err       error
}

func (e *ProductError) Error() string {
	switch e.Err {
	case ErrProductNotFound:
		return fmt.Sprintf("Product %d was not found.", e.ProductID)
	case ErrProductUnavailable:
		return fmt.Sprintf("Product %d is unavailable.", e.ProductID)
	case ErrInsufficientStock:
		return fmt.Sprintf("Insufficient stock for product %d", e.ProductID)
	case ErrInvalidQuantity:
		return fmt.Sprintf("Quantity for product %d must be greater than 0.", e.ProductID)
	}
	return fmt.Sprintf("product %d: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error { return e.Err }

type OrderError struct {
	OrderNumber string
	Err         error
}

func (e *OrderError) Error() string {
	if e.Err == ErrOrderNotCancellable {
		return fmt.Sprintf("Order: %s is unable to be cancelled.", e.OrderNumber)
	}
	return fmt.Sprintf("order %s: %v", e.OrderNumber, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }
