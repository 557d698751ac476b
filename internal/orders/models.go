package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	IsDeleted     bool            `json:"isDeleted"`
	TotalStock    int             `json:"totalStock"`
	ReservedStock int             `json:"reservedStock"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastEdited    time.Time       `json:"lastEdited"`
}

func (p Product) AvailableStock() int { return p.TotalStock - p.ReservedStock }

type CustomerInfo struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

type Address struct {
	Street   string `json:"street" validate:"required"`
	City     string `json:"city" validate:"required"`
	Postcode string `json:"postcode" validate:"required"`
	Country  string `json:"country" validate:"required"`
}

// Order is the persisted aggregate. Customer and address are snapshots taken
// at creation and never re-derived.
type Order struct {
	ID                int64             `json:"-"`
	OrderNumber       string            `json:"orderNumber"`
	GuestToken        string            `json:"-"`
	OrderStatus       OrderStatus       `json:"orderStatus"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	ReservationStatus ReservationStatus `json:"reservationStatus"`
	Customer          CustomerInfo      `json:"customerInfo"`
	ShippingAddress   Address           `json:"shippingAddress"`
	TotalPrice        decimal.Decimal   `json:"totalPrice"`
	CreatedAt         time.Time         `json:"createdAt"`
	LastEdited        time.Time         `json:"lastEdited"`
	ReservedAt        time.Time         `json:"reservedAt"`
	CancelledAt       *time.Time        `json:"cancelledAt"`
	PaidAt            *time.Time        `json:"paidAt"`
	Items             []OrderItem       `json:"items"`
}

// Cancellable reports whether the order status allows cancellation and the
// order has not been paid for.
func (o *Order) Cancellable() bool {
	return o.OrderStatus.CanTransition(OrderStatusCancelled) && o.PaymentStatus != PaymentStatusPaid
}

type OrderItem struct {
	ID          int64           `json:"-"`
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

type ItemInput struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
}

type CreateOrderInput struct {
	Customer        CustomerInfo `json:"customerInfo"`
	ShippingAddress Address      `json:"address"`
	Items           []ItemInput  `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResult struct {
	OrderNumber   string          `json:"orderNumber"`
	GuestToken    string          `json:"guestToken"`
	OrderStatus   OrderStatus     `json:"orderStatus"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Items         []OrderItem     `json:"-"`
}

// OrderView is what a guest holding the order credentials may see.
type OrderView struct {
	OrderNumber   string          `json:"orderNumber"`
	OrderStatus   OrderStatus     `json:"orderStatus"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Items         []OrderViewItem `json:"items"`
}

type OrderViewItem struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type CancelOrderResult struct {
	OrderNumber   string      `json:"orderNumber"`
	OrderStatus   OrderStatus `json:"orderStatus"`
	CancelledAt   time.Time   `json:"-"`
	CustomerEmail string      `json:"-"`
}

func (o *Order) View() OrderView {
	items := make([]OrderViewItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderViewItem{ProductName: it.ProductName, Quantity: it.Quantity})
	}
	return OrderView{
		OrderNumber:   o.OrderNumber,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
		Items:         items,
	}
}
