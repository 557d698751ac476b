package orders

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusRefunded  OrderStatus = "Refunded"
)

// Only Pending -> Cancelled is driven from this package; the rest belong to
// payment and fulfillment.
var validNextOrder = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:   {OrderStatusPaid: true, OrderStatusCancelled: true},
	OrderStatusPaid:      {OrderStatusShipped: true, OrderStatusRefunded: true},
	OrderStatusShipped:   {OrderStatusDelivered: true},
	OrderStatusDelivered: {OrderStatusRefunded: true},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return validNextOrder[s][to]
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "Unpaid"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "Active"
	ReservationCancelled ReservationStatus = "Cancelled"
	ReservationFulfilled ReservationStatus = "Fulfilled"
)

var validNextReservation = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationActive:    {ReservationCancelled: true, ReservationFulfilled: true},
	ReservationCancelled: {},
	ReservationFulfilled: {},
}

func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	return validNextReservation[s][to]
}

func (s ReservationStatus) Terminal() bool {
	return len(validNextReservation[s]) == 0
}
