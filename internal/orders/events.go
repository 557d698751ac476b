package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order number
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderNumber   string          `json:"order_number"`
	CustomerEmail string          `json:"customer_email"`
	Items         []ItemLine      `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

type OrderCancelledPayload struct {
	OrderNumber   string    `json:"order_number"`
	CustomerEmail string    `json:"customer_email"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func NewOrderCreatedPayload(res CreateOrderResult, email string) OrderCreatedPayload {
	lines := make([]ItemLine, 0, len(res.Items))
	for _, it := range res.Items {
		lines = append(lines, ItemLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return OrderCreatedPayload{
		OrderNumber:   res.OrderNumber,
		CustomerEmail: email,
		Items:         lines,
		TotalPrice:    res.TotalPrice,
	}
}
