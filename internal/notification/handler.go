package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-inventory-orders/internal/kafka"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
)

// Notice is one customer-facing message derived from an order event.
type Notice struct {
	EventID     string
	OrderNumber string
	Email       string
	Subject     string
	Body        string
}

// Handler turns order events into customer notices, once per successfully
// delivered event id.
type Handler struct {
	Redis       redis.Cmdable
	ServiceName string
	// Send delivers a notice; nil logs it.
	Send func(ctx context.Context, n Notice) error
}

func (h *Handler) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	var (
		n   Notice
		err error
	)
	switch env.EventType {
	case orders.EventOrderCreated:
		n, err = createdNotice(env)
	case orders.EventOrderCancelled:
		n, err = cancelledNotice(env)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	key := fmt.Sprintf(redisx.KeyDedup, h.ServiceName, env.EventID)
	seen, err := redisx.Exists(ctx, h.Redis, key)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if seen {
		log.WithFields(log.Fields{"event_id": env.EventID, "order": n.OrderNumber}).Debug("duplicate event skipped")
		return nil
	}

	// Mark only after delivery so a failed send is retried on redelivery.
	if err := h.send(ctx, n); err != nil {
		return err
	}
	if _, err := redisx.MarkOnce(ctx, h.Redis, key); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	return nil
}

func (h *Handler) send(ctx context.Context, n Notice) error {
	if h.Send != nil {
		return h.Send(ctx, n)
	}
	log.WithFields(log.Fields{
		"event_id": n.EventID,
		"order":    n.OrderNumber,
		"to":       n.Email,
		"subject":  n.Subject,
	}).Info(n.Body)
	return nil
}

func createdNotice(env orders.Envelope) (Notice, error) {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return Notice{}, err
	}
	units := 0
	for _, it := range p.Items {
		units += it.Quantity
	}
	return Notice{
		EventID:     env.EventID,
		OrderNumber: p.OrderNumber,
		Email:       p.CustomerEmail,
		Subject:     "Order " + p.OrderNumber + " received",
		Body:        fmt.Sprintf("Your order %s for %d item(s) totalling %s has been reserved.", p.OrderNumber, units, p.TotalPrice.StringFixed(2)),
	}, nil
}

func cancelledNotice(env orders.Envelope) (Notice, error) {
	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		return Notice{}, err
	}
	return Notice{
		EventID:     env.EventID,
		OrderNumber: p.OrderNumber,
		Email:       p.CustomerEmail,
		Subject:     "Order " + p.OrderNumber + " cancelled",
		Body:        fmt.Sprintf("Your order %s was cancelled at %s.", p.OrderNumber, p.CancelledAt.UTC().Format("2006-01-02 15:04 MST")),
	}, nil
}
