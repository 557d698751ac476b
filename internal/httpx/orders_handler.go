package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/ariefcatur/go-inventory-orders/internal/kafka"
	"github.com/ariefcatur/go-inventory-orders/internal/metrics"
	"github.com/ariefcatur/go-inventory-orders/internal/orders"
	"github.com/ariefcatur/go-inventory-orders/internal/redisx"
)

const (
	headerGuestToken  = "X-Guest-Token"
	headerIdempotency = "Idempotency-Key"
)

// OrderStore is satisfied by *orders.Repo.
type OrderStore interface {
	CreateOrderTx(ctx context.Context, in orders.CreateOrderInput) (orders.CreateOrderResult, error)
	GetOrder(ctx context.Context, orderNumber, guestToken string) (orders.OrderView, error)
	CancelOrderTx(ctx context.Context, orderNumber, guestToken string) (orders.CancelOrderResult, error)
	StaffGetOrder(ctx context.Context, orderNumber string) (*orders.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]orders.Order, error)
}

// OrdersHandler serves guest checkout and lookup plus the staff order views.
// Cache, publishers and metrics are optional.
type OrdersHandler struct {
	Orders    OrderStore
	Cache     *redisx.Cache
	Created   kafkax.Publisher
	Cancelled kafkax.Publisher
	Metrics   *metrics.Metrics
	Service   string
}

func (h *OrdersHandler) Register(r chi.Router, staff func(http.Handler) http.Handler) {
	r.Post("/orders/create", h.createOrder)
	r.Get("/orders/{orderNumber}", h.getOrder)
	r.Post("/orders/{orderNumber}/cancel", h.cancelOrder)
	r.With(staff).Get("/orders", h.staffListOrders)

	r.Route("/staff/orders", func(r chi.Router) {
		r.Use(staff)
		r.Get("/", h.staffListOrders)
		r.Get("/{orderNumber}", h.staffGetOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateOrderInput
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fe := validateStruct(in); fe != nil {
		writeValidation(w, fe)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Replay a previous checkout carrying the same key instead of reserving twice.
	idemKey := r.Header.Get(headerIdempotency)
	if idemKey != "" && h.Cache != nil {
		var prev orders.CreateOrderResult
		if ok, err := h.Cache.GetIdempotent(ctx, idemKey, &prev); err != nil {
			log.WithError(err).Warn("idempotency lookup")
		} else if ok {
			w.Header().Set("Location", "/orders/"+prev.OrderNumber)
			writeJSON(w, http.StatusOK, prev)
			return
		}
	}

	res, err := h.Orders.CreateOrderTx(ctx, in)
	if err != nil {
		h.failure("create", err)
		writeDomainError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.OrdersCreated.Inc()
	}

	if idemKey != "" && h.Cache != nil {
		if err := h.Cache.SetIdempotent(ctx, idemKey, res); err != nil {
			log.WithError(err).Warn("idempotency store")
		}
	}

	h.publish(r, h.Created, res.OrderNumber, orders.EventOrderCreated,
		orders.NewOrderCreatedPayload(res, in.Customer.Email))

	w.Header().Set("Location", "/orders/"+res.OrderNumber)
	writeJSON(w, http.StatusCreated, res)
}

func guestCredentials(r *http.Request) (string, string, FieldErrors) {
	number := chi.URLParam(r, "orderNumber")
	token := r.Header.Get(headerGuestToken)
	fe := FieldErrors{}
	if number == "" {
		fe.Add("orderNumber", "Order number cannot be empty.")
	}
	if token == "" {
		fe.Add("guestToken", "Guest token cannot be empty.")
	}
	if len(fe) > 0 {
		return "", "", fe
	}
	return number, token, nil
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	number, token, fe := guestCredentials(r)
	if fe != nil {
		writeValidation(w, fe)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		var cached orders.OrderView
		if ok, err := h.Cache.GetOrderView(ctx, number, token, &cached); err != nil {
			log.WithError(err).Warn("order view cache get")
		} else if ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	view, err := h.Orders.GetOrder(ctx, number, token)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// A pending order may be cancelled while this read is in flight; caching
	// it could outlive the cancel's eviction.
	if h.Cache != nil && view.OrderStatus != orders.OrderStatusPending {
		if err := h.Cache.SetOrderView(ctx, number, token, view); err != nil {
			log.WithError(err).Warn("order view cache set")
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	number, token, fe := guestCredentials(r)
	if fe != nil {
		writeValidation(w, fe)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Orders.CancelOrderTx(ctx, number, token)
	if err != nil {
		h.failure("cancel", err)
		writeDomainError(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.OrdersCancelled.Inc()
	}

	if h.Cache != nil {
		if err := h.Cache.InvalidateOrderView(ctx, number, token); err != nil {
			log.WithError(err).Warn("order view cache invalidate")
		}
	}

	h.publish(r, h.Cancelled, res.OrderNumber, orders.EventOrderCancelled, orders.OrderCancelledPayload{
		OrderNumber:   res.OrderNumber,
		CustomerEmail: res.CustomerEmail,
		CancelledAt:   res.CancelledAt,
	})

	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) staffListOrders(w http.ResponseWriter, r *http.Request) {
	fe := FieldErrors{}
	limit := queryInt(r, "limit", 50, fe)
	offset := queryInt(r, "offset", 0, fe)
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) staffGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.StaffGetOrder(ctx, chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func queryInt(r *http.Request, key string, def int, fe FieldErrors) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		fe.Add(key, key+" must be a non-negative integer.")
		return def
	}
	return n
}

func (h *OrdersHandler) failure(op string, err error) {
	if h.Metrics != nil {
		h.Metrics.Failure(op, orders.KindOf(err).String())
	}
}

// publish runs after commit; a broker problem never changes the response.
func (h *OrdersHandler) publish(r *http.Request, p kafkax.Publisher, orderNumber, eventType string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       middleware.GetReqID(r.Context()),
		CorrelationID: orderNumber,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderNumber), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
