package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ornamenta/jewelstore/internal/catalog"
	kafkax "github.com/ornamenta/jewelstore/internal/kafka"
	"github.com/ornamenta/jewelstore/internal/inventory"
	"github.com/ornamenta/jewelstore/internal/orders"
	"github.com/ornamenta/jewelstore/internal/redisx"
)

// EventPublisher is satisfied by *kafka.Producer; tests substitute a capture.
type EventPublisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// OrdersHandler exposes the order workflow over HTTP. Producer and Redis are
// optional: events and caching are skipped when nil.
type OrdersHandler struct {
	Engine   *orders.Engine
	Producer EventPublisher
	Redis    *redis.Client
	Log      *zap.Logger
	Service  string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/stats", h.stats)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.getStatus)
		r.Post("/", h.create)
		r.Patch("/{id}/status", h.updateStatus)
		r.Patch("/{id}/cancel", h.cancel)
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var in orders.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, created, err := h.Engine.Checkout(ctx, in)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	if created {
		h.publish(orders.TopicOrderCreated, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
			OrderID:        o.ID,
			IdempotencyKey: o.IdempotencyKey,
			Status:         o.Status,
			Total:          o.Total,
			Items:          orders.ToItemQtys(o.Items),
		})
		h.cacheStatus(ctx, o.ID, o.Status)
		if h.Redis != nil && o.IdempotencyKey != "" {
			key := fmt.Sprintf(redisx.KeyIdemCheckout, o.IdempotencyKey)
			_ = h.Redis.Set(ctx, key, o.ID, redisx.TTLIdempotency).Err()
		}
		writeJSON(w, http.StatusCreated, o)
		return
	}
	// Idempotent replay of a previously committed order.
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var (
		verr  *orders.ValidationError
		stock *inventory.InsufficientStockError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &stock):
		writeError(w, http.StatusBadRequest, stock.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error("checkout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Engine.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus serves from the Redis cache the worker maintains, falling back
// to the store on a miss.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, id)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Engine.Get(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := orders.ListFilter{
		SortBy: q.Get("sortBy"),
		Desc:   q.Get("order") != "asc", // desc unless explicitly ascending
	}
	if s := q.Get("status"); s != "" {
		st, err := orders.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Status = st
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Engine.List(ctx, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.UpdateStatus(ctx, chi.URLParam(r, "id"), body.Status)
	var verr *orders.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publish(orders.TopicOrderStatusChanged, orders.EventOrderStatusChanged, o.ID,
		orders.OrderStatusChangedPayload{OrderID: o.ID, Status: o.Status})
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.Cancel(ctx, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "Order not found")
		return
	case errors.Is(err, orders.ErrCancelCompleted):
		writeError(w, http.StatusBadRequest, "Cannot cancel completed order")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.publish(orders.TopicOrderCancelled, orders.EventOrderCancelled, o.ID,
		orders.OrderCancelledPayload{OrderID: o.ID, Restocked: orders.ToItemQtys(o.Items)})
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := h.Engine.Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *OrdersHandler) publish(topic, eventType, orderID string, payload any) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	h.Producer.Publish(topic, orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": st})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
