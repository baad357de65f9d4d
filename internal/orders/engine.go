package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ornamenta/jewelstore/internal/catalog"
)

// Store is the durable order record. Insert must enforce at most one order
// per idempotency key and report a collision as ErrDuplicateKey.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByKey(ctx context.Context, key string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	SetStatus(ctx context.Context, id string, st Status) (*Order, error)
	// MarkCancelled flips status to cancelled only when the current status is
	// neither cancelled nor completed, and reports whether this call claimed
	// the transition. The claim is what keeps restock from running twice.
	MarkCancelled(ctx context.Context, id string) (*Order, bool, error)
	Stats(ctx context.Context) (*Stats, error)
}

// StockLedger is the inventory side of checkout: atomic conditional
// decrement and unconditional restock.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, qty int) (int, error)
	Release(ctx context.Context, productID string, qty int) error
}

type CatalogReader interface {
	Get(ctx context.Context, id string) (*catalog.Product, error)
}

type ListFilter struct {
	Status Status
	SortBy string // createdAt | updatedAt | total | status
	Desc   bool
}

type StatusStat struct {
	Status       Status  `json:"_id"`
	Count        int     `json:"count"`
	TotalRevenue float64 `json:"totalRevenue"`
}

type Stats struct {
	StatusBreakdown []StatusStat `json:"statusBreakdown"`
	TotalOrders     int          `json:"totalOrders"`
	TotalRevenue    float64      `json:"totalRevenue"` // non-cancelled only
}

// Engine turns a submitted cart into a durable order without ever leaving a
// partial stock reservation behind, and owns the order status lifecycle.
type Engine struct {
	store   Store
	ledger  StockLedger
	catalog CatalogReader
	log     *zap.Logger
}

func NewEngine(store Store, ledger StockLedger, cat CatalogReader, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, ledger: ledger, catalog: cat, log: log}
}

// Checkout validates the cart, reserves stock for every line item and
// persists the order. created is false when an idempotent retry resolved to
// a previously committed order.
func (e *Engine) Checkout(ctx context.Context, in CheckoutInput) (o *Order, created bool, err error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}

	// Idempotent retry: same key, same order, no mutation.
	if in.IdempotencyKey != "" {
		prior, err := e.store.FindByKey(ctx, in.IdempotencyKey)
		if err == nil {
			e.enrich(ctx, prior)
			return prior, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	// Validation pass: collect every missing product and shortage before
	// failing, and mutate nothing until all items look satisfiable.
	verr := &ValidationError{}
	for _, it := range in.Items {
		p, err := e.catalog.Get(ctx, it.ProductID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			verr.add(it.ProductID, "Product %s not found", itemName(it))
		case err != nil:
			return nil, false, err
		case p.Stock < it.Quantity:
			verr.add(it.ProductID, "Insufficient stock for %s. Available: %d", p.Name, p.Stock)
		}
	}
	if err := verr.orNil(); err != nil {
		if prior := e.priorByKey(ctx, in.IdempotencyKey); prior != nil {
			return prior, false, nil
		}
		return nil, false, err
	}

	// Reservation with compensation: another checkout may have consumed the
	// stock between validation and here, so any reservation already applied
	// in this call is released before the failure surfaces.
	reserved := make([]LineItem, 0, len(in.Items))
	rollback := func() {
		ctx := context.WithoutCancel(ctx)
		for _, it := range reserved {
			if err := e.ledger.Release(ctx, it.ProductID, it.Quantity); err != nil {
				e.log.Error("reservation rollback failed",
					zap.String("product_id", it.ProductID), zap.Int("quantity", it.Quantity), zap.Error(err))
			}
		}
	}
	for _, it := range in.Items {
		if _, err := e.ledger.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			rollback()
			if prior := e.priorByKey(ctx, in.IdempotencyKey); prior != nil {
				return prior, false, nil
			}
			return nil, false, err
		}
		reserved = append(reserved, it)
	}

	now := time.Now().UTC()
	o = &Order{
		ID:             uuid.NewString(),
		IdempotencyKey: in.IdempotencyKey,
		Customer:       in.Customer,
		Items:          snapshotItems(in.Items),
		Total:          in.Total,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.Insert(ctx, o); err != nil {
		rollback()
		if errors.Is(err, ErrDuplicateKey) && in.IdempotencyKey != "" {
			// A concurrent submission with the same key committed first;
			// surface its order as the result of this retry.
			prior, ferr := e.store.FindByKey(ctx, in.IdempotencyKey)
			if ferr != nil {
				return nil, false, ferr
			}
			e.enrich(ctx, prior)
			return prior, false, nil
		}
		return nil, false, err
	}

	e.enrich(ctx, o)
	return o, true, nil
}

// priorByKey narrows the window where a retry carrying the same key fails on
// stock the first submission already consumed: if the key has committed by
// now, the committed order wins over the error.
func (e *Engine) priorByKey(ctx context.Context, key string) *Order {
	if key == "" {
		return nil
	}
	prior, err := e.store.FindByKey(ctx, key)
	if err != nil {
		return nil
	}
	e.enrich(ctx, prior)
	return prior
}

func (e *Engine) Get(ctx context.Context, id string) (*Order, error) {
	o, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.enrich(ctx, o)
	return o, nil
}

func (e *Engine) List(ctx context.Context, f ListFilter) ([]Order, error) {
	out, err := e.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range out {
		e.enrich(ctx, &out[i])
	}
	return out, nil
}

// UpdateStatus sets any of the four recognized statuses regardless of the
// current one. Cancellation with restock goes through Cancel instead.
func (e *Engine) UpdateStatus(ctx context.Context, id, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		verr := &ValidationError{}
		verr.add("", "%s", err.Error())
		return nil, verr
	}
	o, err := e.store.SetStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	e.enrich(ctx, o)
	return o, nil
}

// Cancel restocks every line item exactly once and marks the order
// cancelled. Cancelling an already-cancelled order succeeds without a second
// restock; completed orders cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, id string) (*Order, error) {
	o, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCompleted {
		return nil, ErrCancelCompleted
	}

	upd, claimed, err := e.store.MarkCancelled(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if upd.Status == StatusCompleted {
			return nil, ErrCancelCompleted
		}
		e.enrich(ctx, upd)
		return upd, nil
	}

	for _, it := range upd.Items {
		if err := e.ledger.Release(ctx, it.ProductID, it.Quantity); err != nil {
			e.log.Error("restock on cancel failed",
				zap.String("order_id", id), zap.String("product_id", it.ProductID), zap.Error(err))
		}
	}
	e.enrich(ctx, upd)
	return upd, nil
}

func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	return e.store.Stats(ctx)
}

// enrich attaches current catalog projections to line items. Failures here
// are cosmetic and never fail the operation.
func (e *Engine) enrich(ctx context.Context, o *Order) {
	for i := range o.Items {
		p, err := e.catalog.Get(ctx, o.Items[i].ProductID)
		if err != nil {
			e.log.Debug("catalog projection unavailable",
				zap.String("product_id", o.Items[i].ProductID), zap.Error(err))
			continue
		}
		o.Items[i].Product = &ProductRef{Name: p.Name, Category: string(p.Category), Metal: string(p.Metal)}
	}
}

func snapshotItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Product = nil
	}
	return out
}

func itemName(it LineItem) string {
	if it.Name != "" {
		return it.Name
	}
	return it.ProductID
}
