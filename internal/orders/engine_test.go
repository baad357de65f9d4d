package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ornamenta/jewelstore/internal/catalog"
	"github.com/ornamenta/jewelstore/internal/inventory"
)

// stockFake backs both the StockLedger and CatalogReader sides of the engine
// with one products map, the same way the Postgres ledger and catalog repo
// share the products table.
type stockFake struct {
	mu          sync.Mutex
	products    map[string]*catalog.Product
	releases    map[string]int
	failReserve map[string]error
}

func newStockFake(ps ...*catalog.Product) *stockFake {
	f := &stockFake{
		products:    map[string]*catalog.Product{},
		releases:    map[string]int{},
		failReserve: map[string]error{},
	}
	for _, p := range ps {
		f.products[p.ID] = p
	}
	return f
}

func (f *stockFake) Get(_ context.Context, id string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *stockFake) Reserve(_ context.Context, id string, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failReserve[id]; ok {
		return 0, err
	}
	p, ok := f.products[id]
	if !ok {
		return 0, catalog.ErrNotFound
	}
	if p.Stock < qty {
		return 0, &inventory.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	return p.Stock, nil
}

func (f *stockFake) Release(_ context.Context, id string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.Stock += qty
	f.releases[id] += qty
	return nil
}

func (f *stockFake) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *stockFake) released(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases[id]
}

// memStore mirrors the Postgres store's contract, idempotency-key uniqueness
// and the cancel claim included.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	byKey  map[string]string
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]*Order{}, byKey: map[string]string{}}
}

func (s *memStore) Insert(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IdempotencyKey != "" {
		if _, dup := s.byKey[o.IdempotencyKey]; dup {
			return ErrDuplicateKey
		}
		s.byKey[o.IdempotencyKey] = o.ID
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *memStore) FindByKey(_ context.Context, key string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return s.orders[id].Clone(), nil
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Order{}
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch f.SortBy {
		case "total":
			less = out[i].Total < out[j].Total
		default:
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if f.Desc {
			return !less
		}
		return less
	})
	return out, nil
}

func (s *memStore) SetStatus(_ context.Context, id string, st Status) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = st
	return o.Clone(), nil
}

func (s *memStore) MarkCancelled(_ context.Context, id string) (*Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if o.Status == StatusCancelled || o.Status == StatusCompleted {
		return o.Clone(), false, nil
	}
	o.Status = StatusCancelled
	return o.Clone(), true, nil
}

func (s *memStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStatus := map[Status]*StatusStat{}
	st := &Stats{StatusBreakdown: []StatusStat{}}
	for _, o := range s.orders {
		b, ok := byStatus[o.Status]
		if !ok {
			b = &StatusStat{Status: o.Status}
			byStatus[o.Status] = b
		}
		b.Count++
		b.TotalRevenue += o.Total
		st.TotalOrders++
		if o.Status != StatusCancelled {
			st.TotalRevenue += o.Total
		}
	}
	for _, b := range byStatus {
		st.StatusBreakdown = append(st.StatusBreakdown, *b)
	}
	sort.Slice(st.StatusBreakdown, func(i, j int) bool {
		return st.StatusBreakdown[i].Status < st.StatusBreakdown[j].Status
	})
	return st, nil
}

func ringProduct(stock int) *catalog.Product {
	return &catalog.Product{
		ID:       "ring-1",
		Name:     "Diamond Solitaire Ring",
		Category: catalog.CategoryRings,
		Metal:    catalog.MetalPlatinum,
		Weight:   4.5,
		Price:    45000,
		Stock:    stock,
	}
}

func validInput(qty int, key string) CheckoutInput {
	return CheckoutInput{
		Customer: Customer{
			Name:    "Priya Sharma",
			Email:   "priya@example.com",
			Phone:   "9876543210",
			Address: "12 MG Road, Bengaluru",
		},
		Items: []LineItem{
			{ProductID: "ring-1", Name: "Diamond Solitaire Ring", Price: 45000, Quantity: qty},
		},
		Total:          45000 * float64(qty),
		IdempotencyKey: key,
	}
}

func newTestEngine(ps ...*catalog.Product) (*Engine, *memStore, *stockFake) {
	store := newMemStore()
	stock := newStockFake(ps...)
	return NewEngine(store, stock, stock, nil), store, stock
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(5))

	o, created, err := eng.Checkout(context.Background(), validInput(2, ""))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, float64(90000), o.Total)
	assert.Equal(t, 3, stock.stock("ring-1"))

	require.Len(t, o.Items, 1)
	require.NotNil(t, o.Items[0].Product)
	assert.Equal(t, "Diamond Solitaire Ring", o.Items[0].Product.Name)
	assert.Equal(t, "rings", o.Items[0].Product.Category)
}

func TestCheckoutInputValidation(t *testing.T) {
	eng, _, _ := newTestEngine(ringProduct(5))

	in := CheckoutInput{
		Customer: Customer{Email: "not-an-email"},
		Items:    []LineItem{{ProductID: "ring-1", Quantity: 0}},
	}
	_, _, err := eng.Checkout(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	msg := verr.Error()
	assert.Contains(t, msg, "Customer name is required")
	assert.Contains(t, msg, "Please enter a valid email")
	assert.Contains(t, msg, "Customer phone is required")
	assert.Contains(t, msg, "Customer address is required")
	assert.Contains(t, msg, "Quantity must be at least 1")
}

func TestCheckoutCollectsAllStockViolations(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(1))

	in := validInput(3, "")
	in.Items = append(in.Items, LineItem{ProductID: "ghost", Name: "Ghost Pendant", Price: 100, Quantity: 1})
	_, _, err := eng.Checkout(context.Background(), in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 2)
	assert.Contains(t, verr.Violations[0].Message, "Insufficient stock for Diamond Solitaire Ring. Available: 1")
	assert.Contains(t, verr.Violations[1].Message, "Product Ghost Pendant not found")

	// Validation must not touch stock.
	assert.Equal(t, 1, stock.stock("ring-1"))
}

func TestCheckoutIdempotentRetry(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(5))

	first, created, err := eng.Checkout(context.Background(), validInput(3, "T1"))
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, 2, stock.stock("ring-1"))

	second, created, err := eng.Checkout(context.Background(), validInput(3, "T1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, stock.stock("ring-1"), "retry must not reserve again")
}

func TestCheckoutRetryWinsOverExhaustedStock(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(3))

	first, created, err := eng.Checkout(context.Background(), validInput(3, "T1"))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, 0, stock.stock("ring-1"))

	// The retry carries the same key, so the committed order wins even though
	// stock is exhausted now.
	second, created, err := eng.Checkout(context.Background(), validInput(3, "T1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A fresh key sees the shortage.
	_, _, err = eng.Checkout(context.Background(), validInput(3, "T2"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "Available: 0")
}

func TestCheckoutConcurrentSameKey(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(100))

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     []string
		creates int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, created, err := eng.Checkout(context.Background(), validInput(1, "storm"))
			if err != nil {
				t.Errorf("checkout: %v", err)
				return
			}
			mu.Lock()
			ids = append(ids, o.ID)
			if created {
				creates++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, creates, "exactly one submission may create the order")
	require.Len(t, ids, n)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 99, stock.stock("ring-1"), "losers must roll their reservation back")
}

func TestCheckoutRollsBackPartialReservation(t *testing.T) {
	bracelet := &catalog.Product{
		ID: "bracelet-1", Name: "Gold Bracelet",
		Category: catalog.CategoryBracelets, Metal: catalog.MetalGold,
		Weight: 12, Price: 30000, Stock: 4,
	}
	eng, store, stock := newTestEngine(ringProduct(5), bracelet)

	// Second item passes validation but fails at reservation time.
	stock.failReserve["bracelet-1"] = &inventory.InsufficientStockError{
		ProductID: "bracelet-1", Requested: 2, Available: 1,
	}

	in := validInput(2, "")
	in.Items = append(in.Items, LineItem{ProductID: "bracelet-1", Name: "Gold Bracelet", Price: 30000, Quantity: 2})

	_, _, err := eng.Checkout(context.Background(), in)
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "bracelet-1", stockErr.ProductID)

	assert.Equal(t, 5, stock.stock("ring-1"), "applied reservation must be released")
	assert.Equal(t, 2, stock.released("ring-1"))

	out, err := store.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, out, "no order may survive a failed reservation")
}

func TestCancelRestocksExactlyOnce(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(5))

	o, _, err := eng.Checkout(context.Background(), validInput(2, ""))
	require.NoError(t, err)
	require.Equal(t, 3, stock.stock("ring-1"))

	cancelled, err := eng.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, stock.stock("ring-1"))

	// Second cancel is a no-op success without a second restock.
	again, err := eng.Cancel(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)
	assert.Equal(t, 5, stock.stock("ring-1"))
	assert.Equal(t, 2, stock.released("ring-1"))
}

func TestCancelCompletedOrderRejected(t *testing.T) {
	eng, _, stock := newTestEngine(ringProduct(5))

	o, _, err := eng.Checkout(context.Background(), validInput(2, ""))
	require.NoError(t, err)
	_, err = eng.UpdateStatus(context.Background(), o.ID, "completed")
	require.NoError(t, err)

	_, err = eng.Cancel(context.Background(), o.ID)
	assert.ErrorIs(t, err, ErrCancelCompleted)
	assert.Equal(t, 3, stock.stock("ring-1"), "completed order keeps its stock consumed")
}

func TestCancelMissingOrder(t *testing.T) {
	eng, _, _ := newTestEngine(ringProduct(5))
	_, err := eng.Cancel(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	eng, _, _ := newTestEngine(ringProduct(5))

	o, _, err := eng.Checkout(context.Background(), validInput(1, ""))
	require.NoError(t, err)

	upd, err := eng.UpdateStatus(context.Background(), o.ID, "processing")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, upd.Status)

	_, err = eng.UpdateStatus(context.Background(), o.ID, "shipped")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Any recognized status is accepted regardless of the current one.
	upd, err = eng.UpdateStatus(context.Background(), o.ID, "completed")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, upd.Status)
	upd, err = eng.UpdateStatus(context.Background(), o.ID, "pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, upd.Status)

	_, err = eng.UpdateStatus(context.Background(), "nope", "pending")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFilterAndSort(t *testing.T) {
	eng, _, _ := newTestEngine(ringProduct(50))

	var made []*Order
	for i := 0; i < 3; i++ {
		o, _, err := eng.Checkout(context.Background(), validInput(i+1, fmt.Sprintf("k%d", i)))
		require.NoError(t, err)
		made = append(made, o)
	}
	_, err := eng.UpdateStatus(context.Background(), made[1].ID, "completed")
	require.NoError(t, err)

	pending, err := eng.List(context.Background(), ListFilter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	byTotal, err := eng.List(context.Background(), ListFilter{SortBy: "total", Desc: true})
	require.NoError(t, err)
	require.Len(t, byTotal, 3)
	assert.Equal(t, float64(135000), byTotal[0].Total)
	assert.Equal(t, float64(45000), byTotal[2].Total)
}

func TestStatsExcludeCancelledRevenue(t *testing.T) {
	eng, _, _ := newTestEngine(ringProduct(50))

	o1, _, err := eng.Checkout(context.Background(), validInput(1, "s1"))
	require.NoError(t, err)
	_, _, err = eng.Checkout(context.Background(), validInput(2, "s2"))
	require.NoError(t, err)
	_, err = eng.Cancel(context.Background(), o1.ID)
	require.NoError(t, err)

	st, err := eng.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalOrders)
	assert.Equal(t, float64(90000), st.TotalRevenue)

	byStatus := map[Status]StatusStat{}
	for _, b := range st.StatusBreakdown {
		byStatus[b.Status] = b
	}
	assert.Equal(t, 1, byStatus[StatusCancelled].Count)
	assert.Equal(t, float64(45000), byStatus[StatusCancelled].TotalRevenue)
	assert.Equal(t, 1, byStatus[StatusPending].Count)
}
