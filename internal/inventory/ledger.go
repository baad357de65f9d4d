package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ornamenta/jewelstore/internal/catalog"
)

// InsufficientStockError reports a reservation that would drive stock
// negative. Available carries the stock observed when the reservation
// was refused.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Ledger owns the per-product stock counter. Both primitives run as single
// SQL statements so concurrent checkouts of the same product serialize on
// the row instead of racing a read-then-write in application code.
type Ledger struct{ DB *pgxpool.Pool }

// Reserve decrements stock by qty only when stock >= qty and returns the
// post-decrement value. The conditional UPDATE is the linearization point;
// the follow-up read only classifies the failure.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("inventory: reserve quantity must be positive, got %d", qty)
	}
	var remaining int
	err := l.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var available int
	err = l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, catalog.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

// Release returns qty units to stock, used for cancellation restock.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: release quantity must be positive, got %d", qty)
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
