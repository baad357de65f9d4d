package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed Store. The partial unique index on
// idempotency_key enforces at-most-one-order-per-key at the storage layer;
// application code only translates the conflict.
type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, idempotency_key, customer_name, customer_email, customer_phone, customer_address, total, status, created_at, updated_at`

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (`+orderCols+`)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.IdempotencyKey,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.Address,
		o.Total, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, price, quantity, metal, weight)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, it.ProductID, it.Name, it.Price, it.Quantity, it.Metal, it.Weight)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) scanOrder(row pgx.Row) (*Order, error) {
	var (
		o   Order
		key *string
	)
	err := row.Scan(&o.ID, &key,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &o.Customer.Address,
		&o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if key != nil {
		o.IdempotencyKey = *key
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, orderIDs []string) (map[string][]LineItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, price, quantity, metal, weight
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]LineItem, len(orderIDs))
	for rows.Next() {
		var (
			oid string
			it  LineItem
		)
		if err := rows.Scan(&oid, &it.ProductID, &it.Name, &it.Price, &it.Quantity, &it.Metal, &it.Weight); err != nil {
			return nil, err
		}
		items[oid] = append(items[oid], it)
	}
	return items, rows.Err()
}

func (r *Repo) getWhere(ctx context.Context, cond string, arg any) (*Order, error) {
	o, err := r.scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE `+cond, arg))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *Repo) FindByKey(ctx context.Context, key string) (*Order, error) {
	return r.getWhere(ctx, `idempotency_key = $1`, key)
}

// sortColumns whitelists List's sortBy values; anything else falls back to
// createdAt.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"total":     "total",
	"status":    "status",
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}

	q := `SELECT ` + orderCols + ` FROM orders`
	var args []any
	if f.Status != "" {
		q += ` WHERE status = $1`
		args = append(args, f.Status)
	}
	q += fmt.Sprintf(` ORDER BY %s %s`, col, dir)

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) SetStatus(ctx context.Context, id string, st Status) (*Order, error) {
	o, err := r.scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderCols, id, st))
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repo) MarkCancelled(ctx context.Context, id string) (*Order, bool, error) {
	o, err := r.scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status NOT IN ('cancelled','completed')
		RETURNING `+orderCols, id))
	claimed := true
	if errors.Is(err, ErrNotFound) {
		// Either the order is gone or another call got there first.
		claimed = false
		o, err = r.scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	}
	if err != nil {
		return nil, false, err
	}
	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, false, err
	}
	o.Items = items[o.ID]
	return o, claimed, nil
}

func (r *Repo) Stats(ctx context.Context) (*Stats, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total),0)
		FROM orders GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{StatusBreakdown: []StatusStat{}}
	for rows.Next() {
		var s StatusStat
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalRevenue); err != nil {
			return nil, err
		}
		st.StatusBreakdown = append(st.StatusBreakdown, s)
		st.TotalOrders += s.Count
		if s.Status != StatusCancelled {
			st.TotalRevenue += s.TotalRevenue
		}
	}
	return st, rows.Err()
}
