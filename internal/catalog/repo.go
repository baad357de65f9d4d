package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, name, category, metal, weight, price, stock, description, image, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Metal, &p.Weight, &p.Price,
		&p.Stock, &p.Description, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

type Filter struct {
	Category string
	Metal    string
	Search   string
	MinPrice *float64
	MaxPrice *float64
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Metal != "" {
		add("metal = $%d", f.Metal)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}

	q := `SELECT ` + productCols + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Metal, &p.Weight, &p.Price,
			&p.Stock, &p.Description, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products (`+productCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Name, p.Category, p.Metal, p.Weight, p.Price, p.Stock,
		p.Description, p.Image, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update rewrites the catalog-owned fields. Stock is deliberately excluded:
// only the inventory ledger adjusts it.
func (r *Repo) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET name=$2, category=$3, metal=$4, weight=$5, price=$6, description=$7, image=$8, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Name, p.Category, p.Metal, p.Weight, p.Price, p.Description, p.Image)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

type CategoryStat struct {
	Category   Category `json:"_id"`
	Count      int      `json:"count"`
	TotalStock int      `json:"totalStock"`
	AvgPrice   float64  `json:"avgPrice"`
}

type Stats struct {
	CategoryBreakdown []CategoryStat `json:"categoryBreakdown"`
	TotalProducts     int            `json:"totalProducts"`
	LowStock          int            `json:"lowStock"`
}

func (r *Repo) Stats(ctx context.Context) (*Stats, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(stock),0), COALESCE(AVG(price),0)
		FROM products GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{CategoryBreakdown: []CategoryStat{}}
	for rows.Next() {
		var c CategoryStat
		if err := rows.Scan(&c.Category, &c.Count, &c.TotalStock, &c.AvgPrice); err != nil {
			return nil, err
		}
		st.CategoryBreakdown = append(st.CategoryBreakdown, c)
		st.TotalProducts += c.Count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE stock < 5`).Scan(&st.LowStock); err != nil {
		return nil, err
	}
	return st, nil
}
