package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

const productColumns = `id, brand, reference, category, buying_price_ht, sale_price_ht, tva_rate, etas, power_kw, archived`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (pricing.Product, error) {
	var p pricing.Product
	var etas, power sql.NullFloat64
	if err := row.Scan(&p.ID, &p.Brand, &p.Reference, &p.Category, &p.BuyingPriceHT, &p.SalePriceHT, &p.TVARate, &etas, &power, &p.Archived); err != nil {
		return pricing.Product{}, err
	}
	if etas.Valid {
		p.Etas = &etas.Float64
	}
	if power.Valid {
		p.PowerKW = &power.Float64
	}
	return p, nil
}

// ListProducts returns the tenant catalog, newest first.
func (s *Store) ListProducts(ctx context.Context, tenant string) ([]pricing.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE tenant_id = ?
		ORDER BY id DESC
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]pricing.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ProductsByID loads the given products, archived ones included. Unknown ids
// are simply absent from the result.
func (s *Store) ProductsByID(ctx context.Context, tenant string, ids []int64) (map[int64]pricing.Product, error) {
	out := make(map[int64]pricing.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE tenant_id = ? AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// CreateProduct inserts p and returns it with its new id.
func (s *Store) CreateProduct(ctx context.Context, tenant string, p pricing.Product) (pricing.Product, error) {
	now := formatTime(s.now())
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO products (tenant_id, brand, reference, category, buying_price_ht, sale_price_ht, tva_rate, etas, power_kw, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?)
	`, tenant, p.Brand, p.Reference, p.Category, p.BuyingPriceHT, p.SalePriceHT, p.TVARate, nullFloat(p.Etas), nullFloat(p.PowerKW), now, now)
	if err != nil {
		return pricing.Product{}, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return pricing.Product{}, fmt.Errorf("read product id: %w", err)
	}
	p.ID = id
	p.Archived = false
	return p, nil
}

// ArchiveProduct hides a product from new quotes. Existing drafts keep their lines.
func (s *Store) ArchiveProduct(ctx context.Context, tenant string, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET archived = TRUE, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, formatTime(s.now()), tenant, id)
	if err != nil {
		return fmt.Errorf("archive product: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive product: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
