package store

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

// ListValuations returns every CEE valuation row of a tenant.
func (s *Store) ListValuations(ctx context.Context, tenant string) ([]pricing.Valuation, error) {
	key := valuationsKey(tenant)
	if cached, found := s.cache.Get(key); found {
		return copyValuations(cached.([]pricing.Valuation)), nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_code, is_residential, standard, blue, yellow, violet, rose
		FROM cee_valuations
		WHERE tenant_id = ?
		ORDER BY operation_code, is_residential DESC
	`, tenant)
	if err != nil {
		return nil, fmt.Errorf("query valuations: %w", err)
	}
	defer rows.Close()

	valuations := make([]pricing.Valuation, 0)
	for rows.Next() {
		var v pricing.Valuation
		if err := rows.Scan(&v.OperationCode, &v.IsResidential, &v.Standard, &v.Blue, &v.Yellow, &v.Violet, &v.Rose); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		valuations = append(valuations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate valuations: %w", err)
	}

	s.cache.Set(key, copyValuations(valuations), cache.DefaultExpiration)
	return valuations, nil
}

// UpsertValuation stores v, replacing any row with the same operation code and residential flag.
func (s *Store) UpsertValuation(ctx context.Context, tenant string, v pricing.Valuation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cee_valuations (tenant_id, operation_code, is_residential, standard, blue, yellow, violet, rose, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, operation_code, is_residential) DO UPDATE SET
			standard = excluded.standard,
			blue = excluded.blue,
			yellow = excluded.yellow,
			violet = excluded.violet,
			rose = excluded.rose,
			updated_at = excluded.updated_at
	`, tenant, v.OperationCode, v.IsResidential, v.Standard, v.Blue, v.Yellow, v.Violet, v.Rose, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("upsert valuation: %w", err)
	}

	s.cache.Delete(valuationsKey(tenant))
	return nil
}

func copyValuations(in []pricing.Valuation) []pricing.Valuation {
	return append(make([]pricing.Valuation, 0, len(in)), in...)
}
