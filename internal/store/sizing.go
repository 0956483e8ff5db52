package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

// GetSizing returns the sizing snapshot last pushed for a folder.
func (s *Store) GetSizing(ctx context.Context, tenant string, folderID int64) (pricing.Sizing, error) {
	sizing := pricing.Sizing{FolderID: folderID}
	var band string
	err := s.db.QueryRowContext(ctx, `
		SELECT surface_m2, income_band, operation_code, is_residential
		FROM folder_sizing
		WHERE tenant_id = ? AND folder_id = ?
	`, tenant, folderID).Scan(&sizing.SurfaceM2, &band, &sizing.OperationCode, &sizing.IsResidential)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Sizing{}, ErrNotFound
	}
	if err != nil {
		return pricing.Sizing{}, fmt.Errorf("query folder sizing: %w", err)
	}
	sizing.IncomeBand = pricing.IncomeBand(band)
	return sizing, nil
}

// PutSizing records the sizing service output for a folder.
func (s *Store) PutSizing(ctx context.Context, tenant string, sizing pricing.Sizing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO folder_sizing (tenant_id, folder_id, surface_m2, income_band, operation_code, is_residential, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, folder_id) DO UPDATE SET
			surface_m2 = excluded.surface_m2,
			income_band = excluded.income_band,
			operation_code = excluded.operation_code,
			is_residential = excluded.is_residential,
			updated_at = excluded.updated_at
	`, tenant, sizing.FolderID, sizing.SurfaceM2, string(sizing.IncomeBand), sizing.OperationCode, sizing.IsResidential, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("upsert folder sizing: %w", err)
	}
	return nil
}
