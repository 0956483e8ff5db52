package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

// Draft is a quote in progress, owned by one folder.
type Draft struct {
	ID         string           `json:"id"`
	FolderID   int64            `json:"folder_id"`
	Name       string           `json:"name"`
	ModuleCode string           `json:"module_code"`
	ProductIDs []int64          `json:"product_ids"`
	Preview    *pricing.Preview `json:"preview"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

const draftColumns = `id, folder_id, name, module_code, product_ids_json, COALESCE(preview_json, ''), created_at, updated_at`

func scanDraft(row rowScanner) (Draft, error) {
	var d Draft
	var productIDs, preview, createdAt, updatedAt string
	if err := row.Scan(&d.ID, &d.FolderID, &d.Name, &d.ModuleCode, &productIDs, &preview, &createdAt, &updatedAt); err != nil {
		return Draft{}, err
	}
	if err := json.Unmarshal([]byte(productIDs), &d.ProductIDs); err != nil {
		return Draft{}, fmt.Errorf("decode draft product ids: %w", err)
	}
	if preview != "" {
		d.Preview = &pricing.Preview{}
		if err := json.Unmarshal([]byte(preview), d.Preview); err != nil {
			return Draft{}, fmt.Errorf("decode draft preview: %w", err)
		}
	}
	var err error
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return Draft{}, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// GetDraft returns one draft of the tenant.
func (s *Store) GetDraft(ctx context.Context, tenant, id string) (Draft, error) {
	d, err := scanDraft(s.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+`
		FROM quote_drafts
		WHERE tenant_id = ? AND id = ?
	`, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("query draft: %w", err)
	}
	return d, nil
}

// ListDrafts returns the drafts of a folder, most recently updated first.
func (s *Store) ListDrafts(ctx context.Context, tenant string, folderID int64) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+draftColumns+`
		FROM quote_drafts
		WHERE tenant_id = ? AND folder_id = ?
		ORDER BY updated_at DESC, id DESC
	`, tenant, folderID)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]Draft, 0)
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return drafts, nil
}

// SaveDraft inserts or fully replaces d. The last writer wins. A draft without
// an id gets a new one. Ids owned by another tenant are reported as not found.
func (s *Store) SaveDraft(ctx context.Context, tenant string, d Draft) (Draft, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ProductIDs == nil {
		d.ProductIDs = []int64{}
	}

	productIDs, err := json.Marshal(d.ProductIDs)
	if err != nil {
		return Draft{}, fmt.Errorf("encode draft product ids: %w", err)
	}
	var preview sql.NullString
	if d.Preview != nil {
		raw, err := json.Marshal(d.Preview)
		if err != nil {
			return Draft{}, fmt.Errorf("encode draft preview: %w", err)
		}
		preview = sql.NullString{String: string(raw), Valid: true}
	}

	now := s.now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO quote_drafts (id, tenant_id, folder_id, name, module_code, product_ids_json, preview_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			folder_id = excluded.folder_id,
			name = excluded.name,
			module_code = excluded.module_code,
			product_ids_json = excluded.product_ids_json,
			preview_json = excluded.preview_json,
			updated_at = excluded.updated_at
		WHERE quote_drafts.tenant_id = excluded.tenant_id
	`, d.ID, tenant, d.FolderID, d.Name, d.ModuleCode, string(productIDs), preview, formatTime(now), formatTime(now))
	if err != nil {
		return Draft{}, fmt.Errorf("upsert draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Draft{}, fmt.Errorf("upsert draft: %w", err)
	}
	if affected == 0 {
		return Draft{}, ErrNotFound
	}

	return s.GetDraft(ctx, tenant, d.ID)
}

// DeleteDraft removes a draft.
func (s *Store) DeleteDraft(ctx context.Context, tenant, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM quote_drafts WHERE tenant_id = ? AND id = ?`, tenant, id)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
