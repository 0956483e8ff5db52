package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

// GetSettings returns the module configuration of a tenant.
func (s *Store) GetSettings(ctx context.Context, tenant, module string) (pricing.ModuleSettings, error) {
	key := settingsKey(tenant, module)
	raw, err := s.settingsJSON(ctx, key, tenant, module)
	if err != nil {
		return pricing.ModuleSettings{}, err
	}

	// decoded per call so callers never share slices with the cache
	var settings pricing.ModuleSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return pricing.ModuleSettings{}, fmt.Errorf("decode module settings: %w", err)
	}
	return settings, nil
}

func (s *Store) settingsJSON(ctx context.Context, key, tenant, module string) (string, error) {
	if cached, found := s.cache.Get(key); found {
		return cached.(string), nil
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT settings_json
		FROM module_settings
		WHERE tenant_id = ? AND module_code = ?
	`, tenant, module).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query module settings: %w", err)
	}

	s.cache.Set(key, raw, cache.DefaultExpiration)
	return raw, nil
}

// PutSettings replaces the module configuration of a tenant.
func (s *Store) PutSettings(ctx context.Context, tenant, module string, settings pricing.ModuleSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode module settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO module_settings (tenant_id, module_code, settings_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, module_code) DO UPDATE SET
			settings_json = excluded.settings_json,
			updated_at = excluded.updated_at
	`, tenant, module, string(raw), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("upsert module settings: %w", err)
	}

	s.cache.Delete(settingsKey(tenant, module))
	return nil
}
