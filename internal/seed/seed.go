package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

const (
	demoModuleCode   = "BAR-TH-171"
	demoFolderID     = 1
	demoHeatPumpRef  = "Altherma 3 H HT 14kW"
	demoLaborBrand   = "Pose"
	demoLaborRef     = "Installation PAC air/eau"
	demoHeatPumpEtas = 126
)

// Config contains the values required by startup seed.
type Config struct {
	Tenant string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run creates the demo tenant data in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	if cfg.Tenant == "" {
		return Stats{}, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if _, err := ensureProduct(ctx, tx, cfg.Tenant, heatPump(), &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	laborID, err := ensureProduct(ctx, tx, cfg.Tenant, labor(), &stats)
	if err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureSettings(ctx, tx, cfg.Tenant, laborID, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureValuation(ctx, tx, cfg.Tenant, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureSizing(ctx, tx, cfg.Tenant, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func heatPump() pricing.Product {
	etas, power := float64(demoHeatPumpEtas), 14.0
	return pricing.Product{
		Brand:         "Daikin",
		Reference:     demoHeatPumpRef,
		Category:      "heat_pump",
		BuyingPriceHT: 4200,
		SalePriceHT:   9800,
		TVARate:       pricing.DefaultTVARate,
		Etas:          &etas,
		PowerKW:       &power,
	}
}

func labor() pricing.Product {
	return pricing.Product{
		Brand:         demoLaborBrand,
		Reference:     demoLaborRef,
		Category:      "labor",
		BuyingPriceHT: 900,
		SalePriceHT:   1800,
		TVARate:       pricing.DefaultTVARate,
	}
}

func ensureProduct(ctx context.Context, tx *sql.Tx, tenant string, p pricing.Product, stats *Stats) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		SELECT id
		FROM products
		WHERE tenant_id = ? AND brand = ? AND reference = ?
		LIMIT 1
	`, tenant, p.Brand, p.Reference).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check product %s existence: %w", p.Reference, err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO products (tenant_id, brand, reference, category, buying_price_ht, sale_price_ht, tva_rate, etas, power_kw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tenant, p.Brand, p.Reference, p.Category, p.BuyingPriceHT, p.SalePriceHT, p.TVARate, nullable(p.Etas), nullable(p.PowerKW))
	if err != nil {
		return 0, fmt.Errorf("insert product %s: %w", p.Reference, err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read product %s id: %w", p.Reference, err)
	}
	stats.Inserts++
	return id, nil
}

func ensureSettings(ctx context.Context, tx *sql.Tx, tenant string, laborID int64, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM module_settings WHERE tenant_id = ? AND module_code = ?)
	`, tenant, demoModuleCode).Scan(&exists); err != nil {
		return fmt.Errorf("check module settings existence: %w", err)
	}
	if exists {
		return nil
	}

	surfaceMax := 150.0
	settings := pricing.DefaultSettings()
	settings.EnableLegacyGridRules = true
	settings.RoundingMode = pricing.RoundingX90
	settings.MinMarginAmount = 1500
	settings.DefaultLaborProductIDs = []int64{laborID}
	settings.FixedLineItems = []pricing.FixedLineItem{{
		Description: "Mise en service",
		Quantity:    1,
		UnitPriceHT: 250,
		TVARate:     pricing.DefaultTVARate,
	}}
	settings.LegacyGridRules = []pricing.LegacyGridRule{{
		Brand:      "Daikin",
		EtasMin:    111,
		EtasMax:    140,
		SurfaceMin: 0,
		SurfaceMax: &surfaceMax,
		MPRProfile: pricing.BandBlue,
		RACAmount:  1990,
	}}

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode demo module settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO module_settings (tenant_id, module_code, settings_json)
		VALUES (?, ?, ?)
	`, tenant, demoModuleCode, string(raw)); err != nil {
		return fmt.Errorf("insert demo module settings: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureValuation(ctx context.Context, tx *sql.Tx, tenant string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM cee_valuations
			WHERE tenant_id = ? AND operation_code = ? AND is_residential = TRUE
		)
	`, tenant, demoModuleCode).Scan(&exists); err != nil {
		return fmt.Errorf("check valuation existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cee_valuations (tenant_id, operation_code, is_residential, standard, blue, yellow, violet, rose)
		VALUES (?, ?, TRUE, ?, ?, ?, ?, ?)
	`, tenant, demoModuleCode, 2500, 4000, 3000, 2000, 1500); err != nil {
		return fmt.Errorf("insert demo valuation: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureSizing(ctx context.Context, tx *sql.Tx, tenant string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM folder_sizing WHERE tenant_id = ? AND folder_id = ?)
	`, tenant, demoFolderID).Scan(&exists); err != nil {
		return fmt.Errorf("check folder sizing existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO folder_sizing (tenant_id, folder_id, surface_m2, income_band, operation_code, is_residential)
		VALUES (?, ?, ?, ?, ?, TRUE)
	`, tenant, demoFolderID, 95, string(pricing.BandBlue), demoModuleCode); err != nil {
		return fmt.Errorf("insert demo folder sizing: %w", err)
	}
	stats.Inserts++
	return nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
