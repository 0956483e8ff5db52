package pricing

// DefaultSettings is the configuration a module starts from before the tenant edits it.
func DefaultSettings() ModuleSettings {
	return ModuleSettings{
		RoundingMode:           RoundingNone,
		DefaultLaborProductIDs: []int64{},
		FixedLineItems:         []FixedLineItem{},
		LegacyGridRules:        []LegacyGridRule{},
	}
}

// Validate checks that s can be quoted with.
func (s ModuleSettings) Validate() error {
	switch s.RoundingMode {
	case "", RoundingNone, RoundingX90:
	default:
		return validationf("unknown rounding mode %q", s.RoundingMode)
	}
	if s.MinMarginAmount < 0 {
		return validationf("min_margin_amount must not be negative")
	}
	if s.MaxRACAddon != nil && *s.MaxRACAddon < 0 {
		return validationf("max_rac_addon must not be negative")
	}
	for i, item := range s.FixedLineItems {
		if item.Description == "" {
			return validationf("fixed_line_items[%d]: description is required", i)
		}
		if item.Quantity < 1 {
			return validationf("fixed_line_items[%d]: quantity must be at least 1", i)
		}
		if item.UnitPriceHT < 0 || item.TVARate < 0 {
			return validationf("fixed_line_items[%d]: amounts must not be negative", i)
		}
	}
	for i, r := range s.LegacyGridRules {
		if r.Brand == "" {
			return validationf("legacy_grid_rules[%d]: brand is required", i)
		}
		if r.EtasMin > r.EtasMax {
			return validationf("legacy_grid_rules[%d]: etas_min above etas_max", i)
		}
		if r.RACAmount < 0 {
			return validationf("legacy_grid_rules[%d]: rac_amount must not be negative", i)
		}
		if r.SurfaceMax != nil && r.SurfaceMin > *r.SurfaceMax {
			return validationf("legacy_grid_rules[%d]: surface_min above surface_max", i)
		}
		if !r.MPRProfile.Valid() {
			return validationf("legacy_grid_rules[%d]: unknown mpr_profile %q", i, r.MPRProfile)
		}
	}
	return nil
}

// Validate checks a valuation row before it is stored.
func (v Valuation) Validate() error {
	if v.OperationCode == "" {
		return validationf("operation_code is required")
	}
	for _, band := range []IncomeBand{BandStandard, BandBlue, BandYellow, BandViolet, BandRose} {
		if v.Amount(band) < 0 {
			return validationf("%s amount must not be negative", band)
		}
	}
	return nil
}

// Validate checks a product before it enters the catalog.
func (p Product) Validate() error {
	if p.Brand == "" || p.Reference == "" {
		return validationf("brand and reference are required")
	}
	if p.BuyingPriceHT < 0 || p.SalePriceHT < 0 || p.TVARate < 0 {
		return validationf("prices and tva_rate must not be negative")
	}
	return nil
}

// Validate checks a sizing snapshot before it is stored.
func (s Sizing) Validate() error {
	if s.FolderID <= 0 {
		return validationf("folder_id is required")
	}
	if s.SurfaceM2 < 0 {
		return validationf("surface_m2 must not be negative")
	}
	if !s.IncomeBand.Valid() {
		return validationf("unknown income_band %q", s.IncomeBand)
	}
	return nil
}
