package pricing

import "strings"

// IncomeBand is the household income tier ("MPR profile") that drives the incentive amount.
type IncomeBand string

const (
	BandStandard IncomeBand = "standard"
	BandBlue     IncomeBand = "blue"
	BandYellow   IncomeBand = "yellow"
	BandViolet   IncomeBand = "violet"
	BandRose     IncomeBand = "rose"
)

// Valid reports whether b is one of the known income bands.
func (b IncomeBand) Valid() bool {
	switch b {
	case BandStandard, BandBlue, BandYellow, BandViolet, BandRose:
		return true
	}
	return false
}

// RoundingMode is the tenant policy applied to the remaining amount due.
type RoundingMode string

const (
	RoundingNone RoundingMode = "NONE"
	RoundingX90  RoundingMode = "X90"
)

// StrategyName identifies which pricing strategy produced a preview.
type StrategyName string

const (
	StrategyLegacyGrid StrategyName = "LEGACY_GRID"
	StrategyCostPlus   StrategyName = "COST_PLUS"
)

// DefaultTVARate is the reduced VAT rate applied to subsidised renovation equipment.
const DefaultTVARate = 5.5

// Product is an equipment catalog entry.
type Product struct {
	ID            int64    `json:"id"`
	Brand         string   `json:"brand"`
	Reference     string   `json:"reference"`
	Category      string   `json:"category"`
	BuyingPriceHT float64  `json:"buying_price_ht"`
	SalePriceHT   float64  `json:"sale_price_ht"`
	TVARate       float64  `json:"tva_rate"`
	Etas          *float64 `json:"etas,omitempty"`
	PowerKW       *float64 `json:"power_kw,omitempty"`
	Archived      bool     `json:"archived"`
}

// Label is the description used for the quote line built from the product.
func (p Product) Label() string {
	return strings.TrimSpace(p.Brand + " " + p.Reference)
}

// LegacyGridRule is a flat-rate entry matched by brand, efficiency, surface and income band.
type LegacyGridRule struct {
	Brand      string     `json:"brand"`
	EtasMin    float64    `json:"etas_min"`
	EtasMax    float64    `json:"etas_max"`
	SurfaceMin float64    `json:"surface_min"`
	SurfaceMax *float64   `json:"surface_max"`
	MPRProfile IncomeBand `json:"mpr_profile"`
	RACAmount  float64    `json:"rac_amount"`
}

// FixedLineItem is a recurring line appended to every quote of a module.
type FixedLineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPriceHT float64 `json:"unit_price_ht"`
	TVARate     float64 `json:"tva_rate"`
	Editable    bool    `json:"editable"`
}

// ModuleSettings is the tenant configuration of one quoting module.
type ModuleSettings struct {
	EnableLegacyGridRules  bool             `json:"enable_legacy_grid_rules"`
	RoundingMode           RoundingMode     `json:"rounding_mode"`
	MinMarginAmount        float64          `json:"min_margin_amount"`
	MaxRACAddon            *float64         `json:"max_rac_addon"`
	DefaultLaborProductIDs []int64          `json:"default_labor_product_ids"`
	FixedLineItems         []FixedLineItem  `json:"fixed_line_items"`
	LegacyGridRules        []LegacyGridRule `json:"legacy_grid_rules"`
	LockEquipmentPrice     bool             `json:"lock_equipment_price"`
}

// Valuation holds the incentive amounts of one operation code, per income band.
type Valuation struct {
	OperationCode string  `json:"operation_code"`
	IsResidential bool    `json:"is_residential"`
	Standard      float64 `json:"standard"`
	Blue          float64 `json:"blue"`
	Yellow        float64 `json:"yellow"`
	Violet        float64 `json:"violet"`
	Rose          float64 `json:"rose"`
}

// Amount returns the incentive value for band.
func (v Valuation) Amount(band IncomeBand) float64 {
	switch band {
	case BandBlue:
		return v.Blue
	case BandYellow:
		return v.Yellow
	case BandViolet:
		return v.Violet
	case BandRose:
		return v.Rose
	default:
		return v.Standard
	}
}

// Sizing is the pre-computed dimensioning of a folder, provided by the sizing service.
type Sizing struct {
	FolderID      int64      `json:"folder_id"`
	SurfaceM2     float64    `json:"surface_m2"`
	IncomeBand    IncomeBand `json:"income_band"`
	OperationCode string     `json:"operation_code,omitempty"`
	IsResidential bool       `json:"is_residential"`
}

// Snapshot is the read-only tenant data a simulation runs against.
type Snapshot struct {
	Settings   ModuleSettings
	Valuations []Valuation
	Products   map[int64]Product
	Sizing     *Sizing
}

// Request is the caller input of a simulation.
type Request struct {
	ModuleCode string   `json:"module_code"`
	FolderID   int64    `json:"folder_id"`
	ProductIDs []int64  `json:"product_ids"`
	TargetRAC  *float64 `json:"target_rac,omitempty"`
}

// Context carries what the reconciler needs to recompute a preview without tenant data.
type Context struct {
	AdjustableIndex int          `json:"adjustable_index"`
	RoundingMode    RoundingMode `json:"rounding_mode"`
	MinMarginAmount float64      `json:"min_margin_amount"`
	// MaxRACAddon is set only when the cost-plus strategy priced the preview.
	MaxRACAddon *float64 `json:"max_rac_addon,omitempty"`
}

// Preview is the itemized result of a simulation.
type Preview struct {
	Lines         []Line       `json:"lines"`
	TotalHT       float64      `json:"total_ht"`
	TotalTTC      float64      `json:"total_ttc"`
	CEEPrime      float64      `json:"cee_prime"`
	RACTTC        float64      `json:"rac_ttc"`
	MarginHT      float64      `json:"margin_ht"`
	MarginPercent float64      `json:"margin_percent"`
	StrategyUsed  StrategyName `json:"strategy_used"`
	Warnings      []string     `json:"warnings"`
	Context       Context      `json:"pricing_context"`
}
