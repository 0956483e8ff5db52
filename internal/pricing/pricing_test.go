package pricing

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func withinCent(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) >= 0.01 {
		t.Fatalf("%s = %v, want %v (±0.01)", name, got, want)
	}
}

func ptr(v float64) *float64 { return &v }

func daikin() Product {
	return Product{
		ID:            1,
		Brand:         "Daikin",
		Reference:     "Altherma 3 H HT",
		Category:      "heat_pump",
		BuyingPriceHT: 3000,
		SalePriceHT:   8000,
		TVARate:       5.5,
		Etas:          ptr(120),
	}
}

func laborProduct() Product {
	return Product{
		ID:            2,
		Brand:         "Pose",
		Reference:     "PAC air/eau",
		Category:      "labor",
		BuyingPriceHT: 600,
		SalePriceHT:   1200,
		TVARate:       5.5,
	}
}

func scenarioSnapshot() Snapshot {
	return Snapshot{
		Settings: ModuleSettings{
			EnableLegacyGridRules: true,
			RoundingMode:          RoundingNone,
			MinMarginAmount:       500,
			LegacyGridRules: []LegacyGridRule{{
				Brand:      "Daikin",
				EtasMin:    111,
				EtasMax:    130,
				SurfaceMin: 0,
				SurfaceMax: ptr(100),
				MPRProfile: BandBlue,
				RACAmount:  1490,
			}},
		},
		Valuations: []Valuation{{
			OperationCode: "BAR-TH-171",
			IsResidential: true,
			Standard:      2500,
			Blue:          4000,
			Yellow:        3000,
			Violet:        2000,
			Rose:          1500,
		}},
		Products: map[int64]Product{1: daikin(), 2: laborProduct()},
		Sizing: &Sizing{
			FolderID:      42,
			SurfaceM2:     80,
			IncomeBand:    BandBlue,
			IsResidential: true,
		},
	}
}

func scenarioRequest() Request {
	return Request{ModuleCode: "BAR-TH-171", FolderID: 42, ProductIDs: []int64{1}}
}

func assertInvariants(t *testing.T, p Preview) {
	t.Helper()

	var ht, ttc float64
	for i, l := range p.Lines {
		c := l.Content()
		if c.Quantity < 1 {
			t.Fatalf("line %d quantity = %d, want >= 1", i, c.Quantity)
		}
		if c.UnitPriceHT < 0 || c.TVARate < 0 {
			t.Fatalf("line %d has negative amounts: %+v", i, c)
		}
		nearlyEqual(t, "line total_ht", c.TotalHT, c.UnitPriceHT*float64(c.Quantity))
		withinCent(t, "line total_ttc", c.TotalTTC, c.TotalHT*(1+c.TVARate/100))
		ht += c.TotalHT
		ttc += c.TotalTTC
	}
	if p.TotalHT != ht {
		t.Fatalf("total_ht = %v, want exact sum %v", p.TotalHT, ht)
	}
	if p.TotalTTC != ttc {
		t.Fatalf("total_ttc = %v, want exact sum %v", p.TotalTTC, ttc)
	}
	nearlyEqual(t, "rac_ttc", p.RACTTC, p.TotalTTC-p.CEEPrime)
	if p.TotalHT > 0 {
		nearlyEqual(t, "margin_percent", p.MarginPercent, p.MarginHT/p.TotalHT*100)
	} else if p.MarginPercent != 0 {
		t.Fatalf("margin_percent = %v, want 0 for empty total", p.MarginPercent)
	}
}

func hasWarning(p Preview, msg string) bool {
	for _, w := range p.Warnings {
		if w == msg {
			return true
		}
	}
	return false
}

func TestSimulate_LegacyGridScenario(t *testing.T) {
	p, err := Simulate(scenarioRequest(), scenarioSnapshot())
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	if p.StrategyUsed != StrategyLegacyGrid {
		t.Fatalf("strategy = %s, want %s", p.StrategyUsed, StrategyLegacyGrid)
	}
	withinCent(t, "rac_ttc", p.RACTTC, 1490)
	nearlyEqual(t, "cee_prime", p.CEEPrime, 4000)
	if len(p.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", p.Warnings)
	}
	if len(p.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(p.Lines))
	}
	if _, ok := p.Lines[0].(EditableLine); !ok {
		t.Fatalf("expected equipment line to be editable, got %T", p.Lines[0])
	}
	assertInvariants(t, p)
}

func TestSimulate_QuantityEditDoublesEquipmentLine(t *testing.T) {
	p, err := Simulate(scenarioRequest(), scenarioSnapshot())
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	before := p.Lines[0].Content()

	edited, err := Reconcile(p, Edit{Index: 0, Field: FieldQuantity, Quantity: 2})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	after := edited.Lines[0].Content()
	nearlyEqual(t, "line total_ht", after.TotalHT, 2*before.TotalHT)
	nearlyEqual(t, "line total_ttc", after.TotalTTC, 2*before.TotalTTC)
	nearlyEqual(t, "cee_prime", edited.CEEPrime, p.CEEPrime)
	withinCent(t, "total_ttc", edited.TotalTTC, 10980)
	withinCent(t, "rac_ttc", edited.RACTTC, 6980)
	if edited.StrategyUsed != StrategyLegacyGrid {
		t.Fatalf("strategy changed on edit: %s", edited.StrategyUsed)
	}
	assertInvariants(t, edited)

	if p.Lines[0].Content().Quantity != 1 {
		t.Fatalf("Reconcile mutated its input preview")
	}
}

func TestSimulate_FallsBackToCostPlusWhenNoRuleMatches(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Sizing.IncomeBand = BandYellow

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	if p.StrategyUsed != StrategyCostPlus {
		t.Fatalf("strategy = %s, want %s", p.StrategyUsed, StrategyCostPlus)
	}
	if !hasWarning(p, WarnRuleFallback) {
		t.Fatalf("expected fallback warning, got %v", p.Warnings)
	}
	nearlyEqual(t, "unit_price_ht", p.Lines[0].Content().UnitPriceHT, 8000)
	nearlyEqual(t, "cee_prime", p.CEEPrime, 3000)
	withinCent(t, "rac_ttc", p.RACTTC, 5440)
	assertInvariants(t, p)
}

func TestSimulate_GridDisabledUsesCostPlusWithoutWarning(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	if p.StrategyUsed != StrategyCostPlus {
		t.Fatalf("strategy = %s, want %s", p.StrategyUsed, StrategyCostPlus)
	}
	if len(p.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", p.Warnings)
	}
	nearlyEqual(t, "margin_ht", p.MarginHT, 5000)
	nearlyEqual(t, "margin_percent", p.MarginPercent, 62.5)
}

func TestSimulate_MissingEtasSkipsGrid(t *testing.T) {
	snap := scenarioSnapshot()
	product := daikin()
	product.Etas = nil
	snap.Products[1] = product

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	if p.StrategyUsed != StrategyCostPlus {
		t.Fatalf("strategy = %s, want %s", p.StrategyUsed, StrategyCostPlus)
	}
	if !hasWarning(p, WarnMissingEtas) || !hasWarning(p, WarnRuleFallback) {
		t.Fatalf("expected missing ETAS and fallback warnings, got %v", p.Warnings)
	}
}

func TestSimulate_TargetRACUsedForCostPlus(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	req := scenarioRequest()
	req.TargetRAC = ptr(2000)

	p, err := Simulate(req, snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	if p.StrategyUsed != StrategyCostPlus {
		t.Fatalf("strategy = %s, want %s", p.StrategyUsed, StrategyCostPlus)
	}
	withinCent(t, "rac_ttc", p.RACTTC, 2000)
	assertInvariants(t, p)
}

func TestMatchRule_NarrowestEtasRangeWins(t *testing.T) {
	rules := []LegacyGridRule{
		{Brand: "Daikin", EtasMin: 100, EtasMax: 150, MPRProfile: BandBlue, RACAmount: 1},
		{Brand: "daikin ", EtasMin: 115, EtasMax: 125, MPRProfile: BandBlue, RACAmount: 2},
		{Brand: "Daikin", EtasMin: 110, EtasMax: 120, MPRProfile: BandBlue, RACAmount: 3},
	}
	sizing := Sizing{SurfaceM2: 80, IncomeBand: BandBlue}

	grid, ok := matchRule(rules, daikin(), sizing)
	if !ok {
		t.Fatalf("expected a matching rule")
	}
	if grid.Position != 1 || grid.Rule.RACAmount != 2 {
		t.Fatalf("expected rule 1 (narrowest, earliest), got position %d", grid.Position)
	}
}

func TestMatchRule_BoundsAreInclusive(t *testing.T) {
	rules := []LegacyGridRule{
		{Brand: "Daikin", EtasMin: 120, EtasMax: 130, SurfaceMin: 80, SurfaceMax: ptr(80), MPRProfile: BandBlue},
	}
	if _, ok := matchRule(rules, daikin(), Sizing{SurfaceM2: 80, IncomeBand: BandBlue}); !ok {
		t.Fatalf("expected bounds to be inclusive")
	}
	if _, ok := matchRule(rules, daikin(), Sizing{SurfaceM2: 80.5, IncomeBand: BandBlue}); ok {
		t.Fatalf("expected surface above max to be rejected")
	}

	open := []LegacyGridRule{{Brand: "Daikin", EtasMin: 111, EtasMax: 130, SurfaceMin: 50, MPRProfile: BandBlue}}
	if _, ok := matchRule(open, daikin(), Sizing{SurfaceM2: 5000, IncomeBand: BandBlue}); !ok {
		t.Fatalf("expected missing surface_max to be unbounded")
	}
	if _, ok := matchRule(open, daikin(), Sizing{SurfaceM2: 5000, IncomeBand: BandRose}); ok {
		t.Fatalf("expected income band mismatch to be rejected")
	}
}

func TestSimulate_MarginFloorRaisesPrice(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.MinMarginAmount = 6000

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	nearlyEqual(t, "unit_price_ht", p.Lines[0].Content().UnitPriceHT, 9000)
	nearlyEqual(t, "margin_ht", p.MarginHT, 6000)
	if !hasWarning(p, WarnMarginFloor) {
		t.Fatalf("expected margin floor warning, got %v", p.Warnings)
	}
	assertInvariants(t, p)
}

func TestSimulate_LegacyGridRespectsMarginFloor(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.MinMarginAmount = 3000

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	if p.StrategyUsed != StrategyLegacyGrid {
		t.Fatalf("strategy = %s, want %s", p.StrategyUsed, StrategyLegacyGrid)
	}
	nearlyEqual(t, "margin_ht", p.MarginHT, 3000)
	if p.RACTTC <= 1490 {
		t.Fatalf("expected rac above grid target once floor applies, got %v", p.RACTTC)
	}
	if !hasWarning(p, WarnMarginFloor) {
		t.Fatalf("expected margin floor warning, got %v", p.Warnings)
	}
}

func TestSimulate_RACCapWithinFloorHasNoWarning(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.MaxRACAddon = ptr(3000)

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	withinCent(t, "rac_ttc", p.RACTTC, 3000)
	if len(p.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", p.Warnings)
	}
	assertInvariants(t, p)
}

func TestSimulate_RACCapBelowFloorWarns(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.MinMarginAmount = 4000
	snap.Settings.MaxRACAddon = ptr(3000)

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	withinCent(t, "rac_ttc", p.RACTTC, 3000)
	if p.MarginHT >= 4000 {
		t.Fatalf("expected margin below floor, got %v", p.MarginHT)
	}
	if !hasWarning(p, WarnRACCap) {
		t.Fatalf("expected RAC cap warning, got %v", p.Warnings)
	}
	if hasWarning(p, WarnMarginFloor) {
		t.Fatalf("did not expect floor warning when the cap wins: %v", p.Warnings)
	}
}

func TestSimulate_X90RaisesRemainingAmount(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.RoundingMode = RoundingX90

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	withinCent(t, "rac_ttc", p.RACTTC, 4440.90)
	if p.Lines[0].Content().UnitPriceHT <= 8000 {
		t.Fatalf("expected price to be raised, got %v", p.Lines[0].Content().UnitPriceHT)
	}
	assertInvariants(t, p)
}

func TestSimulate_X90AppliesToGridTarget(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.RoundingMode = RoundingX90

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	withinCent(t, "rac_ttc", p.RACTTC, 1490.90)
}

func TestNextX90(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{4440, 4440.90},
		{4440.90, 4440.90},
		{4440.95, 4441.90},
		{12.34, 12.90},
		{-10.5, -10.10},
	}
	for _, tc := range cases {
		nearlyEqual(t, "nextX90", nextX90(tc.in), tc.want)
	}
}

func TestSimulate_ValidationErrors(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Sizing = nil
	if _, err := Simulate(scenarioRequest(), snap); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing sizing, got %v", err)
	}

	req := scenarioRequest()
	req.ProductIDs = nil
	if _, err := Simulate(req, scenarioSnapshot()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty selection, got %v", err)
	}

	req.ProductIDs = []int64{1, 1}
	if _, err := Simulate(req, scenarioSnapshot()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for duplicate selection, got %v", err)
	}
}

func TestSimulate_UnavailableProducts(t *testing.T) {
	snap := scenarioSnapshot()
	archived := daikin()
	archived.Archived = true
	snap.Products[1] = archived

	_, err := Simulate(scenarioRequest(), snap)
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected archived product to be not found and invalid, got %v", err)
	}

	req := scenarioRequest()
	req.ProductIDs = []int64{99}
	if _, err := Simulate(req, scenarioSnapshot()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestSimulate_MissingValuation(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Sizing.IsResidential = false

	if _, err := Simulate(scenarioRequest(), snap); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing valuation, got %v", err)
	}
}

func TestSimulate_NegativeRACWarns(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Valuations[0].Blue = 10000

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	if p.RACTTC >= 0 {
		t.Fatalf("expected negative rac, got %v", p.RACTTC)
	}
	if !hasWarning(p, WarnNegativeRAC) {
		t.Fatalf("expected negative rac warning, got %v", p.Warnings)
	}
}

func TestBuildLines_FixedItemsAndDefaultLabor(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.FixedLineItems = []FixedLineItem{
		{Description: "Visite technique", Quantity: 1, UnitPriceHT: 150, TVARate: 20},
		{Description: "Mise en service", Quantity: 1, UnitPriceHT: 200, TVARate: 10, Editable: true},
	}
	snap.Settings.DefaultLaborProductIDs = []int64{2, 1}

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	if len(p.Lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(p.Lines))
	}
	if _, ok := p.Lines[1].(LockedLine); !ok {
		t.Fatalf("expected fixed item to be locked, got %T", p.Lines[1])
	}
	if _, ok := p.Lines[2].(EditableLine); !ok {
		t.Fatalf("expected flagged fixed item to be editable, got %T", p.Lines[2])
	}
	labor := p.Lines[3].Content()
	if labor.Kind != KindLabor || labor.ProductID == nil || *labor.ProductID != 2 {
		t.Fatalf("expected labor line for product 2, got %+v", labor)
	}

	// fixed items have no cost basis
	nearlyEqual(t, "margin_ht", p.MarginHT, (8000+150+200+1200)-(3000+600))
	assertInvariants(t, p)
}

func TestReconcile_LockedLineIgnoresPriceEdits(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.LockEquipmentPrice = true

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	same, err := Reconcile(p, Edit{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: 1})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !reflect.DeepEqual(same, p) {
		t.Fatalf("expected price edit on locked line to be a no-op")
	}

	qty, err := Reconcile(p, Edit{Index: 0, Field: FieldQuantity, Quantity: 3})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if qty.Lines[0].Content().Quantity != 3 {
		t.Fatalf("expected quantity edit on locked line to apply")
	}
	if _, ok := qty.Lines[0].(LockedLine); !ok {
		t.Fatalf("expected line to stay locked after edit, got %T", qty.Lines[0])
	}
}

func TestReconcile_RejectsInvalidEdits(t *testing.T) {
	p, err := Simulate(scenarioRequest(), scenarioSnapshot())
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	for _, e := range []Edit{
		{Index: 0, Field: FieldQuantity, Quantity: 0},
		{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: -1},
		{Index: 0, Field: FieldDescription, Description: "  "},
		{Index: 5, Field: FieldQuantity, Quantity: 1},
		{Index: 0, Field: "tva_rate"},
	} {
		if _, err := Reconcile(p, e); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", e, err)
		}
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.RoundingMode = RoundingX90

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	e := Edit{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: 7000}
	first, err := Reconcile(p, e)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	second, err := Reconcile(p, e)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results for identical edits")
	}

	again, err := Reconcile(first, e)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	nearlyEqual(t, "rac_ttc", again.RACTTC, first.RACTTC)
	nearlyEqual(t, "unit_price_ht", again.Lines[0].Content().UnitPriceHT, first.Lines[0].Content().UnitPriceHT)

	cents := math.Round(math.Abs(first.RACTTC)*100) - math.Floor(math.Abs(first.RACTTC))*100
	if cents != 90 {
		t.Fatalf("expected rac to end in .90 after edit, got %v", first.RACTTC)
	}
	assertInvariants(t, first)
}

func TestReconcile_MarginWarningFollowsEdits(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	low, err := Reconcile(p, Edit{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: 3000})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !hasWarning(low, WarnMarginEdited) {
		t.Fatalf("expected margin warning after underpriced edit, got %v", low.Warnings)
	}

	restored, err := Reconcile(low, Edit{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: 8000})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if hasWarning(restored, WarnMarginEdited) {
		t.Fatalf("expected margin warning to clear, got %v", restored.Warnings)
	}
}

func TestPreviewJSONKeepsLineEditability(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.FixedLineItems = []FixedLineItem{{Description: "Visite technique", Quantity: 1, UnitPriceHT: 150, TVARate: 20}}

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal preview: %v", err)
	}
	var wire struct {
		Lines []struct {
			IsEditable bool `json:"is_editable"`
		} `json:"lines"`
		StrategyUsed string `json:"strategy_used"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal wire preview: %v", err)
	}
	if len(wire.Lines) != 2 || !wire.Lines[0].IsEditable || wire.Lines[1].IsEditable {
		t.Fatalf("unexpected wire lines: %s", raw)
	}
	if wire.StrategyUsed != string(StrategyLegacyGrid) {
		t.Fatalf("unexpected strategy in wire form: %s", raw)
	}

	var decoded Preview
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal preview: %v", err)
	}
	if _, ok := decoded.Lines[1].(LockedLine); !ok {
		t.Fatalf("expected decoded fixed line to be locked, got %T", decoded.Lines[1])
	}
	nearlyEqual(t, "rac_ttc", decoded.RACTTC, p.RACTTC)
}

func TestSimulate_X90StaysUnderRACCap(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.RoundingMode = RoundingX90
	snap.Settings.MinMarginAmount = 0
	snap.Settings.MaxRACAddon = ptr(1000)

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	withinCent(t, "rac_ttc", p.RACTTC, 999.90)
	if p.RACTTC > 1000 {
		t.Fatalf("rac %v above cap 1000", p.RACTTC)
	}
	if hasWarning(p, WarnRACCapExceeded) || hasWarning(p, WarnRoundingCapped) {
		t.Fatalf("unexpected cap warnings: %v", p.Warnings)
	}
	assertInvariants(t, p)
}

func TestSimulate_X90SkippedWhenNoBoundaryUnderCap(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.RoundingMode = RoundingX90
	snap.Settings.MinMarginAmount = 0
	snap.Settings.MaxRACAddon = ptr(0.5)

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	withinCent(t, "rac_ttc", p.RACTTC, 0.5)
	if !hasWarning(p, WarnRoundingCapped) {
		t.Fatalf("expected rounding capped warning, got %v", p.Warnings)
	}
}

func TestSimulate_ClampedPriceStillAboveCapWarns(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.MinMarginAmount = 0
	snap.Settings.MaxRACAddon = ptr(100)
	snap.Settings.FixedLineItems = []FixedLineItem{{Description: "Forfait", Quantity: 1, UnitPriceHT: 5000, TVARate: 20}}

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	nearlyEqual(t, "unit_price_ht", p.Lines[0].Content().UnitPriceHT, 0)
	withinCent(t, "rac_ttc", p.RACTTC, 2000)
	if !hasWarning(p, WarnRACCapExceeded) {
		t.Fatalf("expected cap exceeded warning, got %v", p.Warnings)
	}
	assertInvariants(t, p)
}

func TestReconcile_EditAboveCapWarns(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.EnableLegacyGridRules = false
	snap.Settings.MinMarginAmount = 0
	snap.Settings.MaxRACAddon = ptr(1000)

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	if hasWarning(p, WarnRACCapExceeded) {
		t.Fatalf("did not expect cap warning before the edit: %v", p.Warnings)
	}

	raised, err := Reconcile(p, Edit{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: 8000})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	withinCent(t, "rac_ttc", raised.RACTTC, 4440)
	if !hasWarning(raised, WarnRACCapExceeded) {
		t.Fatalf("expected cap exceeded warning after edit, got %v", raised.Warnings)
	}

	lowered, err := Reconcile(raised, Edit{Index: 0, Field: FieldUnitPriceHT, UnitPriceHT: 4500})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if hasWarning(lowered, WarnRACCapExceeded) {
		t.Fatalf("expected cap warning to clear, got %v", lowered.Warnings)
	}
}

func TestPrevX90(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1000, 999.90},
		{1000.90, 1000.90},
		{1000.95, 1000.90},
		{0.90, 0.90},
	}
	for _, tc := range cases {
		got, ok := prevX90(tc.in)
		if !ok {
			t.Fatalf("prevX90(%v) found no boundary", tc.in)
		}
		nearlyEqual(t, "prevX90", got, tc.want)
	}
	if _, ok := prevX90(0.5); ok {
		t.Fatalf("expected no boundary under 0.5")
	}
}

// withLine replaces line i of p without repricing it.
func withLine(p Preview, i int, edit func(LineContent) LineContent) Preview {
	lines := make([]Line, len(p.Lines))
	copy(lines, p.Lines)
	lines[i] = lines[i].withContent(edit(lines[i].Content()))
	p.Lines = lines
	return p
}

func TestReconcile_RejectsTamperedPreview(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Settings.DefaultLaborProductIDs = []int64{2}

	p, err := Simulate(scenarioRequest(), snap)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	zeroQty := withLine(p, 0, func(c LineContent) LineContent { c.Quantity = 0; return c })
	if _, err := Reconcile(zeroQty, Edit{Index: 1, Field: FieldQuantity, Quantity: 2}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for untouched quantity 0 line, got %v", err)
	}

	negative := withLine(p, 1, func(c LineContent) LineContent { c.BuyingPriceHT = -1; return c })
	unknown := p
	unknown.StrategyUsed = "MAGIC"
	outOfRange := p
	outOfRange.Context.AdjustableIndex = 7
	empty := p
	empty.Lines = nil

	for name, tampered := range map[string]Preview{
		"negative amount":  negative,
		"unknown strategy": unknown,
		"adjustable index": outOfRange,
		"no lines":         empty,
	} {
		if err := tampered.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		if _, err := Reconcile(tampered, Edit{Index: 0, Field: FieldQuantity, Quantity: 1}); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected Reconcile to reject, got %v", name, err)
		}
	}
}

func TestRecompute_RestoresStaleTotals(t *testing.T) {
	p, err := Simulate(scenarioRequest(), scenarioSnapshot())
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}

	stale := withLine(p, 0, func(c LineContent) LineContent { c.TotalHT, c.TotalTTC = 1, 1; return c })
	stale.TotalHT, stale.TotalTTC, stale.RACTTC = 1, 1, -3999

	fresh, err := Recompute(stale)
	if err != nil {
		t.Fatalf("Recompute returned error: %v", err)
	}
	if !reflect.DeepEqual(fresh, p) {
		t.Fatalf("expected recomputed preview to match the simulation\n got %+v\nwant %+v", fresh, p)
	}
	assertInvariants(t, fresh)

	edited, err := Reconcile(stale, Edit{Index: 0, Field: FieldDescription, Description: "PAC"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	nearlyEqual(t, "rac_ttc", edited.RACTTC, p.RACTTC)
	assertInvariants(t, edited)
}

func TestModuleSettingsValidate_RejectsNegativeCaps(t *testing.T) {
	cases := map[string]func(*ModuleSettings){
		"max_rac_addon": func(s *ModuleSettings) { s.MaxRACAddon = ptr(-1) },
		"rac_amount":    func(s *ModuleSettings) { s.LegacyGridRules[0].RACAmount = -1490 },
	}
	for name, mutate := range cases {
		s := scenarioSnapshot().Settings
		mutate(&s)
		if err := s.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	s := scenarioSnapshot().Settings
	s.MaxRACAddon = ptr(0)
	if err := s.Validate(); err != nil {
		t.Fatalf("expected zero cap to be valid, got %v", err)
	}
}
