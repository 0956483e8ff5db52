package pricing

import (
	"math"
	"strings"
)

// Strategy is either LegacyGrid or CostPlus.
type Strategy interface {
	Name() StrategyName
	isStrategy()
}

// LegacyGrid prices the adjustable line so the remaining amount due hits the rule's flat RAC.
type LegacyGrid struct {
	Rule LegacyGridRule
	// Position is the rule's index in the tenant's declaration order.
	Position int
}

// CostPlus prices the adjustable line from its sale price, or from a caller RAC target.
type CostPlus struct {
	BasePriceHT float64
	TargetRAC   *float64
}

func (LegacyGrid) Name() StrategyName { return StrategyLegacyGrid }
func (CostPlus) Name() StrategyName   { return StrategyCostPlus }
func (LegacyGrid) isStrategy()        {}
func (CostPlus) isStrategy()          {}

// matchRule returns the narrowest-ETAS rule matching the product and folder,
// ties going to the earliest declared rule.
func matchRule(rules []LegacyGridRule, p Product, sizing Sizing) (LegacyGrid, bool) {
	if p.Etas == nil {
		return LegacyGrid{}, false
	}
	etas := *p.Etas
	brand := strings.TrimSpace(p.Brand)

	best := -1
	bestWidth := math.Inf(1)
	for i, r := range rules {
		if !strings.EqualFold(strings.TrimSpace(r.Brand), brand) {
			continue
		}
		if etas < r.EtasMin || etas > r.EtasMax {
			continue
		}
		if sizing.SurfaceM2 < r.SurfaceMin {
			continue
		}
		if r.SurfaceMax != nil && sizing.SurfaceM2 > *r.SurfaceMax {
			continue
		}
		if r.MPRProfile != sizing.IncomeBand {
			continue
		}
		if width := r.EtasMax - r.EtasMin; width < bestWidth {
			best, bestWidth = i, width
		}
	}
	if best < 0 {
		return LegacyGrid{}, false
	}
	return LegacyGrid{Rule: rules[best], Position: best}, true
}

func selectStrategy(settings ModuleSettings, primary Product, sizing Sizing, targetRAC *float64, w *warnings) Strategy {
	costPlus := CostPlus{BasePriceHT: primary.SalePriceHT, TargetRAC: targetRAC}
	if !settings.EnableLegacyGridRules || len(settings.LegacyGridRules) == 0 {
		return costPlus
	}
	if primary.Etas == nil {
		w.add(WarnMissingEtas)
	}
	if grid, ok := matchRule(settings.LegacyGridRules, primary, sizing); ok {
		return grid
	}
	w.add(WarnRuleFallback)
	return costPlus
}

// applyStrategy sets the adjustable line's unit price according to st, then
// enforces the margin floor and, for cost-plus, the RAC ceiling.
func applyStrategy(st Strategy, lines []Line, idx int, cee float64, settings ModuleSettings, w *warnings) []Line {
	var start float64
	switch s := st.(type) {
	case LegacyGrid:
		start = reachRAC(lines, idx, cee, s.Rule.RACAmount, w)
	case CostPlus:
		start = s.BasePriceHT
		if s.TargetRAC != nil {
			start = reachRAC(lines, idx, cee, *s.TargetRAC, w)
		}
	}

	price := math.Max(start, priceForMargin(lines, idx, settings.MinMarginAmount))

	if _, ok := st.(CostPlus); ok && settings.MaxRACAddon != nil {
		if racAt(lines, idx, cee, price) > *settings.MaxRACAddon+epsilon {
			price = math.Max(0, priceForRAC(lines, idx, cee, *settings.MaxRACAddon))
		}
	}

	lines = withUnitPrice(lines, idx, price)
	margin := computeTotals(lines, cee).MarginHT
	if margin < settings.MinMarginAmount-epsilon {
		w.add(WarnRACCap)
	} else if price > start+epsilon {
		w.add(WarnMarginFloor)
	}
	return lines
}

func reachRAC(lines []Line, idx int, cee, target float64, w *warnings) float64 {
	price := priceForRAC(lines, idx, cee, target)
	if price < 0 {
		w.add(WarnPriceClamped)
		return 0
	}
	return price
}

// priceForRAC back-solves the adjustable unit price giving rac_ttc == target.
func priceForRAC(lines []Line, idx int, cee, target float64) float64 {
	var otherTTC float64
	for i, l := range lines {
		if i != idx {
			otherTTC += l.Content().TotalTTC
		}
	}
	adj := lines[idx].Content()
	factor := float64(adj.Quantity) * (1 + adj.TVARate/100)
	return (target + cee - otherTTC) / factor
}

// priceForMargin returns the adjustable unit price giving margin_ht == floor.
func priceForMargin(lines []Line, idx int, floor float64) float64 {
	var otherHT, cost float64
	for i, l := range lines {
		c := l.Content()
		cost += c.Cost()
		if i != idx {
			otherHT += c.TotalHT
		}
	}
	return (floor + cost - otherHT) / float64(lines[idx].Content().Quantity)
}

func racAt(lines []Line, idx int, cee, price float64) float64 {
	return computeTotals(withUnitPrice(lines, idx, price), cee).RACTTC
}
