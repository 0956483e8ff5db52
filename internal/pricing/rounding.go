package pricing

import "github.com/shopspring/decimal"

var ninetyCents = decimal.New(90, -2)

// nextX90 returns the smallest amount ending in .90 that is not below rac,
// comparing at cent precision.
func nextX90(rac float64) float64 {
	cents := decimal.NewFromFloat(rac).Round(2)
	floor := cents.Floor()
	if cents.Sub(floor).Equal(ninetyCents) {
		return rac
	}
	target := floor.Add(ninetyCents)
	if target.LessThan(cents) {
		target = target.Add(decimal.NewFromInt(1))
	}
	return target.InexactFloat64()
}

// prevX90 returns the largest amount ending in .90 that is not above v, at
// cent precision. ok is false when no such non-negative amount exists.
func prevX90(v float64) (float64, bool) {
	cents := decimal.NewFromFloat(v).Round(2)
	target := cents.Floor().Add(ninetyCents)
	if target.GreaterThan(cents) {
		target = target.Sub(decimal.NewFromInt(1))
	}
	if target.IsNegative() {
		return 0, false
	}
	return target.InexactFloat64(), true
}

// normalizeRounding moves the adjustable line so rac_ttc lands on the rounding
// boundary. It raises the price, unless the next boundary is above the RAC
// addon cap: the price then drops to the last boundary under the cap, or
// rounding is skipped when that boundary cannot be reached.
func normalizeRounding(lines []Line, ctx Context, cee float64, w *warnings) []Line {
	if ctx.RoundingMode != RoundingX90 {
		return lines
	}
	idx := ctx.AdjustableIndex
	rac := computeTotals(lines, cee).RACTTC
	target := nextX90(rac)
	if target <= rac {
		return lines
	}

	limit := ctx.MaxRACAddon
	if limit == nil || target <= *limit+epsilon {
		return withUnitPrice(lines, idx, priceForRAC(lines, idx, cee, target))
	}
	if rac > *limit+epsilon {
		return lines
	}

	below, ok := prevX90(*limit)
	if !ok {
		w.add(WarnRoundingCapped)
		return lines
	}
	price := priceForRAC(lines, idx, cee, below)
	if price < 0 {
		w.add(WarnRoundingCapped)
		return lines
	}
	out := withUnitPrice(lines, idx, price)
	if computeTotals(out, cee).MarginHT < ctx.MinMarginAmount-epsilon {
		w.add(WarnRACCap)
	}
	return out
}

// RoundCents rounds an amount half away from zero to two decimals, for display.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
