package pricing

import "strings"

// EditField names the line field a user edit targets.
type EditField string

const (
	FieldDescription EditField = "description"
	FieldQuantity    EditField = "quantity"
	FieldUnitPriceHT EditField = "unit_price_ht"
)

// Edit is a single user override on one line of a preview.
type Edit struct {
	Index       int
	Field       EditField
	Description string
	Quantity    int
	UnitPriceHT float64
}

// Validate checks that a preview held by a client can be priced again.
func (p Preview) Validate() error {
	if len(p.Lines) == 0 {
		return validationf("preview has no lines")
	}
	ctx := p.Context
	if ctx.AdjustableIndex < 0 || ctx.AdjustableIndex >= len(p.Lines) {
		return validationf("adjustable line %d does not exist", ctx.AdjustableIndex)
	}
	switch ctx.RoundingMode {
	case "", RoundingNone, RoundingX90:
	default:
		return validationf("unknown rounding mode %q", ctx.RoundingMode)
	}
	switch p.StrategyUsed {
	case StrategyLegacyGrid, StrategyCostPlus:
	default:
		return validationf("unknown strategy %q", p.StrategyUsed)
	}
	if p.CEEPrime < 0 || ctx.MinMarginAmount < 0 || (ctx.MaxRACAddon != nil && *ctx.MaxRACAddon < 0) {
		return validationf("preview amounts must not be negative")
	}
	for i, l := range p.Lines {
		if l == nil {
			return validationf("line %d is empty", i)
		}
		c := l.Content()
		if c.Quantity < 1 {
			return validationf("line %d: quantity must be at least 1", i)
		}
		if c.UnitPriceHT < 0 || c.TVARate < 0 || c.BuyingPriceHT < 0 {
			return validationf("line %d: amounts must not be negative", i)
		}
	}
	return nil
}

// Recompute re-prices every line of a client-held preview and derives its
// totals and warnings again.
func Recompute(p Preview) (Preview, error) {
	if err := p.Validate(); err != nil {
		return Preview{}, err
	}
	return finalize(repriced(p.Lines), p.CEEPrime, p.StrategyUsed, warnings(p.Warnings), p.Context, true), nil
}

func repriced(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = l.withContent(l.Content().Priced())
	}
	return out
}

// Reconcile applies e to a copy of p and recomputes every dependent total.
// The incentive and the strategy stay as simulated. Price and description
// edits on locked lines are ignored and only the totals of p are recomputed.
func Reconcile(p Preview, e Edit) (Preview, error) {
	if err := p.Validate(); err != nil {
		return Preview{}, err
	}
	if e.Index < 0 || e.Index >= len(p.Lines) {
		return Preview{}, validationf("line %d does not exist", e.Index)
	}
	switch e.Field {
	case FieldQuantity:
		if e.Quantity < 1 {
			return Preview{}, validationf("quantity must be at least 1")
		}
	case FieldUnitPriceHT:
		if e.UnitPriceHT < 0 {
			return Preview{}, validationf("unit_price_ht must not be negative")
		}
	case FieldDescription:
		if strings.TrimSpace(e.Description) == "" {
			return Preview{}, validationf("description must not be empty")
		}
	default:
		return Preview{}, validationf("field %q is not editable", e.Field)
	}

	lines := repriced(p.Lines)
	line := lines[e.Index]
	if _, locked := line.(LockedLine); locked && e.Field != FieldQuantity {
		return finalize(lines, p.CEEPrime, p.StrategyUsed, warnings(p.Warnings), p.Context, true), nil
	}

	c := line.Content()
	switch e.Field {
	case FieldQuantity:
		c.Quantity = e.Quantity
	case FieldUnitPriceHT:
		c.UnitPriceHT = e.UnitPriceHT
	case FieldDescription:
		c.Description = strings.TrimSpace(e.Description)
	}
	lines[e.Index] = line.withContent(c.Priced())

	return finalize(lines, p.CEEPrime, p.StrategyUsed, warnings(p.Warnings), p.Context, true), nil
}
