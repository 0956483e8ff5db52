package pricing

// Advisories attached to a preview. They never abort a simulation.
const (
	WarnRuleFallback   = "no matching grid rule; falling back to cost-plus pricing"
	WarnMissingEtas    = "primary product has no ETAS value; grid rules skipped"
	WarnMarginFloor    = "margin raised to minimum floor"
	WarnRACCap         = "RAC addon cap reached, margin below floor"
	WarnRACCapExceeded = "remaining amount due exceeds the RAC addon cap"
	WarnRoundingCapped = "X90 rounding skipped to stay within the RAC addon cap"
	WarnPriceClamped   = "target RAC unreachable; equipment price clamped to zero"
	WarnNegativeRAC    = "remaining amount due is negative"
	WarnMarginEdited   = "margin below minimum floor after manual edit"
)

// derived warnings are recomputed on every totals pass.
var derived = map[string]bool{
	WarnNegativeRAC:    true,
	WarnMarginEdited:   true,
	WarnRACCapExceeded: true,
	WarnRoundingCapped: true,
}

type warnings []string

func (w *warnings) add(msg string) {
	if w.has(msg) {
		return
	}
	*w = append(*w, msg)
}

func (w warnings) has(msg string) bool {
	for _, m := range w {
		if m == msg {
			return true
		}
	}
	return false
}

// withoutDerived returns a copy of w holding only the advisories set by the strategy.
func (w warnings) withoutDerived() warnings {
	out := make(warnings, 0, len(w)+2)
	for _, m := range w {
		if !derived[m] {
			out = append(out, m)
		}
	}
	return out
}

// addDerived adds the advisories t warrants. edited marks a pass triggered by a manual edit.
func (w *warnings) addDerived(t Totals, ctx Context, edited bool) {
	if t.RACTTC < -epsilon {
		w.add(WarnNegativeRAC)
	}
	if ctx.MaxRACAddon != nil && t.RACTTC > *ctx.MaxRACAddon+epsilon {
		w.add(WarnRACCapExceeded)
	}
	if edited && t.MarginHT < ctx.MinMarginAmount-epsilon && !w.has(WarnRACCap) {
		w.add(WarnMarginEdited)
	}
}
