package pricing

// Simulate builds and prices a quote for the selected products against a
// tenant snapshot. It performs no I/O and is deterministic for equal inputs.
func Simulate(req Request, snap Snapshot) (Preview, error) {
	if snap.Sizing == nil {
		return Preview{}, validationf("no sizing data for folder %d", req.FolderID)
	}
	sizing := *snap.Sizing
	if sizing.SurfaceM2 < 0 {
		return Preview{}, validationf("folder %d has a negative surface", req.FolderID)
	}
	if !sizing.IncomeBand.Valid() {
		return Preview{}, validationf("folder %d has unknown income band %q", req.FolderID, sizing.IncomeBand)
	}

	mode := snap.Settings.RoundingMode
	switch mode {
	case "":
		mode = RoundingNone
	case RoundingNone, RoundingX90:
	default:
		return Preview{}, validationf("unknown rounding mode %q", mode)
	}

	lines, err := buildLines(req, snap)
	if err != nil {
		return Preview{}, err
	}

	operation := sizing.OperationCode
	if operation == "" {
		operation = req.ModuleCode
	}
	cee, err := resolvePrime(snap.Valuations, operation, sizing)
	if err != nil {
		return Preview{}, err
	}

	const adjustable = 0
	primary := snap.Products[req.ProductIDs[0]]

	var w warnings
	st := selectStrategy(snap.Settings, primary, sizing, req.TargetRAC, &w)
	lines = applyStrategy(st, lines, adjustable, cee, snap.Settings, &w)

	ctx := Context{
		AdjustableIndex: adjustable,
		RoundingMode:    mode,
		MinMarginAmount: snap.Settings.MinMarginAmount,
	}
	if _, ok := st.(CostPlus); ok {
		ctx.MaxRACAddon = snap.Settings.MaxRACAddon
	}
	return finalize(lines, cee, st.Name(), w, ctx, false), nil
}

// finalize applies the rounding policy and derives every total of the preview.
func finalize(lines []Line, cee float64, strategy StrategyName, w warnings, ctx Context, edited bool) Preview {
	w = w.withoutDerived()
	lines = normalizeRounding(lines, ctx, cee, &w)
	t := computeTotals(lines, cee)
	w.addDerived(t, ctx, edited)
	return Preview{
		Lines:         lines,
		TotalHT:       t.TotalHT,
		TotalTTC:      t.TotalTTC,
		CEEPrime:      cee,
		RACTTC:        t.RACTTC,
		MarginHT:      t.MarginHT,
		MarginPercent: t.MarginPercent,
		StrategyUsed:  strategy,
		Warnings:      []string(w),
		Context:       ctx,
	}
}
