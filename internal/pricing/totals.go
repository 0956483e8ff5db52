package pricing

// epsilon absorbs float noise when comparing back-solved amounts.
const epsilon = 1e-6

// Totals are the aggregate amounts of a line set.
type Totals struct {
	TotalHT       float64
	TotalTTC      float64
	CostHT        float64
	RACTTC        float64
	MarginHT      float64
	MarginPercent float64
}

// computeTotals sums lines in order and derives the remaining amount due and margin.
func computeTotals(lines []Line, cee float64) Totals {
	var t Totals
	for _, l := range lines {
		c := l.Content()
		t.TotalHT += c.TotalHT
		t.TotalTTC += c.TotalTTC
		t.CostHT += c.Cost()
	}
	t.RACTTC = t.TotalTTC - cee
	t.MarginHT = t.TotalHT - t.CostHT
	if t.TotalHT > 0 {
		t.MarginPercent = t.MarginHT / t.TotalHT * 100
	}
	return t
}

// resolvePrime looks up the incentive for the folder's operation and income band.
func resolvePrime(valuations []Valuation, operationCode string, sizing Sizing) (float64, error) {
	for _, v := range valuations {
		if v.OperationCode == operationCode && v.IsResidential == sizing.IsResidential {
			return v.Amount(sizing.IncomeBand), nil
		}
	}
	return 0, notFoundf("no CEE valuation for operation %s (residential=%t)", operationCode, sizing.IsResidential)
}
