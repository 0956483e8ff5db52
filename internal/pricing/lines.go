package pricing

import "encoding/json"

// LineKind tells where a quote line comes from.
type LineKind string

const (
	KindEquipment LineKind = "equipment"
	KindLabor     LineKind = "labor"
	KindFixed     LineKind = "fixed"
)

// LineContent is the priced content of a quote line.
type LineContent struct {
	ProductID     *int64   `json:"product_id"`
	Kind          LineKind `json:"kind"`
	Description   string   `json:"description"`
	Quantity      int      `json:"quantity"`
	UnitPriceHT   float64  `json:"unit_price_ht"`
	TVARate       float64  `json:"tva_rate"`
	BuyingPriceHT float64  `json:"buying_price_ht"`
	TotalHT       float64  `json:"total_ht"`
	TotalTTC      float64  `json:"total_ttc"`
}

// Priced returns c with TotalHT and TotalTTC derived from price, quantity and rate.
func (c LineContent) Priced() LineContent {
	c.TotalHT = c.UnitPriceHT * float64(c.Quantity)
	c.TotalTTC = c.TotalHT * (1 + c.TVARate/100)
	return c
}

// Cost is the buying cost of the line. Fixed items carry none.
func (c LineContent) Cost() float64 {
	if c.Kind == KindFixed {
		return 0
	}
	return c.BuyingPriceHT * float64(c.Quantity)
}

// Line is either a LockedLine or an EditableLine.
type Line interface {
	Content() LineContent
	withContent(LineContent) Line
}

// LockedLine only accepts quantity edits.
type LockedLine struct{ LineContent }

// EditableLine accepts description, quantity and price edits.
type EditableLine struct{ LineContent }

func (l LockedLine) Content() LineContent             { return l.LineContent }
func (l LockedLine) withContent(c LineContent) Line   { return LockedLine{c} }
func (l EditableLine) Content() LineContent           { return l.LineContent }
func (l EditableLine) withContent(c LineContent) Line { return EditableLine{c} }

// QuoteLine is the wire form of a Line.
type QuoteLine struct {
	LineContent
	IsEditable bool `json:"is_editable"`
}

// ToQuoteLines flattens lines into their wire form.
func ToQuoteLines(lines []Line) []QuoteLine {
	out := make([]QuoteLine, 0, len(lines))
	for _, l := range lines {
		_, editable := l.(EditableLine)
		out = append(out, QuoteLine{LineContent: l.Content(), IsEditable: editable})
	}
	return out
}

// FromQuoteLines rebuilds typed lines from their wire form.
func FromQuoteLines(lines []QuoteLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, ql := range lines {
		if ql.IsEditable {
			out = append(out, EditableLine{ql.LineContent})
			continue
		}
		out = append(out, LockedLine{ql.LineContent})
	}
	return out
}

// MarshalJSON encodes lines with their is_editable flag.
func (p Preview) MarshalJSON() ([]byte, error) {
	type alias Preview
	return json.Marshal(struct {
		alias
		Lines []QuoteLine `json:"lines"`
	}{alias: alias(p), Lines: ToQuoteLines(p.Lines)})
}

// UnmarshalJSON decodes a preview previously encoded with MarshalJSON.
func (p *Preview) UnmarshalJSON(data []byte) error {
	type alias Preview
	aux := struct {
		*alias
		Lines []QuoteLine `json:"lines"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Lines = FromQuoteLines(aux.Lines)
	return nil
}

func productLine(p Product, kind LineKind) LineContent {
	id := p.ID
	return LineContent{
		ProductID:     &id,
		Kind:          kind,
		Description:   p.Label(),
		Quantity:      1,
		UnitPriceHT:   p.SalePriceHT,
		TVARate:       p.TVARate,
		BuyingPriceHT: p.BuyingPriceHT,
	}.Priced()
}

func lookupProduct(products map[int64]Product, id int64) (Product, error) {
	p, ok := products[id]
	if !ok || p.Archived {
		return Product{}, productUnavailable(id, ok && p.Archived)
	}
	return p, nil
}

// buildLines assembles the initial line set. The first selected product is
// the adjustable line and always sits at index 0.
func buildLines(req Request, snap Snapshot) ([]Line, error) {
	if len(req.ProductIDs) == 0 {
		return nil, validationf("no product selected")
	}
	settings := snap.Settings
	seen := make(map[int64]bool, len(req.ProductIDs))
	lines := make([]Line, 0, len(req.ProductIDs)+len(settings.FixedLineItems)+len(settings.DefaultLaborProductIDs))

	for i, id := range req.ProductIDs {
		if seen[id] {
			return nil, validationf("product %d selected twice", id)
		}
		seen[id] = true

		p, err := lookupProduct(snap.Products, id)
		if err != nil {
			return nil, err
		}
		content := productLine(p, KindEquipment)
		if i == 0 && settings.LockEquipmentPrice {
			lines = append(lines, LockedLine{content})
			continue
		}
		lines = append(lines, EditableLine{content})
	}

	for _, item := range settings.FixedLineItems {
		if item.Quantity < 1 {
			return nil, validationf("fixed line item %q has quantity below 1", item.Description)
		}
		if item.UnitPriceHT < 0 || item.TVARate < 0 {
			return nil, validationf("fixed line item %q has a negative amount", item.Description)
		}
		content := LineContent{
			Kind:        KindFixed,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPriceHT: item.UnitPriceHT,
			TVARate:     item.TVARate,
		}.Priced()
		if item.Editable {
			lines = append(lines, EditableLine{content})
			continue
		}
		lines = append(lines, LockedLine{content})
	}

	for _, id := range settings.DefaultLaborProductIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		p, err := lookupProduct(snap.Products, id)
		if err != nil {
			return nil, err
		}
		lines = append(lines, EditableLine{productLine(p, KindLabor)})
	}

	return lines, nil
}

func withUnitPrice(lines []Line, idx int, price float64) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	c := out[idx].Content()
	c.UnitPriceHT = price
	out[idx] = out[idx].withContent(c.Priced())
	return out
}
