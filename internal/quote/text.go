package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Simplici0/cee-quotes/internal/pricing"
	"github.com/Simplici0/cee-quotes/internal/store"
)

func euros(v float64) string {
	return humanize.FormatFloat("# ###,##", pricing.RoundCents(v)) + " €"
}

// DraftText renders the stored preview of a draft as a plain-text summary.
func (s *Service) DraftText(ctx context.Context, tenant, id string) (string, error) {
	d, err := s.GetDraft(ctx, tenant, id)
	if err != nil {
		return "", err
	}
	if d.Preview == nil {
		return "", errNotSimulated(id)
	}
	return RenderText(d), nil
}

// RenderText formats a simulated draft. Amounts use French grouping.
func RenderText(d store.Draft) string {
	p := d.Preview
	var b strings.Builder

	name := d.Name
	if name == "" {
		name = d.ID
	}
	fmt.Fprintf(&b, "Devis %s\n", name)
	fmt.Fprintf(&b, "Module: %s\n", d.ModuleCode)
	fmt.Fprintf(&b, "Stratégie: %s\n\n", p.StrategyUsed)

	for i, l := range p.Lines {
		c := l.Content()
		fmt.Fprintf(&b, "%d. %s x%d  %s HT  TVA %s%%  %s TTC\n",
			i+1, c.Description, c.Quantity, euros(c.UnitPriceHT),
			humanize.FormatFloat("#,##", c.TVARate), euros(c.TotalTTC))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Total HT: %s\n", euros(p.TotalHT))
	fmt.Fprintf(&b, "Total TTC: %s\n", euros(p.TotalTTC))
	fmt.Fprintf(&b, "Prime CEE: %s\n", euros(p.CEEPrime))
	fmt.Fprintf(&b, "Reste à charge: %s\n", euros(p.RACTTC))
	fmt.Fprintf(&b, "Marge: %s (%s%%)\n", euros(p.MarginHT), humanize.FormatFloat("#,##", p.MarginPercent))

	if len(p.Warnings) > 0 {
		b.WriteString("\nAvertissements:\n")
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
