package quote

import (
	"encoding/json"
	"fmt"

	"github.com/Simplici0/cee-quotes/internal/pricing"
)

// EditRequest is the wire form of a single line override.
type EditRequest struct {
	Index int             `json:"index"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// Edit decodes the value according to the targeted field.
func (r EditRequest) Edit() (pricing.Edit, error) {
	e := pricing.Edit{Index: r.Index, Field: pricing.EditField(r.Field)}
	if len(r.Value) == 0 {
		return pricing.Edit{}, fmt.Errorf("%w: value is required", pricing.ErrValidation)
	}

	var err error
	switch e.Field {
	case pricing.FieldDescription:
		err = json.Unmarshal(r.Value, &e.Description)
	case pricing.FieldQuantity:
		err = json.Unmarshal(r.Value, &e.Quantity)
	case pricing.FieldUnitPriceHT:
		err = json.Unmarshal(r.Value, &e.UnitPriceHT)
	default:
		return pricing.Edit{}, fmt.Errorf("%w: field %q is not editable", pricing.ErrValidation, r.Field)
	}
	if err != nil {
		return pricing.Edit{}, fmt.Errorf("%w: invalid value for %s: %v", pricing.ErrValidation, r.Field, err)
	}
	return e, nil
}

// PreviewEdit pairs a client-held preview with the override to apply to it.
type PreviewEdit struct {
	Preview pricing.Preview `json:"preview"`
	EditRequest
}
