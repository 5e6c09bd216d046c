package records

import (
	"strings"

	"github.com/shopspring/decimal"
)

const reasonRequired = "required values must be present and not null"

// CityPriceInput is the insert payload for precios_ciudades. A nil field was
// either null or absent in the request body.
type CityPriceInput struct {
	GasoilVigo           *decimal.Decimal `json:"gasoilVigo"`
	GasolinaFirstVigo    *decimal.Decimal `json:"gasolinaFirstVigo"`
	GasolinaSecondVigo   *decimal.Decimal `json:"gasolinaSecondVigo"`
	GasoilHuelva         *decimal.Decimal `json:"gasoilHuelva"`
	GasolinaFirstHuelva  *decimal.Decimal `json:"gasolinaFirstHuelva"`
	GasolinaSecondHuelva *decimal.Decimal `json:"gasolinaSecondHuelva"`
	GasoilMerida         *decimal.Decimal `json:"gasoilMerida"`
}

// CityPrices holds a validated precios_ciudades row.
type CityPrices struct {
	GasoilVigo           decimal.Decimal
	GasolinaFirstVigo    decimal.Decimal
	GasolinaSecondVigo   decimal.Decimal
	GasoilHuelva         decimal.Decimal
	GasolinaFirstHuelva  decimal.Decimal
	GasolinaSecondHuelva decimal.Decimal
	GasoilMerida         decimal.Decimal
}

// Validate checks every field is present and returns the row to insert.
func (in CityPriceInput) Validate() (CityPrices, error) {
	fields := []namedDecimal{
		{"gasoilVigo", in.GasoilVigo},
		{"gasolinaFirstVigo", in.GasolinaFirstVigo},
		{"gasolinaSecondVigo", in.GasolinaSecondVigo},
		{"gasoilHuelva", in.GasoilHuelva},
		{"gasolinaFirstHuelva", in.GasolinaFirstHuelva},
		{"gasolinaSecondHuelva", in.GasolinaSecondHuelva},
		{"gasoilMerida", in.GasoilMerida},
	}
	if err := requireAll(fields); err != nil {
		return CityPrices{}, err
	}
	return CityPrices{
		GasoilVigo:           *in.GasoilVigo,
		GasolinaFirstVigo:    *in.GasolinaFirstVigo,
		GasolinaSecondVigo:   *in.GasolinaSecondVigo,
		GasoilHuelva:         *in.GasoilHuelva,
		GasolinaFirstHuelva:  *in.GasolinaFirstHuelva,
		GasolinaSecondHuelva: *in.GasolinaSecondHuelva,
		GasoilMerida:         *in.GasoilMerida,
	}, nil
}

// Args returns the values in insert column order.
func (p CityPrices) Args() []any {
	return []any{
		p.GasoilVigo,
		p.GasolinaFirstVigo,
		p.GasolinaSecondVigo,
		p.GasoilHuelva,
		p.GasolinaFirstHuelva,
		p.GasolinaSecondHuelva,
		p.GasoilMerida,
	}
}

// ClosingReportInput is the insert payload for cierre.
type ClosingReportInput struct {
	ICE      *decimal.Decimal `json:"ice"`
	DeltaMed *decimal.Decimal `json:"deltaMed"`
	DeltaNWE *decimal.Decimal `json:"deltaNWE"`
	Divisa   *decimal.Decimal `json:"divisa"`
	GNA      *decimal.Decimal `json:"gna"`
	GNANWE   *decimal.Decimal `json:"gnaNWE"`
	GNAMED   *decimal.Decimal `json:"gnaMED"`
}

// ClosingValues holds a validated cierre row.
type ClosingValues struct {
	ICE      decimal.Decimal
	DeltaMed decimal.Decimal
	DeltaNWE decimal.Decimal
	Divisa   decimal.Decimal
	GNA      decimal.Decimal
	GNANWE   decimal.Decimal
	GNAMED   decimal.Decimal
}

// Validate checks every field is present and returns the row to insert.
func (in ClosingReportInput) Validate() (ClosingValues, error) {
	fields := []namedDecimal{
		{"ice", in.ICE},
		{"deltaMed", in.DeltaMed},
		{"deltaNWE", in.DeltaNWE},
		{"divisa", in.Divisa},
		{"gna", in.GNA},
		{"gnaNWE", in.GNANWE},
		{"gnaMED", in.GNAMED},
	}
	if err := requireAll(fields); err != nil {
		return ClosingValues{}, err
	}
	return ClosingValues{
		ICE:      *in.ICE,
		DeltaMed: *in.DeltaMed,
		DeltaNWE: *in.DeltaNWE,
		Divisa:   *in.Divisa,
		GNA:      *in.GNA,
		GNANWE:   *in.GNANWE,
		GNAMED:   *in.GNAMED,
	}, nil
}

// Args returns the values in insert column order.
func (c ClosingValues) Args() []any {
	return []any{c.ICE, c.DeltaMed, c.DeltaNWE, c.Divisa, c.GNA, c.GNANWE, c.GNAMED}
}

// TextReportInput is the insert payload for informe.
type TextReportInput struct {
	Texto *string `json:"texto"`
}

// Validate returns the text to store. It is kept verbatim; trimming is only
// used to reject blank reports.
func (in TextReportInput) Validate() (string, error) {
	if in.Texto == nil || strings.TrimSpace(*in.Texto) == "" {
		return "", &ValidationError{
			Fields: []string{"texto"},
			Reason: "texto must be a non-empty string",
		}
	}
	return *in.Texto, nil
}

type namedDecimal struct {
	name  string
	value *decimal.Decimal
}

func requireAll(fields []namedDecimal) error {
	var missing []string
	for _, f := range fields {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: reasonRequired}
	}
	return nil
}
