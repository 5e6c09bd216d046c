// Package records defines the persisted report types and the validation of
// their insert payloads.
package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Table names as created by the schema bootstrap.
const (
	TableClosingReports = "cierre"
	TableTextReports    = "informe"
	TableCityPrices     = "precios_ciudades"
)

// ErrNoRows reports that a most-recent lookup found an empty table.
var ErrNoRows = errors.New("records: no rows")

// ClosingReport is one row of the cierre table.
// JSON keys follow the Postgres column names.
type ClosingReport struct {
	ID        int64           `json:"id"`
	ICE       decimal.Decimal `json:"ice"`
	DeltaMed  decimal.Decimal `json:"deltamed"`
	DeltaNWE  decimal.Decimal `json:"deltanwe"`
	Divisa    decimal.Decimal `json:"divisa"`
	GNA       decimal.Decimal `json:"gna"`
	GNANWE    decimal.Decimal `json:"gnanwe"`
	GNAMED    decimal.Decimal `json:"gnamed"`
	CreatedAt time.Time       `json:"created_at"`
}

// TextReport is one row of the informe table.
type TextReport struct {
	ID    int64     `json:"id"`
	Texto string    `json:"texto"`
	Fecha time.Time `json:"fecha"`
}

// CityPriceSnapshot is one row of the precios_ciudades table.
type CityPriceSnapshot struct {
	ID                   int64           `json:"id"`
	GasoilVigo           decimal.Decimal `json:"gasoilvigo"`
	GasolinaFirstVigo    decimal.Decimal `json:"gasolinafirstvigo"`
	GasolinaSecondVigo   decimal.Decimal `json:"gasolinasecondvigo"`
	GasoilHuelva         decimal.Decimal `json:"gasoilhuelva"`
	GasolinaFirstHuelva  decimal.Decimal `json:"gasolinafirsthuelva"`
	GasolinaSecondHuelva decimal.Decimal `json:"gasolinasecondhuelva"`
	GasoilMerida         decimal.Decimal `json:"gasoilmerida"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Store persists and reads back reports.
type Store interface {
	InsertCityPrices(ctx context.Context, in CityPrices) error
	LatestCityPrices(ctx context.Context) (CityPriceSnapshot, error)
	InsertClosingReport(ctx context.Context, in ClosingValues) error
	LatestClosingReport(ctx context.Context) (ClosingReport, error)
	InsertTextReport(ctx context.Context, texto string) error
	ListTextReports(ctx context.Context) ([]TextReport, error)
	Ping(ctx context.Context) error
}

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason + ": " + strings.Join(e.Fields, ", ")
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
