package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/market-quotes-api/internal/records"
)

type tableDDL struct {
	table string
	ddl   string
}

var schema = []tableDDL{
	{
		table: records.TableClosingReports,
		ddl: `
CREATE TABLE IF NOT EXISTS cierre (
	id SERIAL PRIMARY KEY,
	ice NUMERIC(10,2) NOT NULL,
	deltaMed NUMERIC(10,2) NOT NULL,
	deltaNWE NUMERIC(10,2) NOT NULL,
	divisa NUMERIC(10,2) NOT NULL,
	gna NUMERIC(10,2) NOT NULL,
	gnaNWE NUMERIC(10,2) NOT NULL,
	gnaMED NUMERIC(10,2) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	},
	{
		table: records.TableTextReports,
		ddl: `
CREATE TABLE IF NOT EXISTS informe (
	id SERIAL PRIMARY KEY,
	texto TEXT NOT NULL,
	fecha TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	},
	{
		table: records.TableCityPrices,
		ddl: `
CREATE TABLE IF NOT EXISTS precios_ciudades (
	id SERIAL PRIMARY KEY,
	gasoilVigo NUMERIC(10,4) NOT NULL,
	gasolinaFirstVigo NUMERIC(10,4) NOT NULL,
	gasolinaSecondVigo NUMERIC(10,4) NOT NULL,
	gasoilHuelva NUMERIC(10,4) NOT NULL,
	gasolinaFirstHuelva NUMERIC(10,4) NOT NULL,
	gasolinaSecondHuelva NUMERIC(10,4) NOT NULL,
	gasoilMerida NUMERIC(10,4) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	},
}

// EnsureSchema creates the cierre, informe and precios_ciudades tables when
// they do not exist yet. It is safe to run on every start.
func EnsureSchema(ctx context.Context, pool Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, t := range schema {
		if _, err := conn.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.table, err)
		}
	}
	return nil
}
