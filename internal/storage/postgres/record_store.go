package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/market-quotes-api/internal/records"
)

const (
	insertCityPricesSQL = `
INSERT INTO precios_ciudades (
	gasoilVigo,
	gasolinaFirstVigo,
	gasolinaSecondVigo,
	gasoilHuelva,
	gasolinaFirstHuelva,
	gasolinaSecondHuelva,
	gasoilMerida
) VALUES ($1,$2,$3,$4,$5,$6,$7)`

	latestCityPricesSQL = `
SELECT id, gasoilVigo, gasolinaFirstVigo, gasolinaSecondVigo, gasoilHuelva,
	gasolinaFirstHuelva, gasolinaSecondHuelva, gasoilMerida, created_at
FROM precios_ciudades
ORDER BY created_at DESC, id DESC
LIMIT 1`

	insertClosingSQL = `
INSERT INTO cierre (ice, deltaMed, deltaNWE, divisa, gna, gnaNWE, gnaMED)
VALUES ($1,$2,$3,$4,$5,$6,$7)`

	latestClosingSQL = `
SELECT id, ice, deltaMed, deltaNWE, divisa, gna, gnaNWE, gnaMED, created_at
FROM cierre
ORDER BY created_at DESC, id DESC
LIMIT 1`

	insertTextReportSQL = `INSERT INTO informe (texto) VALUES ($1)`

	listTextReportsSQL = `
SELECT id, texto, fecha
FROM informe
ORDER BY fecha DESC, id DESC`
)

// RecordStore implements records.Store on top of a Pool. Every call leases
// its own connection and gives it back before returning.
type RecordStore struct {
	pool Pool
}

var _ records.Store = (*RecordStore)(nil)

// NewRecordStore constructs a RecordStore.
func NewRecordStore(pool Pool) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecordStore{pool: pool}, nil
}

// withConn runs fn on a leased connection and always releases it.
func (s *RecordStore) withConn(ctx context.Context, fn func(Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// InsertCityPrices inserts one precios_ciudades row.
func (s *RecordStore) InsertCityPrices(ctx context.Context, in records.CityPrices) error {
	return s.withConn(ctx, func(conn Conn) error {
		if _, err := conn.Exec(ctx, insertCityPricesSQL, in.Args()...); err != nil {
			return fmt.Errorf("insert %s: %w", records.TableCityPrices, err)
		}
		return nil
	})
}

// LatestCityPrices returns the newest precios_ciudades row or records.ErrNoRows.
func (s *RecordStore) LatestCityPrices(ctx context.Context) (records.CityPriceSnapshot, error) {
	var row records.CityPriceSnapshot
	err := s.withConn(ctx, func(conn Conn) error {
		err := conn.QueryRow(ctx, latestCityPricesSQL).Scan(
			&row.ID,
			&row.GasoilVigo,
			&row.GasolinaFirstVigo,
			&row.GasolinaSecondVigo,
			&row.GasoilHuelva,
			&row.GasolinaFirstHuelva,
			&row.GasolinaSecondHuelva,
			&row.GasoilMerida,
			&row.CreatedAt,
		)
		return scanErr(records.TableCityPrices, err)
	})
	if err != nil {
		return records.CityPriceSnapshot{}, err
	}
	return row, nil
}

// InsertClosingReport inserts one cierre row.
func (s *RecordStore) InsertClosingReport(ctx context.Context, in records.ClosingValues) error {
	return s.withConn(ctx, func(conn Conn) error {
		if _, err := conn.Exec(ctx, insertClosingSQL, in.Args()...); err != nil {
			return fmt.Errorf("insert %s: %w", records.TableClosingReports, err)
		}
		return nil
	})
}

// LatestClosingReport returns the newest cierre row or records.ErrNoRows.
func (s *RecordStore) LatestClosingReport(ctx context.Context) (records.ClosingReport, error) {
	var row records.ClosingReport
	err := s.withConn(ctx, func(conn Conn) error {
		err := conn.QueryRow(ctx, latestClosingSQL).Scan(
			&row.ID,
			&row.ICE,
			&row.DeltaMed,
			&row.DeltaNWE,
			&row.Divisa,
			&row.GNA,
			&row.GNANWE,
			&row.GNAMED,
			&row.CreatedAt,
		)
		return scanErr(records.TableClosingReports, err)
	})
	if err != nil {
		return records.ClosingReport{}, err
	}
	return row, nil
}

// InsertTextReport inserts one informe row.
func (s *RecordStore) InsertTextReport(ctx context.Context, texto string) error {
	return s.withConn(ctx, func(conn Conn) error {
		if _, err := conn.Exec(ctx, insertTextReportSQL, texto); err != nil {
			return fmt.Errorf("insert %s: %w", records.TableTextReports, err)
		}
		return nil
	})
}

// ListTextReports returns every informe row, newest first.
func (s *RecordStore) ListTextReports(ctx context.Context) ([]records.TextReport, error) {
	var out []records.TextReport
	err := s.withConn(ctx, func(conn Conn) error {
		rows, err := conn.Query(ctx, listTextReportsSQL)
		if err != nil {
			return fmt.Errorf("query %s: %w", records.TableTextReports, err)
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.TextReport, error) {
			var r records.TextReport
			err := row.Scan(&r.ID, &r.Texto, &r.Fecha)
			return r, err
		})
		if err != nil {
			return fmt.Errorf("scan %s: %w", records.TableTextReports, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []records.TextReport{}
	}
	return out, nil
}

// Ping checks that a connection can be leased and answers.
func (s *RecordStore) Ping(ctx context.Context) error {
	return s.withConn(ctx, func(conn Conn) error {
		if err := conn.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		return nil
	})
}

func scanErr(table string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return records.ErrNoRows
	default:
		return fmt.Errorf("select latest %s: %w", table, err)
	}
}
