package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/market-quotes-api/internal/records"
)

var (
	cityPriceColumns = []string{
		"id", "gasoilvigo", "gasolinafirstvigo", "gasolinasecondvigo", "gasoilhuelva",
		"gasolinafirsthuelva", "gasolinasecondhuelva", "gasoilmerida", "created_at",
	}
	closingColumns = []string{
		"id", "ice", "deltamed", "deltanwe", "divisa", "gna", "gnanwe", "gnamed", "created_at",
	}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleCityPrices() records.CityPrices {
	return records.CityPrices{
		GasoilVigo:           dec("1.2345"),
		GasolinaFirstVigo:    dec("1.5"),
		GasolinaSecondVigo:   dec("1.6"),
		GasoilHuelva:         dec("1.1"),
		GasolinaFirstHuelva:  dec("1.4"),
		GasolinaSecondHuelva: dec("1.45"),
		GasoilMerida:         dec("1.3"),
	}
}

func newTestStore(t *testing.T) (*RecordStore, *fakePool) {
	t.Helper()
	pool := newFakePool(t)
	store, err := NewRecordStore(pool)
	require.NoError(t, err)
	return store, pool
}

func TestNewRecordStoreRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewRecordStore(nil)
	require.Error(t, err)
}

func TestInsertCityPrices(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	in := sampleCityPrices()
	pool.conn.ExpectExec("INSERT INTO precios_ciudades").
		WithArgs(in.Args()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertCityPrices(context.Background(), in))
	pool.requireBalanced(t)
}

func TestInsertCityPricesReleasesOnError(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	in := sampleCityPrices()
	pool.conn.ExpectExec("INSERT INTO precios_ciudades").
		WithArgs(in.Args()...).
		WillReturnError(errors.New("numeric field overflow"))

	err := store.InsertCityPrices(context.Background(), in)
	require.ErrorContains(t, err, "insert precios_ciudades")
	pool.requireBalanced(t)
}

func TestLatestCityPrices(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	in := sampleCityPrices()
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	pool.conn.ExpectQuery(regexp.QuoteMeta("FROM precios_ciudades")).
		WillReturnRows(pgxmock.NewRows(cityPriceColumns).AddRow(
			int64(7), in.GasoilVigo, in.GasolinaFirstVigo, in.GasolinaSecondVigo, in.GasoilHuelva,
			in.GasolinaFirstHuelva, in.GasolinaSecondHuelva, in.GasoilMerida, created,
		))

	row, err := store.LatestCityPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), row.ID)
	require.True(t, row.GasoilVigo.Equal(in.GasoilVigo))
	require.True(t, row.GasoilMerida.Equal(in.GasoilMerida))
	require.Equal(t, created, row.CreatedAt)
	pool.requireBalanced(t)
}

func TestLatestCityPricesEmptyTable(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	pool.conn.ExpectQuery(regexp.QuoteMeta("FROM precios_ciudades")).
		WillReturnRows(pgxmock.NewRows(cityPriceColumns))

	_, err := store.LatestCityPrices(context.Background())
	require.ErrorIs(t, err, records.ErrNoRows)
	pool.requireBalanced(t)
}

func TestInsertClosingReport(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	in := records.ClosingValues{
		ICE: dec("701.25"), DeltaMed: dec("-3.5"), DeltaNWE: dec("2"), Divisa: dec("1.08"),
		GNA: dec("650"), GNANWE: dec("12.75"), GNAMED: dec("10.5"),
	}
	pool.conn.ExpectExec("INSERT INTO cierre").
		WithArgs(in.Args()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertClosingReport(context.Background(), in))
	pool.requireBalanced(t)
}

func TestLatestClosingReport(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	created := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	pool.conn.ExpectQuery(regexp.QuoteMeta("FROM cierre")).
		WillReturnRows(pgxmock.NewRows(closingColumns).AddRow(
			int64(3), dec("701.25"), dec("-3.5"), dec("2"), dec("1.08"),
			dec("650"), dec("12.75"), dec("10.5"), created,
		))

	row, err := store.LatestClosingReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), row.ID)
	require.True(t, row.DeltaMed.Equal(dec("-3.5")))
	require.Equal(t, created, row.CreatedAt)
	pool.requireBalanced(t)
}

func TestLatestClosingReportQueryError(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	pool.conn.ExpectQuery(regexp.QuoteMeta("FROM cierre")).
		WillReturnError(errors.New("relation \"cierre\" does not exist"))

	_, err := store.LatestClosingReport(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, records.ErrNoRows)
	pool.requireBalanced(t)
}

func TestInsertTextReportKeepsText(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	pool.conn.ExpectExec(regexp.QuoteMeta("INSERT INTO informe (texto) VALUES ($1)")).
		WithArgs("  Mercado estable \n").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertTextReport(context.Background(), "  Mercado estable \n"))
	pool.requireBalanced(t)
}

func TestListTextReportsNewestFirst(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	newer := time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	pool.conn.ExpectQuery(regexp.QuoteMeta("ORDER BY fecha DESC")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "texto", "fecha"}).
			AddRow(int64(2), "segundo", newer).
			AddRow(int64(1), "primero", older))

	got, err := store.ListTextReports(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "segundo", got[0].Texto)
	require.Equal(t, "primero", got[1].Texto)
	pool.requireBalanced(t)
}

func TestListTextReportsEmptyIsNotNil(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	pool.conn.ExpectQuery(regexp.QuoteMeta("FROM informe")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "texto", "fecha"}))

	got, err := store.ListTextReports(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
	pool.requireBalanced(t)
}

func TestAcquireFailureSurfaces(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	pool.acquireErr = errors.New("too many clients")

	require.ErrorContains(t, store.InsertTextReport(context.Background(), "x"), "too many clients")
	_, err := store.ListTextReports(context.Background())
	require.Error(t, err)
	require.Zero(t, pool.released)
}

func TestPing(t *testing.T) {
	t.Parallel()

	store, pool := newTestStore(t)
	pool.conn.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))

	pool.conn.ExpectPing().WillReturnError(errors.New("conn closed"))
	require.ErrorContains(t, store.Ping(context.Background()), "ping postgres")
	pool.requireBalanced(t)
}
