package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JakeFAU/market-quotes-api/internal/config"
	"github.com/JakeFAU/market-quotes-api/internal/publisher/memory"
	"github.com/JakeFAU/market-quotes-api/internal/quotes"
	"github.com/JakeFAU/market-quotes-api/internal/records"
)

var testSources = Sources{
	Gasoil:     quotes.Source{Name: "gasoil", Field: "gasoil", URL: "https://quotes.test/gasoil"},
	Gasolina:   quotes.Source{Name: "gasolina", Field: "gasolina", URL: "https://quotes.test/gasolina"},
	TipoCambio: quotes.Source{Name: "tipo-cambio", Field: "tipoCambio", URL: "https://quotes.test/eur-usd"},
}

type fakeScraper struct {
	values map[string]float64
	err    error
	panics bool
}

func (f *fakeScraper) Quote(_ context.Context, src quotes.Source) (quotes.Quote, error) {
	if f.panics {
		panic("scraper exploded")
	}
	if f.err != nil {
		return quotes.Quote{}, f.err
	}
	v, ok := f.values[src.Name]
	if !ok {
		return quotes.Quote{}, fmt.Errorf("extract %s: %w", src.Name, quotes.ErrSelectorMiss)
	}
	return quotes.Quote{Source: src, Value: v}, nil
}

// fakeStore keeps rows in insertion order and reads them back the way the
// SQL store does: latest row by created_at, reports newest first.
type fakeStore struct {
	mu sync.Mutex

	cityPrices []records.CityPrices
	closings   []records.ClosingValues
	texts      []string

	cityRows    []records.CityPriceSnapshot
	closingRows []records.ClosingReport
	reports     []records.TextReport

	err     error
	pingErr error
}

// rowTime stamps the n-th row of a table one second after the previous one.
func rowTime(n int) time.Time {
	return testNow.Add(time.Duration(n) * time.Second)
}

func (s *fakeStore) InsertCityPrices(_ context.Context, in records.CityPrices) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cityPrices = append(s.cityPrices, in)
	s.cityRows = append(s.cityRows, records.CityPriceSnapshot{
		ID:                   int64(len(s.cityRows) + 1),
		GasoilVigo:           in.GasoilVigo,
		GasolinaFirstVigo:    in.GasolinaFirstVigo,
		GasolinaSecondVigo:   in.GasolinaSecondVigo,
		GasoilHuelva:         in.GasoilHuelva,
		GasolinaFirstHuelva:  in.GasolinaFirstHuelva,
		GasolinaSecondHuelva: in.GasolinaSecondHuelva,
		GasoilMerida:         in.GasoilMerida,
		CreatedAt:            rowTime(len(s.cityRows)),
	})
	return nil
}

func (s *fakeStore) LatestCityPrices(context.Context) (records.CityPriceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return records.CityPriceSnapshot{}, s.err
	}
	if len(s.cityRows) == 0 {
		return records.CityPriceSnapshot{}, records.ErrNoRows
	}
	return s.cityRows[len(s.cityRows)-1], nil
}

func (s *fakeStore) InsertClosingReport(_ context.Context, in records.ClosingValues) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.closings = append(s.closings, in)
	s.closingRows = append(s.closingRows, records.ClosingReport{
		ID:        int64(len(s.closingRows) + 1),
		ICE:       in.ICE,
		DeltaMed:  in.DeltaMed,
		DeltaNWE:  in.DeltaNWE,
		Divisa:    in.Divisa,
		GNA:       in.GNA,
		GNANWE:    in.GNANWE,
		GNAMED:    in.GNAMED,
		CreatedAt: rowTime(len(s.closingRows)),
	})
	return nil
}

func (s *fakeStore) LatestClosingReport(context.Context) (records.ClosingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return records.ClosingReport{}, s.err
	}
	if len(s.closingRows) == 0 {
		return records.ClosingReport{}, records.ErrNoRows
	}
	return s.closingRows[len(s.closingRows)-1], nil
}

func (s *fakeStore) InsertTextReport(_ context.Context, texto string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.texts = append(s.texts, texto)
	s.reports = append(s.reports, records.TextReport{
		ID:    int64(len(s.reports) + 1),
		Texto: texto,
		Fecha: rowTime(len(s.reports)),
	})
	return nil
}

func (s *fakeStore) ListTextReports(context.Context) ([]records.TextReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]records.TextReport, 0, len(s.reports))
	for i := len(s.reports) - 1; i >= 0; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

func (s *fakeStore) Ping(context.Context) error {
	return s.pingErr
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("broker unavailable")
}

type fakeIDGen struct {
	mu   sync.Mutex
	next int
}

func (f *fakeIDGen) NewID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return fmt.Sprintf("evt-%d", f.next), nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 3000, RequestTimeoutSeconds: 5},
		Events: config.EventsConfig{Backend: "memory", Topic: "records"},
	}
}

type testServer struct {
	*Server
	store   *fakeStore
	scraper *fakeScraper
	events  *memory.Publisher
}

func newTestServer() testServer {
	store := &fakeStore{}
	scraper := &fakeScraper{values: map[string]float64{}}
	events := memory.New()
	srv := NewServer(store, scraper, testSources, events, &fakeIDGen{}, &fakeClock{now: testNow}, testConfig(), zap.NewNop())
	return testServer{Server: srv, store: store, scraper: scraper, events: events}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
