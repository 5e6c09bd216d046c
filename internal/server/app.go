// Package server builds the application's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/market-quotes-api/internal/api"
	"github.com/JakeFAU/market-quotes-api/internal/clock/system"
	"github.com/JakeFAU/market-quotes-api/internal/config"
	collyfetcher "github.com/JakeFAU/market-quotes-api/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/market-quotes-api/internal/fetcher/headless"
	"github.com/JakeFAU/market-quotes-api/internal/hash/sha256"
	"github.com/JakeFAU/market-quotes-api/internal/id/uuid"
	"github.com/JakeFAU/market-quotes-api/internal/logging"
	"github.com/JakeFAU/market-quotes-api/internal/metrics"
	"github.com/JakeFAU/market-quotes-api/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/market-quotes-api/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/market-quotes-api/internal/publisher/pubsub"
	"github.com/JakeFAU/market-quotes-api/internal/quotes"
	gcsstorage "github.com/JakeFAU/market-quotes-api/internal/storage/gcs"
	localstorage "github.com/JakeFAU/market-quotes-api/internal/storage/local"
	memorystorage "github.com/JakeFAU/market-quotes-api/internal/storage/memory"
	pgstore "github.com/JakeFAU/market-quotes-api/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg             config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	pool            *pgstore.PgxPool
	headless        *headlessfetcher.Fetcher
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.String("addr", cfg.Addr()),
		zap.String("archive_backend", cfg.Archive.Backend),
		zap.String("events_backend", cfg.Events.Backend),
	)

	if err := app.build(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	var err error
	a.pool, err = pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:           a.cfg.DB.DSN,
		MaxConns:      a.cfg.DB.MaxConns,
		MinConns:      a.cfg.DB.MinConns,
		TLSSkipVerify: a.cfg.DB.TLSSkipVerify,
	})
	if err != nil {
		return fmt.Errorf("postgres pool init failed: %w", err)
	}
	if err := bootstrapSchema(ctx, a.pool, a.cfg.DB.SchemaStrict, a.logger.Named("schema")); err != nil {
		return err
	}
	store, err := pgstore.NewRecordStore(a.pool)
	if err != nil {
		return fmt.Errorf("record store init failed: %w", err)
	}

	archiveOpts, err := a.setupArchive(ctx)
	if err != nil {
		return err
	}
	events, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}

	scraperOpts := archiveOpts
	if a.cfg.Scraper.RateLimitRPS > 0 {
		scraperOpts = append(scraperOpts, quotes.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.Scraper.RateLimitRPS,
			DefaultBurst: a.cfg.Scraper.RateLimitBurst,
		})))
		a.logger.Info("outbound rate limiter enabled",
			zap.Float64("rps", a.cfg.Scraper.RateLimitRPS),
			zap.Int("burst", a.cfg.Scraper.RateLimitBurst),
		)
	}

	clock := system.New()
	scraper := quotes.NewScraper(a.setupFetcher(), clock, a.logger.Named("quotes"), scraperOpts...)

	a.apiServer = api.NewServer(
		store,
		scraper,
		sourcesFromConfig(a.cfg),
		events,
		uuid.New(),
		clock,
		a.cfg,
		a.logger.Named("api"),
	)
	return nil
}

// bootstrapSchema runs the table bootstrap. Unless strict, a failure is
// logged and startup continues; queries will then surface the problem.
func bootstrapSchema(ctx context.Context, pool pgstore.Pool, strict bool, logger *zap.Logger) error {
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		if strict {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
		logger.Error("schema bootstrap failed, continuing", zap.Error(err))
		return nil
	}
	logger.Info("schema ready")
	return nil
}

func sourcesFromConfig(cfg config.Config) api.Sources {
	selector := cfg.Scraper.Selector
	if selector == "" {
		selector = quotes.PriceSelector
	}
	return api.Sources{
		Gasoil:     quotes.Source{Name: "gasoil", Field: "gasoil", URL: cfg.Scraper.Sources.Gasoil, Selector: selector},
		Gasolina:   quotes.Source{Name: "gasolina", Field: "gasolina", URL: cfg.Scraper.Sources.Gasolina, Selector: selector},
		TipoCambio: quotes.Source{Name: "tipo-cambio", Field: "tipoCambio", URL: cfg.Scraper.Sources.TipoCambio, Selector: selector},
	}
}

func (a *App) setupFetcher() quotes.Fetcher {
	if a.cfg.Scraper.Headless {
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Scraper.HeadlessMaxParallel,
			UserAgent:         a.cfg.Scraper.UserAgent,
			NavigationTimeout: a.cfg.ScrapeTimeout(),
			WaitSelector:      a.cfg.Scraper.Selector,
		})
		if err == nil {
			a.headless = f
			a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Scraper.HeadlessMaxParallel))
			return f
		}
		a.logger.Warn("headless fetcher init failed, falling back to colly", zap.Error(err))
	}
	a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Scraper.UserAgent))
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Scraper.UserAgent,
		Timeout:   a.cfg.ScrapeTimeout(),
	})
}

func (a *App) setupArchive(ctx context.Context) ([]quotes.Option, error) {
	var archive quotes.Archiver
	switch a.cfg.Archive.Backend {
	case "gcs":
		var err error
		a.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		archive, err = gcsstorage.New(a.storage, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages to GCS", zap.String("bucket", a.cfg.Archive.GCSBucket))
	case "local":
		var err error
		archive, err = localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages locally", zap.String("path", a.cfg.Archive.BaseDir))
	case "memory":
		archive = memorystorage.NewBlobStoreWithLimit(a.cfg.Archive.MemoryMaxPages)
		a.logger.Info("archiving pages in memory (development only)", zap.Int("max_pages", a.cfg.Archive.MemoryMaxPages))
	default:
		a.logger.Debug("page archive disabled")
		return nil, nil
	}

	opts := []quotes.Option{quotes.WithArchive(archive, a.cfg.Archive.Prefix)}
	if a.cfg.Archive.SkipUnchanged {
		opts = append(opts, quotes.WithPageHasher(sha256.New()))
	}
	return opts, nil
}

func (a *App) setupPublisher(ctx context.Context) (api.Publisher, error) {
	switch a.cfg.Events.Backend {
	case "pubsub":
		var err error
		a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		a.pubsubPublisher = gcppublisher.New(a.pubsubClient)
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.Events.ProjectID),
			zap.String("topic", a.cfg.Events.Topic),
		)
		return a.pubsubPublisher, nil
	case "memory":
		a.logger.Info("using in-memory event publisher (development only)", zap.Int("limit", a.cfg.Events.MemoryLimit))
		return memorypublisher.NewWithLimit(a.cfg.Events.MemoryLimit), nil
	default:
		a.logger.Debug("record events disabled")
		return nil, nil
	}
}

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve http: %w", err)
	default:
		return nil
	}
}

// Close releases every client the App owns and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
