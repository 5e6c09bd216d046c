// Package quotes scrapes instrument prices from rendered quote pages.
package quotes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/market-quotes-api/internal/metrics"
)

// UserAgent is sent on every outbound fetch; the quote site rejects
// requests that do not look like a browser.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// PriceSelector matches the last-price element on every instrument page.
const PriceSelector = `[data-test="instrument-price-last"]`

var (
	// ErrSelectorMiss reports that no element matched the source selector.
	ErrSelectorMiss = errors.New("quotes: selector matched no element")
	// ErrNotNumeric reports element text that does not start with a number.
	ErrNotNumeric = errors.New("quotes: text is not numeric")
)

// Source describes one quoted instrument.
type Source struct {
	// Name labels logs, metrics and archived pages.
	Name string
	// Field is the JSON key the API answers with.
	Field    string
	URL      string
	Selector string
}

// Quote is a parsed instrument price.
type Quote struct {
	Source    Source
	Text      string
	Value     float64
	FetchedAt time.Time
}

// Page is the raw result of a fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a page by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Archiver keeps a copy of fetched pages.
type Archiver interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Limiter throttles outbound fetches per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher digests a page body.
type Hasher interface {
	Hash(data []byte) string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Scraper turns a Source into a Quote: fetch, select, normalize, parse.
// A failed step is returned as is; nothing is retried.
type Scraper struct {
	fetcher       Fetcher
	clock         Clock
	logger        *zap.Logger
	archive       Archiver
	archivePrefix string
	limiter       Limiter
	hasher        Hasher

	mu         sync.Mutex
	lastDigest map[string]string
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithArchive stores every fetched page under prefix.
func WithArchive(a Archiver, prefix string) Option {
	return func(s *Scraper) {
		s.archive = a
		s.archivePrefix = strings.Trim(prefix, "/")
	}
}

// WithLimiter makes every fetch wait on l first.
func WithLimiter(l Limiter) Option {
	return func(s *Scraper) {
		s.limiter = l
	}
}

// WithPageHasher skips archiving a page identical to the last one archived
// for the same instrument.
func WithPageHasher(h Hasher) Option {
	return func(s *Scraper) {
		s.hasher = h
	}
}

// NewScraper constructs a Scraper.
func NewScraper(fetcher Fetcher, clock Clock, logger *zap.Logger, opts ...Option) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scraper{
		fetcher:    fetcher,
		clock:      clock,
		logger:     logger,
		lastDigest: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote fetches src and returns its current price.
func (s *Scraper) Quote(ctx context.Context, src Source) (Quote, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, src.URL); err != nil {
			metrics.ObserveScrape(src.Name, metrics.ScrapeFetchError, 0, 0)
			return Quote{}, fmt.Errorf("fetch %s: %w", src.Name, err)
		}
	}
	page, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		metrics.ObserveScrape(src.Name, metrics.ScrapeFetchError, 0, 0)
		return Quote{}, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	fetchedAt := s.clock.Now()
	s.archivePage(ctx, src, page, fetchedAt)

	text, err := Extract(page.Body, src.Selector)
	if err != nil {
		metrics.ObserveScrape(src.Name, metrics.ScrapeMissingNode, 0, page.Duration)
		return Quote{}, fmt.Errorf("extract %s: %w", src.Name, err)
	}
	value, err := ParseLocaleNumber(text)
	if err != nil {
		metrics.ObserveScrape(src.Name, metrics.ScrapeParseError, 0, page.Duration)
		return Quote{}, fmt.Errorf("parse %s: %w", src.Name, err)
	}

	metrics.ObserveScrape(src.Name, metrics.ScrapeOK, value, page.Duration)
	return Quote{
		Source:    src,
		Text:      text,
		Value:     value,
		FetchedAt: fetchedAt,
	}, nil
}

// archivePage is best effort: a failed upload is logged and the scrape goes on.
func (s *Scraper) archivePage(ctx context.Context, src Source, page Page, at time.Time) {
	if s.archive == nil {
		return
	}
	if s.hasher != nil {
		digest := s.hasher.Hash(page.Body)
		s.mu.Lock()
		unchanged := s.lastDigest[src.Name] == digest
		s.lastDigest[src.Name] = digest
		s.mu.Unlock()
		if unchanged {
			s.logger.Debug("page unchanged, not archived", zap.String("instrument", src.Name), zap.String("digest", digest))
			return
		}
	}
	path := ArchivePath(s.archivePrefix, src.Name, at)
	uri, err := s.archive.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader(page.Body))
	if err != nil {
		s.logger.Warn("archive page failed", zap.String("instrument", src.Name), zap.Error(err))
		return
	}
	s.logger.Debug("page archived", zap.String("instrument", src.Name), zap.String("uri", uri))
}

// archiveTimeLayout sorts lexically in fetch order.
const archiveTimeLayout = "20060102T150405.000000000Z"

// ArchivePath names the archived copy of an instrument page:
// [prefix/]<instrument>/<fetch time>.html.
func ArchivePath(prefix, instrument string, fetchedAt time.Time) string {
	path := fmt.Sprintf("%s/%s.html", instrument, fetchedAt.UTC().Format(archiveTimeLayout))
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	return path
}

// ParseArchivePath recovers the instrument and fetch time from a path built by
// ArchivePath. ok is false for any other path.
func ParseArchivePath(path string) (instrument string, fetchedAt time.Time, ok bool) {
	parts := strings.Split(strings.TrimSuffix(path, ".html"), "/")
	if len(parts) < 2 || !strings.HasSuffix(path, ".html") {
		return "", time.Time{}, false
	}
	at, err := time.Parse(archiveTimeLayout, parts[len(parts)-1])
	if err != nil || parts[len(parts)-2] == "" {
		return "", time.Time{}, false
	}
	return parts[len(parts)-2], at, true
}
