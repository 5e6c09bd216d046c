// Package main hosts the quotes API entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the scrape routes, the report insert/read routes, health probes and
//     /metrics. Inserts are validated before they reach Postgres; failures are answered at the route boundary.
//   - Scraping: each scrape route runs one fetch through the Colly fetcher (or the chromedp fetcher when
//     scraper.headless is set), selects the price element with goquery and parses the locale-formatted number.
//     Fetched pages may be archived to a local directory or a GCS bucket.
//   - Persistence: a pgx pool backs the record store; every operation leases one connection and releases it on
//     return. The three tables are created at startup when missing.
//   - Events: after an insert a record.created event goes to Pub/Sub or the in-memory publisher when configured.
//
// Quick checklist:
//   - Configure env vars: DATABASE_URL (or QUOTES_DB_DSN), PORT (or QUOTES_SERVER_PORT), QUOTES_SCRAPER_*,
//     QUOTES_ARCHIVE_*, QUOTES_EVENTS_*. A database.env file next to the binary is read when present.
//   - Run locally: go run ./cmd/quotes-api -config config.yaml (or rely solely on env overrides).
package main
