// Package api hosts the HTTP server, middleware, and handlers of the quotes
// service. Notable routes:
//   - GET /scrape-gasoil, /scrape-gasolina, /scrape-tipo-cambio for live quotes.
//   - POST /insert-precios-ciudades, /insert-cierre, /insert-informe for reports.
//   - GET /precios-ciudades-ultimo, /cierre-ultimo, /informes to read them back.
//   - GET /healthz / readyz for probes and /metrics for Prometheus scraping.
package api
