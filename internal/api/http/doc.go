// Package http exposes the fetch service over HTTP.
//
// Routes:
//
//	GET /         fetch one or more pages (see Handlers.Fetch)
//	GET /health   session, permit and cache status
//	GET /metrics  Prometheus exposition
package http
