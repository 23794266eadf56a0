// Package server assembles the fetch service: it builds the browser session,
// limiter, cache and fetcher from configuration and serves them over gin.
package server
