// Package main is the entry point for pagefetch.
//
// pagefetch renders pages in a shared headless browser and returns their HTML
// once a selector is present, bounding concurrent pages, retrying transient
// failures and caching results.
//
// Usage:
//
//	# HTTP service (GET /, /health, /metrics)
//	pagefetch serve --port 3000
//
//	# One-shot fetch printing the JSON envelope
//	pagefetch fetch --selector '#content' https://example.com/
//
//	# Raw upstream bytes
//	pagefetch fetch --raw https://example.com/feed.json
//
// Configuration is read from the environment (see internal/infrastructure/config);
// flags override it.
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown, browser session closed once
package main
