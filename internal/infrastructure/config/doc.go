// Package config provides 12-factor configuration management for the fetch service.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, shutdown grace, gzip)
//   - Logging: Log level, output format and destination
//   - RateLimit: Per-IP rate limiting configuration
//   - Browser: Shared browser session (binary, headless, stealth, proxy)
//   - Fetch: Page concurrency, retries, default timeout, DOM poll interval
//   - Cache: Response cache TTL, capacity and key hash
//   - Adblock: Filter list sources for the content blocker
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT, GZIP_ENABLED
//   - LOG_LEVEL, LOG_DEV, LOG_OUTPUT
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BROWSER_BIN, BROWSER_HEADLESS, BROWSER_NO_SANDBOX, BROWSER_STEALTH, PROXY
//   - MAX_CONCURRENT_PAGES, MAX_RETRIES, DEFAULT_TIMEOUT, POLL_INTERVAL
//   - CACHE_ENABLED, CACHE_TTL, CACHE_MAX_ENTRIES, CACHE_KEY_HASH
//   - ADBLOCK_LISTS, ADBLOCK_FETCH_TIMEOUT
package config
