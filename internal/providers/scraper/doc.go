// Package scraper decodes intercepted HTML documents and checks them for a
// target element.
//
// Built on specialized libraries:
//   - goquery: CSS selectors (validated with cascadia)
//   - htmlquery: XPath selectors
//   - chardet: character encoding detection
//   - x/net/html/charset: transcoding to UTF-8
//
// Selectors beginning with "/", "(" or the "xpath=" prefix are evaluated as
// XPath; everything else is treated as CSS.
//
// Example Usage:
//
//	m := scraper.NewMatcher()
//	html, found, err := m.Match(body, "text/html; charset=utf-8", "#content")
package scraper
