/*
Package fetch orchestrates page retrieval through a shared browser session.

# Overview

A Fetcher turns a Request (URL, selector, options) into a Result. Each cache
miss runs up to three attempts; every attempt holds one concurrency permit,
opens a fresh page, and closes it again before the permit is returned.

Readiness of a rendered page is decided by a race between two strategies:

  - interception: the navigated document's network response is decoded and
    checked for the selector before the page finishes rendering
  - polling: the live DOM is checked once the page settles and then every
    poll interval

Whichever finds the element first wins. If the timeout passes first the
attempt fails with ErrSelectorTimeout.

Raw requests skip the race and return the upstream document response as
captured by the browser.

# Usage

	f, err := fetch.NewFetcher(fetch.Config{
		Session: session,
		Limiter: resilience.NewLimiter(5),
		Cache:   cache.New[fetch.Result](5*time.Minute, 100),
		Matcher: scraper.NewMatcher(),
	})
	out, err := f.FetchAll(ctx, fetch.Batch{
		URLs:     []string{"https://example.com"},
		Selector: "#content",
		Options:  fetch.DefaultOptions(),
	})
*/
package fetch
