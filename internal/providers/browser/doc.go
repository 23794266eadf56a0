/*
Package browser drives a headless Chromium through go-rod.

# Overview

A Session owns one browser process for the lifetime of the service. It is
started lazily on first use (or explicitly with Start) and torn down once
with Close. Every fetch attempt opens its own Page and closes it when done.

Pages track network activity over CDP:

  - finished responses are delivered to OnResponse subscribers with a lazy
    body loader
  - the response to the latest top-level navigation is kept for raw fetches
  - in-flight requests are counted for the networkidle wait conditions

# Request interception

When ad blocking is requested, or the configured proxy needs credentials,
the page enables the CDP Fetch domain. Paused requests are checked against
the Blocker and either failed with BlockedByClient or continued; proxy
authentication challenges are answered with the configured credentials.

# Proxy

PROXY accepts scheme://[user:pass@]host:port. The server part is passed to
the launcher; credentials never appear on the command line. Values that do
not parse are logged and ignored.
*/
package browser
