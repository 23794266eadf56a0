package browser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/providers/http/client"
)

// builtinHosts are blocked even when no filter list could be downloaded
var builtinHosts = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"google-analytics.com",
	"googletagmanager.com",
	"googletagservices.com",
	"adservice.google.com",
	"amazon-adsystem.com",
	"adnxs.com",
	"criteo.com",
	"criteo.net",
	"taboola.com",
	"outbrain.com",
	"scorecardresearch.com",
	"quantserve.com",
	"moatads.com",
	"pubmatic.com",
	"rubiconproject.com",
	"openx.net",
	"casalemedia.com",
	"hotjar.com",
	"mixpanel.com",
	"segment.io",
	"connect.facebook.net",
	"ads-twitter.com",
	"analytics.twitter.com",
	"bat.bing.com",
	"mc.yandex.ru",
}

// Downloader fetches filter list bodies
type Downloader interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

var _ Downloader = (*client.Client)(nil)

// Blocker matches request URLs against blocked hosts
type Blocker struct {
	mu     sync.RWMutex
	hosts  map[string]struct{}
	logger *logging.Logger
}

// NewBlocker creates a blocker seeded with the built-in host list
func NewBlocker(logger *logging.Logger) *Blocker {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Blocker{
		hosts:  make(map[string]struct{}, len(builtinHosts)),
		logger: logger,
	}
	for _, h := range builtinHosts {
		b.hosts[h] = struct{}{}
	}
	return b
}

// LoadLists downloads and merges filter lists. A list that fails to download
// is logged and skipped; the joined errors are returned alongside the number
// of hosts added.
func (b *Blocker) LoadLists(ctx context.Context, dl Downloader, urls []string) (int, error) {
	var (
		added int
		errs  []error
	)
	for _, u := range urls {
		body, err := dl.Get(ctx, u)
		if err != nil {
			b.logger.Warn("filter list download failed", zap.String("list", u), zap.Error(err))
			errs = append(errs, fmt.Errorf("filter list %s: %w", u, err))
			continue
		}
		n := b.Add(ParseFilterList(string(body))...)
		b.logger.Info("filter list loaded", zap.String("list", u), zap.Int("hosts", n))
		added += n
	}
	return added, errors.Join(errs...)
}

// Add blocks the given hosts and returns how many were new
func (b *Blocker) Add(hosts ...string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, ok := b.hosts[h]; !ok {
			b.hosts[h] = struct{}{}
			added++
		}
	}
	return added
}

// Len returns the number of blocked hosts
func (b *Blocker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.hosts)
}

// Blocks reports whether a request should be refused. Top-level documents
// are never blocked.
func (b *Blocker) Blocks(rawURL, resourceType string) bool {
	if resourceType == "Document" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	b.mu.RLock()
	defer b.mu.RUnlock()

	// Walk parent domains: a.b.example.com, b.example.com, example.com
	for h := host; ; {
		if _, ok := b.hosts[h]; ok {
			return true
		}
		_, rest, found := strings.Cut(h, ".")
		if !found || !strings.Contains(rest, ".") {
			return false
		}
		h = rest
	}
}

// ParseFilterList extracts blockable hosts from an Adblock Plus style list
// (||host^ rules) or a hosts file (0.0.0.0 host). Rules that need more than
// host matching are skipped.
func ParseFilterList(text string) []string {
	var hosts []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@@") || strings.Contains(line, "##") || strings.Contains(line, "#@#") {
			continue
		}

		if strings.HasPrefix(line, "||") {
			if host, ok := parseHostRule(line[2:]); ok {
				hosts = append(hosts, host)
			}
			continue
		}

		if host, ok := parseHostsLine(line); ok {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

func parseHostRule(rule string) (string, bool) {
	if i := strings.IndexByte(rule, '$'); i >= 0 {
		// Rules scoped to particular resource types or domains are not host-wide
		if i+1 < len(rule) {
			return "", false
		}
		rule = rule[:i]
	}
	end := strings.IndexAny(rule, "^/")
	if end < 0 || rule[end] != '^' || end != len(rule)-1 {
		return "", false
	}
	host := strings.ToLower(rule[:end])
	if !validHost(host) {
		return "", false
	}
	return host, true
}

func parseHostsLine(line string) (string, bool) {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}
	if ip := net.ParseIP(fields[0]); ip == nil {
		return "", false
	}
	host := strings.ToLower(fields[1])
	switch host {
	case "localhost", "localhost.localdomain", "local", "broadcasthost", "0.0.0.0", "ip6-localhost", "ip6-loopback":
		return "", false
	}
	if !validHost(host) {
		return "", false
	}
	return host, true
}

func validHost(host string) bool {
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	for _, r := range host {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
		default:
			return false
		}
	}
	return true
}
