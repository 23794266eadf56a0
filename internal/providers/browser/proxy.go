package browser

import (
	"fmt"
	"net/url"
	"strings"
)

// ProxyConfig is a parsed PROXY value
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// HasCredentials reports whether the proxy requires authentication
func (p *ProxyConfig) HasCredentials() bool {
	return p != nil && p.Username != ""
}

var proxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks4":  true,
	"socks5":  true,
	"socks5h": true,
}

// ParseProxy parses scheme://[user:pass@]host:port. A value without a scheme
// is treated as http.
func ParseProxy(raw string) (*ProxyConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !proxySchemes[scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return nil, fmt.Errorf("proxy must include host and port")
	}

	cfg := &ProxyConfig{
		Server: fmt.Sprintf("%s://%s", scheme, u.Host),
	}
	if u.User != nil {
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}
