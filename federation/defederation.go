package federation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Defederation is a hostname blocklist. Patterns use '.' as separator, so
// "*.example.com" matches one label and "**.example.com" any depth.
type Defederation struct {
	patterns []string
	matchers []glob.Glob
}

func NewDefederation(patterns []string) (*Defederation, error) {
	d := &Defederation{}
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		matcher, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid defederation pattern %q: %w", pattern, err)
		}
		d.patterns = append(d.patterns, pattern)
		d.matchers = append(d.matchers, matcher)
	}
	return d, nil
}

// Blocked reports whether host matches a pattern. Case and port are ignored.
func (d *Defederation) Blocked(host string) bool {
	if d == nil || len(d.matchers) == 0 {
		return false
	}
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, m := range d.matchers {
		if m.Match(host) {
			return true
		}
	}
	return false
}

// BlockedURI applies Blocked to the host of uri.
func (d *Defederation) BlockedURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return d.Blocked(u.Host)
}

func (d *Defederation) Patterns() []string {
	if d == nil {
		return nil
	}
	return d.patterns
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}
