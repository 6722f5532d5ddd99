package federation

import (
	"crypto/subtle"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/util"
)

// Bridge authenticates requests relayed by a foreign-protocol bridge. Such
// requests carry a shared bearer token instead of a Versia signature.
type Bridge struct {
	token    string
	prefixes []netip.Prefix
	url      string
}

// NewBridge returns nil when the bridge is disabled.
func NewBridge(conf *util.AppConfig) (*Bridge, error) {
	if !conf.Bridge.Enabled {
		return nil, nil
	}
	if conf.Bridge.Token == "" {
		return nil, domain.ErrConfiguration("Bridge is enabled but no token is configured", "")
	}

	b := &Bridge{token: conf.Bridge.Token, url: strings.TrimSuffix(conf.Bridge.Url, "/")}
	for _, entry := range conf.Bridge.AllowedIps {
		prefix, err := parseAllowEntry(entry)
		if err != nil {
			return nil, domain.ErrConfiguration("Invalid bridge allowlist entry", err.Error())
		}
		b.prefixes = append(b.prefixes, prefix)
	}
	return b, nil
}

func parseAllowEntry(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()), nil
}

// Authenticate checks the Authorization header value and the source IP.
func (b *Bridge) Authenticate(authorization, sourceIP string) error {
	token, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(b.token)) != 1 {
		return domain.ErrUnauthorized("Invalid bridge token", "")
	}

	if len(b.prefixes) == 0 {
		return nil
	}
	if sourceIP == "" {
		return domain.ErrConfiguration("Request IP address is not available", "bridge allowlist is configured")
	}

	addr, err := netip.ParseAddr(sourceIP)
	if err != nil {
		return domain.ErrForbidden("Request IP address is not allowed", sourceIP)
	}
	addr = addr.Unmap()
	for _, prefix := range b.prefixes {
		if prefix.Contains(addr) {
			return nil
		}
	}
	return domain.ErrForbidden("Request IP address is not allowed", sourceIP)
}

// FetchURL is the relay URL used to fetch a foreign-protocol object.
func (b *Bridge) FetchURL(uri string) (string, error) {
	if b.url == "" {
		return "", domain.ErrConfiguration("Bridge URL is not configured", "")
	}
	return fmt.Sprintf("%s/apbridge/versia/query?user_url=%s", b.url, url.QueryEscape(uri)), nil
}

// Token is sent as a bearer token on relayed fetches.
func (b *Bridge) Token() string {
	return b.token
}
