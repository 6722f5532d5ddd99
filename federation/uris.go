package federation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// URIs builds and parses the URIs of objects owned by this instance.
type URIs struct {
	Domain string
}

func NewURIs(domain string) URIs {
	return URIs{Domain: strings.ToLower(domain)}
}

func (u URIs) Base() string { return "https://" + u.Domain }

func (u URIs) Actor(id uuid.UUID) string     { return fmt.Sprintf("%s/users/%s", u.Base(), id) }
func (u URIs) Inbox(id uuid.UUID) string     { return u.Actor(id) + "/inbox" }
func (u URIs) Outbox(id uuid.UUID) string    { return u.Actor(id) + "/outbox" }
func (u URIs) Followers(id uuid.UUID) string { return u.Actor(id) + "/followers" }
func (u URIs) Following(id uuid.UUID) string { return u.Actor(id) + "/following" }
func (u URIs) Feed(id uuid.UUID) string      { return u.Actor(id) + "/feed" }
func (u URIs) Note(id uuid.UUID) string      { return fmt.Sprintf("%s/notes/%s", u.Base(), id) }
func (u URIs) Like(id uuid.UUID) string      { return fmt.Sprintf("%s/likes/%s", u.Base(), id) }
func (u URIs) Share(id uuid.UUID) string     { return fmt.Sprintf("%s/shares/%s", u.Base(), id) }
func (u URIs) Reaction(id uuid.UUID) string  { return fmt.Sprintf("%s/reactions/%s", u.Base(), id) }
func (u URIs) Object(id uuid.UUID) string    { return fmt.Sprintf("%s/objects/%s", u.Base(), id) }
func (u URIs) SharedInbox() string           { return u.Base() + "/inbox" }

// IsLocal reports whether uri is hosted by this instance.
func (u URIs) IsLocal(uri string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, u.Domain)
}

// ParseLocal extracts the kind ("users", "notes") and id of a local URI.
func (u URIs) ParseLocal(uri string) (string, uuid.UUID, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", uuid.Nil, err
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 {
		return "", uuid.Nil, fmt.Errorf("unexpected local path %q", parsed.Path)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid id in %q: %w", parsed.Path, err)
	}
	return parts[0], id, nil
}

func hostOf(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return normalizeHost(parsed.Host)
}

// sameHost reports whether both URIs live on the same, non-empty host.
func sameHost(a, b string) bool {
	host := hostOf(a)
	return host != "" && host == hostOf(b)
}
