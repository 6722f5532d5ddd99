package federation

import (
	"net/http"
	"strings"
	"testing"

	"github.com/deemkeen/versiond/domain"
	"github.com/google/uuid"
)

func TestDefederation(t *testing.T) {
	d, err := NewDefederation([]string{"bad.example", "*.spam.example", "**.worse.example", " ", "Mixed.Example"})
	if err != nil {
		t.Fatalf("Failed to compile patterns: %v", err)
	}

	tests := []struct {
		host    string
		blocked bool
	}{
		{"bad.example", true},
		{"BAD.example", true},
		{"bad.example:443", true},
		{"bad.example.", true},
		{"notbad.example", false},
		{"a.spam.example", true},
		{"a.b.spam.example", false},
		{"spam.example", false},
		{"a.b.worse.example", true},
		{"mixed.example", true},
		{"good.example", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := d.Blocked(tt.host); got != tt.blocked {
				t.Errorf("Expected Blocked(%q) = %v, got %v", tt.host, tt.blocked, got)
			}
		})
	}

	if !d.BlockedURI("https://bad.example/users/eve") {
		t.Errorf("Expected URI on a blocked host to be blocked")
	}
	if len(d.Patterns()) != 4 {
		t.Errorf("Expected 4 patterns, got %d", len(d.Patterns()))
	}

	var none *Defederation
	if none.Blocked("bad.example") {
		t.Errorf("Expected nil list to block nothing")
	}
}

func TestDefederationInvalidPattern(t *testing.T) {
	if _, err := NewDefederation([]string{"[bad"}); err == nil {
		t.Errorf("Expected error for an invalid pattern")
	}
}

func TestBridgeAuthenticate(t *testing.T) {
	conf := testConfig()
	conf.Bridge.Enabled = true
	conf.Bridge.Token = "s3cret"
	conf.Bridge.AllowedIps = []string{"10.0.0.0/8", "192.0.2.7", "2001:db8::/32"}
	conf.Bridge.Url = "https://bridge.example/"

	b, err := NewBridge(conf)
	if err != nil {
		t.Fatalf("Failed to build bridge: %v", err)
	}

	tests := []struct {
		name          string
		authorization string
		ip            string
		status        int
	}{
		{"allowed range", "Bearer s3cret", "10.20.30.40", 0},
		{"allowed address", "Bearer s3cret", "192.0.2.7", 0},
		{"mapped ipv4", "Bearer s3cret", "::ffff:10.0.0.1", 0},
		{"allowed ipv6", "Bearer s3cret", "2001:db8::1", 0},
		{"wrong token", "Bearer nope", "10.0.0.1", http.StatusUnauthorized},
		{"not bearer", "Basic s3cret", "10.0.0.1", http.StatusUnauthorized},
		{"outside allowlist", "Bearer s3cret", "192.0.2.8", http.StatusForbidden},
		{"garbage address", "Bearer s3cret", "localhost", http.StatusForbidden},
		{"unknown address", "Bearer s3cret", "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Authenticate(tt.authorization, tt.ip)
			if tt.status == 0 {
				if err != nil {
					t.Errorf("Expected success, got %v", err)
				}
				return
			}
			if got := domain.StatusOf(err); got != tt.status {
				t.Errorf("Expected status %d, got %d (%v)", tt.status, got, err)
			}
		})
	}

	target, err := b.FetchURL("https://mastodon.example/users/a b")
	if err != nil {
		t.Fatalf("Failed to build fetch URL: %v", err)
	}
	want := "https://bridge.example/apbridge/versia/query?user_url=https%3A%2F%2Fmastodon.example%2Fusers%2Fa+b"
	if target != want {
		t.Errorf("Expected '%s', got '%s'", want, target)
	}
}

func TestNewBridge(t *testing.T) {
	conf := testConfig()
	if b, err := NewBridge(conf); b != nil || err != nil {
		t.Errorf("Expected disabled bridge to be nil, got %v, %v", b, err)
	}

	conf.Bridge.Enabled = true
	if _, err := NewBridge(conf); err == nil {
		t.Errorf("Expected error without a token")
	}

	conf.Bridge.Token = "s3cret"
	conf.Bridge.AllowedIps = []string{"not-an-ip"}
	if _, err := NewBridge(conf); err == nil {
		t.Errorf("Expected error for an invalid allowlist entry")
	}

	conf.Bridge.AllowedIps = nil
	b, err := NewBridge(conf)
	if err != nil {
		t.Fatalf("Failed to build bridge: %v", err)
	}
	if err := b.Authenticate("Bearer s3cret", ""); err != nil {
		t.Errorf("Expected any address to pass without an allowlist, got %v", err)
	}
	if _, err := b.FetchURL("https://mastodon.example/users/a"); err == nil {
		t.Errorf("Expected error without a bridge URL")
	}
}

func TestFilters(t *testing.T) {
	conf := testConfig()
	conf.Filters.Note = []string{"(?i)casino"}
	conf.Filters.Username = []string{"^bot_"}
	conf.Filters.DisplayName = []string{"\\$\\$\\$"}
	conf.Filters.Bio = []string{"crypto giveaway"}

	f, err := NewFilters(conf)
	if err != nil {
		t.Fatalf("Failed to compile filters: %v", err)
	}

	if !f.MatchNote("Visit our CASINO", "") {
		t.Errorf("Expected note content to match")
	}
	if !f.MatchNote("", "casino night") {
		t.Errorf("Expected subject to match")
	}
	if f.MatchNote("hello", "") {
		t.Errorf("Expected harmless note not to match")
	}

	tests := []struct {
		username, displayName, bio string
		match                      bool
	}{
		{"bot_1", "", "", true},
		{"robot_1", "", "", false},
		{"alice", "Make $$$ fast", "", true},
		{"alice", "Alice", "join the crypto giveaway", true},
		{"alice", "Alice", "likes tea", false},
	}
	for _, tt := range tests {
		if got := f.MatchUser(tt.username, tt.displayName, tt.bio); got != tt.match {
			t.Errorf("MatchUser(%q, %q, %q): expected %v, got %v", tt.username, tt.displayName, tt.bio, tt.match, got)
		}
	}

	var none *Filters
	if none.MatchNote("casino", "") || none.MatchUser("bot_1", "", "") {
		t.Errorf("Expected nil filters to match nothing")
	}

	conf.Filters.Bio = []string{"("}
	if _, err := NewFilters(conf); err == nil || !strings.Contains(err.Error(), "bio") {
		t.Errorf("Expected error naming the bio filter, got %v", err)
	}
}

func TestURIs(t *testing.T) {
	uris := NewURIs("Local.Example")
	id := uuid.MustParse("7d1c4b4e-0b5e-4f6a-9a53-2f7a3c9b1e11")

	if got := uris.Actor(id); got != "https://local.example/users/7d1c4b4e-0b5e-4f6a-9a53-2f7a3c9b1e11" {
		t.Errorf("Unexpected actor URI %s", got)
	}
	if got := uris.Inbox(id); !strings.HasSuffix(got, "/inbox") {
		t.Errorf("Unexpected inbox URI %s", got)
	}

	if !uris.IsLocal("https://LOCAL.example/notes/1") {
		t.Errorf("Expected host comparison to ignore case")
	}
	if uris.IsLocal("https://remote.example/notes/1") {
		t.Errorf("Expected remote URI not to be local")
	}

	kind, parsed, err := uris.ParseLocal(uris.Note(id))
	if err != nil {
		t.Fatalf("Failed to parse local URI: %v", err)
	}
	if kind != "notes" || parsed != id {
		t.Errorf("Expected notes/%s, got %s/%s", id, kind, parsed)
	}

	for _, bad := range []string{"https://local.example/users/not-a-uuid", "https://local.example/users", "https://local.example/a/b/c"} {
		if _, _, err := uris.ParseLocal(bad); err == nil {
			t.Errorf("Expected error for %s", bad)
		}
	}
}
