package federation

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/entity"
	"github.com/deemkeen/versiond/util"
	"github.com/google/uuid"
)

const (
	localDomain  = "local.example"
	remoteDomain = "remote.example"
)

// fakeFetcher serves canned documents keyed by URI.
type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string][]byte
	bridged map[string][]byte
	calls   int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string][]byte{}, bridged: map[string][]byte{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.bodies[uri]
	if !ok {
		return nil, fmt.Errorf("fetch of %s failed with status: 404", uri)
	}
	return body, nil
}

func (f *fakeFetcher) FetchBridged(ctx context.Context, uri string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.bridged[uri]
	if !ok {
		return nil, fmt.Errorf("bridged fetch of %s failed", uri)
	}
	return body, nil
}

func (f *fakeFetcher) put(uri string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[uri] = body
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// mapCache is an in-memory FetchCache.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (c *mapCache) Get(ctx context.Context, uri string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[uri]
	return body, ok
}

func (c *mapCache) Set(ctx context.Context, uri string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = body
}

func (c *mapCache) Forget(ctx context.Context, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
}

func (c *mapCache) has(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[uri]
	return ok
}

// remoteUser is a user on a fake remote instance holding its own key.
type remoteUser struct {
	URI  string
	key  ed25519.PrivateKey
	user *entity.User
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *db.DB
	fetcher  *fakeFetcher
	cache    *mapCache
	uris     URIs
	resolver *Resolver
	outbox   *Outbox
	inbox    *InboxProcessor
	// instance keys of the fake remote hosts
	instanceKeys map[string]ed25519.PrivateKey
}

// with returns a copy of f reporting to t, for use inside subtests.
func (f *fixture) with(t *testing.T) *fixture {
	c := *f
	c.t = t
	return &c
}

func testConfig() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.Domain = localDomain
	conf.Delivery.Workers = 2
	conf.Delivery.BatchSize = 10
	conf.Delivery.MaxAttempts = 3
	return conf
}

func newFixture(t *testing.T, conf *util.AppConfig) *fixture {
	t.Helper()
	if conf == nil {
		conf = testConfig()
	}

	database, err := db.Open(filepath.Join(t.TempDir(), "versiond.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	defederation, err := NewDefederation(conf.Defederation)
	if err != nil {
		t.Fatalf("Failed to build defederation list: %v", err)
	}
	bridge, err := NewBridge(conf)
	if err != nil {
		t.Fatalf("Failed to build bridge: %v", err)
	}
	filters, err := NewFilters(conf)
	if err != nil {
		t.Fatalf("Failed to build filters: %v", err)
	}

	f := &fixture{
		t:            t,
		ctx:          context.Background(),
		db:           database,
		fetcher:      newFakeFetcher(),
		cache:        newMapCache(),
		uris:         NewURIs(localDomain),
		instanceKeys: map[string]ed25519.PrivateKey{},
	}
	f.resolver = NewResolver(database, f.fetcher, f.cache, f.uris, conf.Bridge.Enabled)
	f.outbox = NewOutbox(database, f.uris)
	f.inbox = NewInboxProcessor(database, f.resolver, f.outbox, defederation, bridge, filters, f.uris)
	return f
}

func generateKey(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	key, err := ParsePrivateKey(private)
	if err != nil {
		t.Fatalf("Failed to parse private key: %v", err)
	}
	return public, key
}

// addInstance publishes metadata for host.
func (f *fixture) addInstance(host string) {
	f.t.Helper()
	if _, ok := f.instanceKeys[host]; ok {
		return
	}
	public, key := generateKey(f.t)
	meta := entity.InstanceMetadata{
		Type:        entity.TypeInstanceMetadata,
		Name:        host,
		Host:        host,
		SharedInbox: "https://" + host + "/inbox",
		Software:    entity.Software{Name: "fake", Version: "1.0"},
		PublicKey:   entity.InstanceKey{Algorithm: "ed25519", Key: public},
	}
	body, err := json.Marshal(meta)
	if err != nil {
		f.t.Fatalf("Failed to encode instance metadata: %v", err)
	}
	f.fetcher.put("https://"+host+"/.well-known/versia", body)
	f.instanceKeys[host] = key
}

// addRemoteUser publishes a user document on host.
func (f *fixture) addRemoteUser(host, username string, locked bool) *remoteUser {
	f.t.Helper()
	f.addInstance(host)
	public, key := generateKey(f.t)

	uri := fmt.Sprintf("https://%s/users/%s", host, username)
	u := &entity.User{
		Username:                  username,
		DisplayName:               username,
		PublicKey:                 entity.PublicKey{Actor: uri, Algorithm: "ed25519", Key: public},
		ManuallyApprovesFollowers: locked,
		Inbox:                     uri + "/inbox",
	}
	u.ID = uuid.New().String()
	u.URI = uri
	u.CreatedAt = time.Now().UTC()
	f.fetcher.put(uri, f.encode(u))
	return &remoteUser{URI: uri, key: key, user: u}
}

func (f *fixture) addLocalUser(username string, locked bool) *domain.Actor {
	f.t.Helper()
	actor, err := CreateLocalActor(f.ctx, f.db, f.uris, username, "", locked)
	if err != nil {
		f.t.Fatalf("Failed to create local user %s: %v", username, err)
	}
	return actor
}

func (f *fixture) encode(e entity.Entity) []byte {
	f.t.Helper()
	body, err := entity.Encode(e)
	if err != nil {
		f.t.Fatalf("Failed to encode %s: %v", e.EntityType(), err)
	}
	return body
}

// withBase fills the common fields of e and returns it.
func withBase[E entity.Entity](e E, uri string) E {
	base := e.Common()
	base.ID = uuid.New().String()
	base.URI = uri
	base.CreatedAt = time.Now().UTC()
	return e
}

// signedRaw builds an inbox request for body signed by signedBy.
func (f *fixture) signedRaw(key ed25519.PrivateKey, signedBy string, body []byte) InboxRequest {
	f.t.Helper()
	req := httptest.NewRequest("POST", "https://"+localDomain+"/inbox", bytes.NewReader(body))
	if err := Sign(req, body, key, signedBy, time.Now()); err != nil {
		f.t.Fatalf("Failed to sign request: %v", err)
	}
	return InboxRequest{Method: req.Method, Path: req.URL.RequestURI(), Header: req.Header, Body: body}
}

func (f *fixture) signed(u *remoteUser, e entity.Entity) InboxRequest {
	f.t.Helper()
	return f.signedRaw(u.key, u.URI, f.encode(e))
}

func (f *fixture) signedByInstance(host string, e entity.Entity) InboxRequest {
	f.t.Helper()
	return f.signedRaw(f.instanceKeys[host], InstanceSigner(host), f.encode(e))
}

// process runs req and fails the test unless it is accepted.
func (f *fixture) process(req InboxRequest) {
	f.t.Helper()
	if err := f.inbox.Process(f.ctx, req); err != nil {
		f.t.Fatalf("Expected request to be accepted, got %v", err)
	}
}

// expectStatus runs req and checks the status of the returned error.
func (f *fixture) expectStatus(req InboxRequest, status int, message string) {
	f.t.Helper()
	err := f.inbox.Process(f.ctx, req)
	if err == nil {
		f.t.Fatalf("Expected status %d, got nil error", status)
	}
	apiErr, ok := domain.AsApiError(err)
	if !ok {
		f.t.Fatalf("Expected ApiError with status %d, got %v", status, err)
	}
	if apiErr.Status != status {
		f.t.Errorf("Expected status %d, got %d (%v)", status, apiErr.Status, err)
	}
	if message != "" && apiErr.Message != message {
		f.t.Errorf("Expected message '%s', got '%s'", message, apiErr.Message)
	}
}

func (f *fixture) actor(uri string) *domain.Actor {
	f.t.Helper()
	a, err := f.db.ReadActorByURI(f.ctx, uri)
	if err != nil {
		f.t.Fatalf("Failed to read actor %s: %v", uri, err)
	}
	return a
}

func (f *fixture) relationship(owner, subject *domain.Actor) *domain.Relationship {
	f.t.Helper()
	rel, err := f.db.ReadRelationship(f.ctx, owner.Id, subject.Id)
	if err != nil {
		f.t.Fatalf("Failed to read relationship: %v", err)
	}
	return rel
}

func (f *fixture) notifications(a *domain.Actor) []domain.Notification {
	f.t.Helper()
	list, err := f.db.ListNotifications(f.ctx, a.Id, 100)
	if err != nil {
		f.t.Fatalf("Failed to list notifications: %v", err)
	}
	return list
}

func (f *fixture) pendingJobs() []domain.DeliveryJob {
	f.t.Helper()
	jobs, err := f.db.ListDeliveryJobs(f.ctx, domain.DeliveryPending, 100)
	if err != nil {
		f.t.Fatalf("Failed to list delivery jobs: %v", err)
	}
	return jobs
}

// localNote publishes a public note by author.
func (f *fixture) localNote(author *domain.Actor, text string) *domain.Note {
	f.t.Helper()
	note := &domain.Note{
		AuthorId:      author.Id,
		Visibility:    domain.VisibilityPublic,
		Content:       text,
		ContentType:   entity.MimePlain,
		ContentSource: text,
	}
	if err := f.outbox.PublishNote(f.ctx, note); err != nil {
		f.t.Fatalf("Failed to publish note: %v", err)
	}
	return note
}

// remoteNote builds a public note entity by u.
func remoteNote(u *remoteUser, text string) *entity.Note {
	n := &entity.Note{
		Author:  u.URI,
		Content: entity.Plain(text),
		Group:   entity.GroupPublic,
	}
	return withBase(n, u.URI+"/notes/"+uuid.New().String())
}
