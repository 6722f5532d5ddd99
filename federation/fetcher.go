package federation

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deemkeen/versiond/util"
)

const (
	ContentType  = "application/json; charset=utf-8"
	maxFetchSize = 1 << 20
)

var ErrBridgeUnavailable = errors.New("bridge is not configured")

// Fetcher retrieves remote Versia documents.
type Fetcher interface {
	// Fetch performs a GET signed with the instance key.
	Fetch(ctx context.Context, uri string) ([]byte, error)
	// FetchBridged asks the bridge to fetch a foreign-protocol object.
	FetchBridged(ctx context.Context, uri string) ([]byte, error)
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	client    *http.Client
	key       ed25519.PrivateKey
	signedBy  string
	bridge    *Bridge
	userAgent string
}

func NewHTTPFetcher(instanceKey ed25519.PrivateKey, domain string, bridge *Bridge) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: 10 * time.Second},
		key:       instanceKey,
		signedBy:  InstanceSigner(domain),
		bridge:    bridge,
		userAgent: util.GetNameAndVersion(),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if err := Sign(req, nil, f.key, f.signedBy, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}
	return f.do(req)
}

func (f *HTTPFetcher) FetchBridged(ctx context.Context, uri string) ([]byte, error) {
	if f.bridge == nil {
		return nil, ErrBridgeUnavailable
	}
	target, err := f.bridge.FetchURL(uri)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.bridge.Token())
	return f.do(req)
}

func (f *HTTPFetcher) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch of %s failed with status: %d", req.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
