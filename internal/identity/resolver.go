// Package identity approximates visitor identity from network addresses.
// Identity is not authentication: it exists only to bucket anonymous
// visitors for quota accounting.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Unknown is the sentinel identity shared by every visitor whose address
// could not be resolved. All such visitors land in one quota bucket.
const Unknown = "unknown"

// Resolver resolves an HTTP request to a visitor identity string.
type Resolver interface {
	Resolve(r *http.Request) string
}

// RequestResolver derives identity from the request's network address,
// preferring proxy forwarding headers over the socket address.
type RequestResolver struct{}

// Resolve returns the client address for the request. It checks
// X-Forwarded-For first (first hop in the chain), then X-Real-IP, then
// RemoteAddr with the port stripped. Returns Unknown only when no address
// is present at all.
func (RequestResolver) Resolve(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return Unknown
		}
		return r.RemoteAddr
	}
	return host
}

// LookupClient queries an external identity endpoint (GET returning
// {"ip": "..."}). The first successful lookup is cached process-wide and
// reused for the lifetime of the process; on failure the sentinel Unknown
// is returned without caching, so a later call may still succeed.
type LookupClient struct {
	endpoint   string
	httpClient *http.Client

	mu     sync.Mutex
	cached string
}

// NewLookupClient creates a lookup client for the given endpoint URL.
func NewLookupClient(endpoint string) *LookupClient {
	return &LookupClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// lookupResponse is the wire shape of the identity endpoint.
type lookupResponse struct {
	IP string `json:"ip"`
}

// Lookup returns the visitor address reported by the external endpoint.
// Failures resolve to Unknown.
func (c *LookupClient) Lookup(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != "" {
		return c.cached
	}

	ip, err := c.fetch(ctx)
	if err != nil {
		return Unknown
	}
	c.cached = ip
	return ip
}

// ClearCache drops the cached address so the next Lookup refetches.
func (c *LookupClient) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = ""
}

func (c *LookupClient) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if body.IP == "" {
		return "", fmt.Errorf("identity lookup returned empty address")
	}
	return body.IP, nil
}

// FallbackResolver resolves from the request first and consults the
// external lookup when the request yields no usable public address
// (loopback or unknown). Useful behind tunnels that hide the client.
type FallbackResolver struct {
	Request RequestResolver
	Lookup  *LookupClient
}

// Resolve implements Resolver.
func (f FallbackResolver) Resolve(r *http.Request) string {
	id := f.Request.Resolve(r)
	if f.Lookup == nil {
		return id
	}
	if id == Unknown || isLoopback(id) {
		return f.Lookup.Lookup(r.Context())
	}
	return id
}

func isLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}
