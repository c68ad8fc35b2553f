package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/proxyconfig"
)

// ClientProvider hands out the HTTP client used to reach one destination of a cluster.
type ClientProvider interface {
	Client(cluster string, dest *proxyconfig.Destination) *http.Client
}

// Authorizer attaches credentials for the named access token client to a request.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request, clientName string) error
}

// StaticTokens is an Authorizer sending a fixed bearer token per client name.
type StaticTokens map[string]string

// Authorize sets the bearer token registered under clientName.
func (s StaticTokens) Authorize(_ context.Context, req *http.Request, clientName string) error {
	token, ok := s[clientName]
	if !ok {
		return fmt.Errorf("no token for access token client %q", clientName)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// ClientOption configures CachingClients.
type ClientOption func(*CachingClients)

// WithTimeout bounds every request made by the clients.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *CachingClients) {
		c.timeout = timeout
	}
}

// WithoutCache disables response caching.
func WithoutCache() ClientOption {
	return func(c *CachingClients) {
		c.cache = false
	}
}

// WithAuthorizer decorates requests to destinations declaring an access token client.
func WithAuthorizer(authorizer Authorizer) ClientOption {
	return func(c *CachingClients) {
		c.authorizer = authorizer
	}
}

// WithBaseTransport sets the transport requests are finally sent through.
func WithBaseTransport(rt http.RoundTripper) ClientOption {
	return func(c *CachingClients) {
		c.base = rt
	}
}

// CachingClients keeps one client per cluster and destination pair. Responses
// are cached in memory and revalidated with conditional requests, so an
// unchanged document costs a 304 on later aggregations.
//
// A client is rebuilt when its destination's address or access token client
// changes, so credentials and cached responses never outlive the
// configuration they were built for.
type CachingClients struct {
	timeout    time.Duration
	cache      bool
	authorizer Authorizer
	base       http.RoundTripper

	mu      sync.Mutex
	clients map[string]*cachedClient
}

type cachedClient struct {
	fingerprint string
	client      *http.Client
}

func fingerprint(dest *proxyconfig.Destination) string {
	return dest.Address + "\x00" + dest.AccessTokenClientName
}

// NewCachingClients returns a provider with a 30 second timeout and caching enabled.
func NewCachingClients(opts ...ClientOption) *CachingClients {
	c := &CachingClients{
		timeout: 30 * time.Second,
		cache:   true,
		base:    http.DefaultTransport,
		clients: make(map[string]*cachedClient),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientName returns the name a client for cluster and destination is registered under.
func ClientName(cluster, destination string) string {
	return cluster + "_" + destination
}

// Client returns the client for dest, building it on first use or when dest
// no longer matches the destination the cached client was built for.
func (c *CachingClients) Client(cluster string, dest *proxyconfig.Destination) *http.Client {
	name := ClientName(cluster, dest.Name)
	fp := fingerprint(dest)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.clients[name]; ok && cached.fingerprint == fp {
		return cached.client
	}

	transport := c.base
	if dest.AccessTokenClientName != "" && c.authorizer != nil {
		transport = &authorizingTransport{
			next:       transport,
			authorizer: c.authorizer,
			clientName: dest.AccessTokenClientName,
		}
	}
	if c.cache {
		transport = &httpcache.Transport{
			Transport:           transport,
			Cache:               httpcache.NewMemoryCache(),
			MarkCachedResponses: true,
		}
	}

	client := &http.Client{Transport: transport, Timeout: c.timeout}
	c.clients[name] = &cachedClient{fingerprint: fp, client: client}
	return client
}

// Retain drops the clients of destinations cfg no longer declares.
func (c *CachingClients) Retain(cfg *proxyconfig.Config) {
	keep := make(map[string]bool)
	for _, cluster := range cfg.Clusters {
		for _, dest := range cluster.Destinations {
			keep[ClientName(cluster.Name, dest.Name)] = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.clients {
		if !keep[name] {
			delete(c.clients, name)
		}
	}
}

type authorizingTransport struct {
	next       http.RoundTripper
	authorizer Authorizer
	clientName string
}

func (t *authorizingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	if err := t.authorizer.Authorize(req.Context(), clone, t.clientName); err != nil {
		return nil, fmt.Errorf("failed to authorize request: %w", err)
	}
	return t.next.RoundTrip(clone)
}
