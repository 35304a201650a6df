// Package datacommons is an HTTP client for a single Data Commons instance,
// implementing the federation provider contract.
package datacommons

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/datacommons-federation/internal/federation"
)

// TypeCache stores child place type lookups between requests.
type TypeCache interface {
	Get(key string) ([]string, bool)
	Put(key string, types []string)
}

// Config describes one Data Commons instance.
type Config struct {
	// Provider carries identity, the website root (Endpoint) used for
	// variable search, the API key and the search index.
	Provider federation.Provider

	// APIURL is the root of the REST v2 API, e.g. https://api.datacommons.org.
	APIURL string

	HTTPClient *http.Client
	Backoff    BackoffConfig
	Cache      TypeCache
	Logger     *zap.Logger
}

// Client talks to one Data Commons instance.
type Client struct {
	provider federation.Provider
	apiURL   string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	cache    TypeCache
	log      *zap.Logger
}

var _ federation.BaseProvider = (*Client)(nil)

// NewClient builds a Client. The circuit breaker is private to this provider.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Provider.ID == "" {
		return nil, eris.New("provider id is required")
	}
	if cfg.APIURL == "" {
		return nil, eris.Errorf("provider %s: api url is required", cfg.Provider.ID)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}
	log := cfg.Logger.With(zap.String("provider", cfg.Provider.ID))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Provider.ID,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		provider: cfg.Provider,
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		httpCfg:  HTTPClientConfig{Client: cfg.HTTPClient, Backoff: cfg.Backoff},
		circuit:  cb,
		cache:    cfg.Cache,
		log:      log,
	}, nil
}

// Provider returns the identity of this instance.
func (c *Client) Provider() federation.Provider {
	return c.provider
}

// Ping checks that the API answers a trivial node query.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fetchArcs(ctx, []string{"Earth"}, "->name")
	return err
}

func (c *Client) endpoint(path string) string {
	return c.apiURL + path
}

// unavailable wraps a transport failure as federation.ErrProviderUnavailable.
func (c *Client) unavailable(err error, op string) error {
	return eris.Wrapf(federation.ErrProviderUnavailable, "%s %s: %v", c.provider.ID, op, err)
}
