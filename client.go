package esdex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/transport"
)

// Client is the esdex SDK entry point. It is cheap to share: all state is
// read-only after construction.
type Client struct {
	conn   Connection
	log    *zap.Logger
	compat Compat
}

type clientConfig struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	compat     Compat
	conn       Connection
}

// Option configures a Client.
type Option func(*clientConfig)

// WithURL sets the engine base URL, e.g. http://localhost:9200.
func WithURL(url string) Option {
	return func(cfg *clientConfig) {
		cfg.url = url
	}
}

// WithBasicAuth enables HTTP basic auth on every request.
func WithBasicAuth(username, password string) Option {
	return func(cfg *clientConfig) {
		cfg.username = username
		cfg.password = password
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = httpClient
	}
}

// WithRequestTimeout bounds every request made through the default
// connection.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = d
	}
}

// WithLogger sets the logger; zap.NewNop() is used otherwise.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithCompat sets wire-format compatibility flags for older engines.
func WithCompat(compat Compat) Option {
	return func(cfg *clientConfig) {
		cfg.compat = compat
	}
}

// WithConnection replaces the default HTTP connection entirely. URL and
// auth options are ignored when set.
func WithConnection(conn Connection) Option {
	return func(cfg *clientConfig) {
		cfg.conn = conn
	}
}

// New creates an esdex Client.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	conn := cfg.conn
	if conn == nil {
		if cfg.url == "" {
			return nil, errors.New("esdex: engine URL required (use WithURL or WithConnection)")
		}
		c, err := transport.New(transport.Config{
			URL:        cfg.url,
			Username:   cfg.username,
			Password:   cfg.password,
			HTTPClient: cfg.httpClient,
			Timeout:    cfg.timeout,
			Logger:     cfg.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("esdex: create connection: %w", err)
		}
		conn = c
	}

	return &Client{conn: conn, log: cfg.logger, compat: cfg.compat}, nil
}

// Connection returns the underlying connection, for callers needing raw
// access to endpoints the SDK does not wrap.
func (c *Client) Connection() Connection { return c.conn }

// Ping checks engine connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.conn.Request(ctx, "GET", "/", nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Index returns a handle for the given index or alias name.
func (c *Client) Index(name string) *Index {
	return &Index{name: name, client: c}
}
