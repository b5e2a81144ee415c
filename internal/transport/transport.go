// Package transport implements the default HTTP connection to the engine:
// JSON codec, newline-delimited bulk payloads, basic auth, and error
// mapping into the domain error types.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/domain"
	"github.com/kailas-cloud/esdex/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

// Config holds connection settings.
type Config struct {
	URL        string
	Username   string
	Password   string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Connection is an HTTP connection to one engine endpoint.
type Connection struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	timeout  time.Duration
	log      *zap.Logger
}

// New creates an HTTP connection.
func New(cfg Config) (*Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("engine URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Connection{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
		timeout:  timeout,
		log:      log,
	}, nil
}

// Request executes one JSON request. body may be nil, json.RawMessage, or
// any marshallable value.
func (c *Connection) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		payload = b
	case []byte:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &domain.TransportError{Op: method + " " + path, Err: err}
		}
	}
	return c.do(ctx, method, path, payload, "application/json")
}

// Bulk executes one newline-delimited bulk payload.
func (c *Connection) Bulk(ctx context.Context, path string, payload []byte) (json.RawMessage, error) {
	return c.do(ctx, "POST", path, payload, "application/x-ndjson")
}

func (c *Connection) do(ctx context.Context, method, path string, payload []byte, contentType string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &domain.TransportError{Op: method + " " + path, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "transport_error").Inc()
		c.log.Debug("engine request failed",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, &domain.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "transport_error").Inc()
		return nil, &domain.TransportError{Op: method + " " + path, Err: err}
	}

	metrics.RequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	c.log.Debug("engine request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return nil, &domain.ResponseError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}
