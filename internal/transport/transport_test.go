package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kailas-cloud/esdex/internal/domain"
)

func newTestConn(t *testing.T, handler http.HandlerFunc, cfg Config) *Connection {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.URL = srv.URL
	conn, err := New(cfg)
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	return conn
}

func TestRequestPassesBodyThrough(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"acknowledged":true}`))
	}, Config{})

	raw, err := conn.Request(context.Background(), "POST", "/products/_search",
		map[string]any{"query": map[string]any{"match_all": map[string]any{}}})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if gotMethod != "POST" || gotPath != "/products/_search" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s", gotContentType)
	}
	if string(gotBody) != `{"query":{"match_all":{}}}` {
		t.Errorf("body = %s", gotBody)
	}
	if string(raw) != `{"acknowledged":true}` {
		t.Errorf("response = %s", raw)
	}
}

func TestRequestErrorStatus(t *testing.T) {
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"parsing_exception"}}`))
	}, Config{})

	_, err := conn.Request(context.Background(), "POST", "/products/_search", nil)
	var re *domain.ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T, want *domain.ResponseError", err)
	}
	if re.StatusCode != 400 {
		t.Errorf("status = %d, want 400", re.StatusCode)
	}
	if !strings.Contains(string(re.Body), "parsing_exception") {
		t.Errorf("body = %s", re.Body)
	}
}

func TestRequestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	conn, err := New(Config{URL: url})
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	_, err = conn.Request(context.Background(), "GET", "/", nil)
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %T, want *domain.TransportError", err)
	}
	if te.Unwrap() == nil {
		t.Error("transport error lost its cause")
	}
}

func TestBasicAuth(t *testing.T) {
	var user, pass string
	var hadAuth bool
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, hadAuth = r.BasicAuth()
		w.Write([]byte(`{}`))
	}, Config{Username: "elastic", Password: "secret"})

	if _, err := conn.Request(context.Background(), "GET", "/", nil); err != nil {
		t.Fatalf("request: %v", err)
	}
	if !hadAuth || user != "elastic" || pass != "secret" {
		t.Errorf("auth = %v %s/%s", hadAuth, user, pass)
	}
}

func TestBulkContentType(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"errors":false,"items":[]}`))
	}, Config{})

	payload := []byte("{\"index\":{\"_id\":\"1\"}}\n{\"v\":1}\n")
	if _, err := conn.Bulk(context.Background(), "/products/_bulk", payload); err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if gotContentType != "application/x-ndjson" {
		t.Errorf("content type = %s", gotContentType)
	}
	if string(gotBody) != string(payload) {
		t.Errorf("body = %s", gotBody)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestTrailingSlashTrimmed(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	conn, err := New(Config{URL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	if _, err := conn.Request(context.Background(), "GET", "/products", nil); err != nil {
		t.Fatalf("request: %v", err)
	}
	if gotPath != "/products" {
		t.Errorf("path = %s", gotPath)
	}
}
