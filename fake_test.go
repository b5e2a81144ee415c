package esdex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// fakeCall records one request made through the fake connection.
type fakeCall struct {
	Method string
	Path   string
	Body   []byte
	IsBulk bool
}

// fakeConn is an in-memory Connection recording every call and answering
// through a per-test respond function.
type fakeConn struct {
	calls   []fakeCall
	respond func(call fakeCall) (json.RawMessage, error)
}

func (f *fakeConn) Request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	call := fakeCall{Method: method, Path: path}
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		call.Body = b
	case []byte:
		call.Body = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		call.Body = raw
	}
	f.calls = append(f.calls, call)
	if f.respond == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.respond(call)
}

func (f *fakeConn) Bulk(ctx context.Context, path string, payload []byte) (json.RawMessage, error) {
	call := fakeCall{Method: "POST", Path: path, Body: payload, IsBulk: true}
	f.calls = append(f.calls, call)
	if f.respond == nil {
		return json.RawMessage(`{"errors":false,"items":[]}`), nil
	}
	return f.respond(call)
}

// actionCount counts bulk actions in an NDJSON payload by its meta lines.
func (c fakeCall) actionCount() int {
	n := 0
	for _, line := range strings.Split(strings.TrimRight(string(c.Body), "\n"), "\n") {
		if strings.HasPrefix(line, `{"index":`) ||
			strings.HasPrefix(line, `{"update":`) ||
			strings.HasPrefix(line, `{"delete":`) {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, conn Connection) *Client {
	t.Helper()
	client, err := New(WithConnection(conn))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// hitsResponse builds a minimal search response with the given scroll token
// and hit IDs.
func hitsResponse(scrollID string, total int, ids ...string) json.RawMessage {
	hits := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, map[string]any{"_id": id, "_source": map[string]any{"id": id}})
	}
	resp := map[string]any{
		"took": 3,
		"hits": map[string]any{
			"total": map[string]any{"value": total, "relation": "eq"},
			"hits":  hits,
		},
	}
	if scrollID != "" {
		resp["_scroll_id"] = scrollID
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		panic(fmt.Sprintf("marshal fake response: %v", err))
	}
	return raw
}

// bulkOKResponse builds a bulk response where every one of n items succeeded.
func bulkOKResponse(n int) json.RawMessage {
	items := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, map[string]any{
			"index": map[string]any{"_id": fmt.Sprintf("doc-%d", i), "status": 201},
		})
	}
	raw, err := json.Marshal(map[string]any{"errors": false, "items": items})
	if err != nil {
		panic(fmt.Sprintf("marshal fake bulk response: %v", err))
	}
	return raw
}
