package esdex

import (
	"context"
	"encoding/json"
)

// Connection performs raw requests against the search engine. The SDK ships
// an HTTP implementation (internal/transport, wired by default from client
// options); anything satisfying this interface can replace it.
type Connection interface {
	// Request executes one JSON request. body may be nil, a
	// json.RawMessage attached verbatim, or any marshallable value.
	// Non-success responses come back as *ResponseError, connection
	// failures as *TransportError.
	Request(ctx context.Context, method, path string, body any) (json.RawMessage, error)

	// Bulk executes one newline-delimited bulk payload.
	Bulk(ctx context.Context, path string, payload []byte) (json.RawMessage, error)
}
