// Package domain holds error types shared between the SDK surface and the
// transport layer.
package domain

import "fmt"

// TransportError is a connection-level failure: dial, timeout, broken
// connection. The engine never produced a response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError is a non-success response from the engine. Body carries the
// server-provided error document verbatim.
type ResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("engine responded %d: %s", e.StatusCode, body)
}
