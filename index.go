package esdex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/metrics"
)

// Index is a handle on one index or alias, bound to a client. Execution
// entry points render criteria on demand; admin methods are thin wrappers
// over the corresponding engine endpoints.
type Index struct {
	name   string
	client *Client
}

// Name returns the index or alias name.
func (idx *Index) Name() string { return idx.name }

// Search renders the criteria and executes it. With failsafe enabled on the
// criteria, transport and response errors come back as an empty zero-hit
// result; build-time usage errors always propagate.
func (idx *Index) Search(ctx context.Context, c *Criteria) (*Result, error) {
	if c == nil {
		c = NewCriteria()
	}
	body, err := c.RenderCompat(idx.client.compat)
	if err != nil {
		return nil, err
	}
	raw, err := idx.client.conn.Request(ctx, "POST", "/"+idx.name+"/_search", body)
	if err != nil {
		if c.failsafeEnabled() && failsafeCatches(err) {
			idx.client.log.Debug("failsafe absorbed execution error",
				zap.String("index", idx.name), zap.Error(err))
			metrics.FailsafeAbsorbedTotal.Inc()
			return emptyResult(), nil
		}
		return nil, err
	}
	metrics.SearchesTotal.Inc()
	return newResult(raw)
}

// Aggregations executes the criteria for its aggregations only, with the
// hit list suppressed.
func (idx *Index) Aggregations(ctx context.Context, c *Criteria) (*Result, error) {
	if c == nil {
		c = NewCriteria()
	}
	zero := c.clone()
	size := 0
	zero.size = &size
	zero.from = nil
	return idx.Search(ctx, zero)
}

// Count returns the number of documents matching the criteria's query
// section.
func (idx *Index) Count(ctx context.Context, c *Criteria) (int64, error) {
	if c == nil {
		c = NewCriteria()
	}
	body, err := c.countBody()
	if err != nil {
		return 0, err
	}
	raw, err := idx.client.conn.Request(ctx, "POST", "/"+idx.name+"/_count", body)
	if err != nil {
		if c.failsafeEnabled() && failsafeCatches(err) {
			return 0, nil
		}
		return 0, err
	}
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("parse count response: %w", err)
	}
	return resp.Count, nil
}

// Create creates the index. settings may be nil or a settings/mappings
// document attached verbatim.
func (idx *Index) Create(ctx context.Context, settings any) error {
	if _, err := idx.client.conn.Request(ctx, "PUT", "/"+idx.name, settings); err != nil {
		return fmt.Errorf("create index %q: %w", idx.name, err)
	}
	return nil
}

// Delete removes the index.
func (idx *Index) Delete(ctx context.Context) error {
	if _, err := idx.client.conn.Request(ctx, "DELETE", "/"+idx.name, nil); err != nil {
		return fmt.Errorf("delete index %q: %w", idx.name, err)
	}
	return nil
}

// Exists reports whether the index exists.
func (idx *Index) Exists(ctx context.Context) (bool, error) {
	_, err := idx.client.conn.Request(ctx, "HEAD", "/"+idx.name, nil)
	if err == nil {
		return true, nil
	}
	var re *ResponseError
	if errors.As(err, &re) && re.StatusCode == 404 {
		return false, nil
	}
	return false, fmt.Errorf("index exists %q: %w", idx.name, err)
}

// Refresh makes recent writes visible to search.
func (idx *Index) Refresh(ctx context.Context) error {
	if _, err := idx.client.conn.Request(ctx, "POST", "/"+idx.name+"/_refresh", nil); err != nil {
		return fmt.Errorf("refresh index %q: %w", idx.name, err)
	}
	return nil
}

// IndexDocument stores a single document under id.
func (idx *Index) IndexDocument(ctx context.Context, id string, doc any) error {
	path := fmt.Sprintf("/%s/_doc/%s", idx.name, id)
	if _, err := idx.client.conn.Request(ctx, "PUT", path, doc); err != nil {
		return fmt.Errorf("index document %q: %w", id, err)
	}
	return nil
}

// DeleteDocument removes a single document by id.
func (idx *Index) DeleteDocument(ctx context.Context, id string) error {
	path := fmt.Sprintf("/%s/_doc/%s", idx.name, id)
	if _, err := idx.client.conn.Request(ctx, "DELETE", path, nil); err != nil {
		return fmt.Errorf("delete document %q: %w", id, err)
	}
	return nil
}
