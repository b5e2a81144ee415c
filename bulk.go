package esdex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/esdex/internal/metrics"
)

// Default flush thresholds for a Batcher.
const (
	DefaultBulkMaxActions = 1000
	DefaultBulkMaxBytes   = 5 * 1024 * 1024
)

// ActionOption attaches optional metadata to one bulk action.
type ActionOption func(meta map[string]any)

// WithRouting sets the routing key of the action.
func WithRouting(routing string) ActionOption {
	return func(meta map[string]any) {
		meta["routing"] = routing
	}
}

// WithVersion sets an external version on the action.
func WithVersion(version int64) ActionOption {
	return func(meta map[string]any) {
		meta["version"] = version
		meta["version_type"] = "external"
	}
}

// bulkItem is one enqueued action with its serialized byte size, computed
// once at enqueue time.
type bulkItem struct {
	op      string
	id      string
	meta    []byte
	payload []byte // nil for delete
	size    int
}

// Batcher accumulates index/update/delete actions in arrival order and
// flushes them in size- and byte-bounded batches. Item failures are
// collected into the report instead of aborting the run. A Batcher executes
// its batches strictly sequentially and is not safe for concurrent use;
// independent batchers are fully independent.
type Batcher struct {
	idx        *Index
	maxActions int
	maxBytes   int

	items []bulkItem
	bytes int

	report BulkReport
	closed bool
}

// NewBatcher creates a bulk batcher for the index. Non-positive thresholds
// fall back to the defaults.
func (idx *Index) NewBatcher(maxActions, maxBytes int) *Batcher {
	if maxActions <= 0 {
		maxActions = DefaultBulkMaxActions
	}
	if maxBytes <= 0 {
		maxBytes = DefaultBulkMaxBytes
	}
	return &Batcher{idx: idx, maxActions: maxActions, maxBytes: maxBytes}
}

func actionMeta(op, id string, opts []ActionOption) ([]byte, error) {
	fields := map[string]any{"_id": id}
	for _, opt := range opts {
		opt(fields)
	}
	meta, err := json.Marshal(map[string]any{op: fields})
	if err != nil {
		return nil, fmt.Errorf("marshal %s meta: %w", op, err)
	}
	return meta, nil
}

// Index enqueues an index action for the document.
func (b *Batcher) Index(ctx context.Context, id string, doc any, opts ...ActionOption) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %q: %w", id, err)
	}
	return b.enqueue(ctx, "index", id, payload, opts)
}

// Update enqueues a partial-document update action.
func (b *Batcher) Update(ctx context.Context, id string, doc any, opts ...ActionOption) error {
	payload, err := json.Marshal(map[string]any{"doc": doc})
	if err != nil {
		return fmt.Errorf("marshal update %q: %w", id, err)
	}
	return b.enqueue(ctx, "update", id, payload, opts)
}

// Delete enqueues a delete action.
func (b *Batcher) Delete(ctx context.Context, id string, opts ...ActionOption) error {
	return b.enqueue(ctx, "delete", id, nil, opts)
}

func (b *Batcher) enqueue(ctx context.Context, op, id string, payload []byte, opts []ActionOption) error {
	if b.closed {
		return usageErrorf("batcher already closed")
	}
	meta, err := actionMeta(op, id, opts)
	if err != nil {
		return err
	}

	item := bulkItem{op: op, id: id, meta: meta, payload: payload}
	item.size = len(meta) + 1 // meta line + newline
	if payload != nil {
		item.size += len(payload) + 1
	}

	// An action that would push the pending batch over the byte bound
	// flushes what is queued first. The action itself is never rejected:
	// one exceeding the bound on its own goes out as a singleton batch.
	if len(b.items) > 0 && b.bytes+item.size > b.maxBytes {
		if err := b.Flush(ctx); err != nil {
			return err
		}
	}

	b.items = append(b.items, item)
	b.bytes += item.size

	if len(b.items) >= b.maxActions || b.bytes >= b.maxBytes {
		return b.Flush(ctx)
	}
	return nil
}

// Flush sends the pending batch, if any, and folds per-item outcomes into
// the report. A transport or response failure aborts this batch only;
// previously flushed batches stay committed.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.items) == 0 {
		return nil
	}
	items := b.items
	b.items = nil
	b.bytes = 0

	var buf bytes.Buffer
	for _, item := range items {
		buf.Write(item.meta)
		buf.WriteByte('\n')
		if item.payload != nil {
			buf.Write(item.payload)
			buf.WriteByte('\n')
		}
	}

	raw, err := b.idx.client.conn.Bulk(ctx, "/"+b.idx.name+"/_bulk", buf.Bytes())
	if err != nil {
		return fmt.Errorf("bulk flush: %w", err)
	}
	metrics.BulkFlushesTotal.Inc()

	var resp bulkResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("parse bulk response: %w", err)
	}
	b.collect(items, &resp)
	return nil
}

// Close performs the final flush regardless of thresholds and returns the
// complete report. The batcher must not be reused afterwards.
func (b *Batcher) Close(ctx context.Context) (*BulkReport, error) {
	if b.closed {
		return &b.report, nil
	}
	err := b.Flush(ctx)
	b.closed = true
	if err != nil {
		return &b.report, err
	}
	return &b.report, nil
}

// Report returns the outcomes collected so far.
func (b *Batcher) Report() *BulkReport { return &b.report }

type bulkResponse struct {
	Errors bool                                `json:"errors"`
	Items  []map[string]bulkResponseItemStatus `json:"items"`
}

type bulkResponseItemStatus struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// collect scans one executed batch's response per item. Failures never
// abort remaining items or batches; they accumulate in the report.
func (b *Batcher) collect(items []bulkItem, resp *bulkResponse) {
	for i, entry := range resp.Items {
		op := ""
		var status bulkResponseItemStatus
		for k, v := range entry {
			op = k
			status = v
		}
		if status.Status < 300 {
			b.report.Successes++
			continue
		}
		failure := BulkItemError{
			Operation: op,
			ID:        status.ID,
			Status:    status.Status,
		}
		if status.Error != nil {
			failure.Reason = status.Error.Reason
			if failure.Reason == "" {
				failure.Reason = status.Error.Type
			}
		}
		if failure.ID == "" && i < len(items) {
			failure.ID = items[i].id
		}
		b.report.Failures = append(b.report.Failures, failure)
		metrics.BulkItemFailuresTotal.Inc()
	}
}
