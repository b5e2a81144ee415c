package esdex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Hit is a single document returned by a search.
type Hit struct {
	Index     string              `json:"_index"`
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Routing   string              `json:"_routing"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
	Sort      []any               `json:"sort"`
}

// DecodeSource unmarshals the hit's _source document into v.
func (h *Hit) DecodeSource(v any) error {
	if err := json.Unmarshal(h.Source, v); err != nil {
		return fmt.Errorf("decode source of %q: %w", h.ID, err)
	}
	return nil
}

// HitsTotal is the total hit count. Older engines report a bare number,
// newer ones an object with a relation.
type HitsTotal struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

func (t *HitsTotal) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '{' {
		return json.Unmarshal(data, &t.Value)
	}
	type plain HitsTotal
	return json.Unmarshal(data, (*plain)(t))
}

type hitsEnvelope struct {
	Total    HitsTotal `json:"total"`
	MaxScore float64   `json:"max_score"`
	Hits     []Hit     `json:"hits"`
}

type responseEnvelope struct {
	Took         int                        `json:"took"`
	TimedOut     bool                       `json:"timed_out"`
	ScrollID     string                     `json:"_scroll_id"`
	Hits         hitsEnvelope               `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
	Suggest      map[string][]suggestEntry  `json:"suggest"`
	Profile      json.RawMessage            `json:"profile"`
}

type suggestEntry struct {
	Text    string          `json:"text"`
	Offset  int             `json:"offset"`
	Length  int             `json:"length"`
	Options []SuggestOption `json:"options"`
}

// SuggestOption is one candidate produced by a suggester.
type SuggestOption struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Freq  int64   `json:"freq"`
}

// Result is a read-only view over a parsed search response.
type Result struct {
	raw  json.RawMessage
	resp responseEnvelope
}

func newResult(raw json.RawMessage) (*Result, error) {
	r := &Result{raw: raw}
	if err := json.Unmarshal(raw, &r.resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return r, nil
}

// emptyResult is what failsafe mode substitutes for a failed execution.
func emptyResult() *Result {
	return &Result{raw: json.RawMessage(`{}`)}
}

// Raw returns the unparsed response document.
func (r *Result) Raw() json.RawMessage { return r.raw }

// Took returns the server-side execution time.
func (r *Result) Took() time.Duration {
	return time.Duration(r.resp.Took) * time.Millisecond
}

// TimedOut reports whether the engine cut the query short.
func (r *Result) TimedOut() bool { return r.resp.TimedOut }

// TotalHits returns the total number of matching documents.
func (r *Result) TotalHits() int64 { return r.resp.Hits.Total.Value }

// Hits returns the returned page of documents.
func (r *Result) Hits() []Hit { return r.resp.Hits.Hits }

// IDs returns the hit document IDs in result order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.resp.Hits.Hits))
	for i := range r.resp.Hits.Hits {
		ids[i] = r.resp.Hits.Hits[i].ID
	}
	return ids
}

// MaxScore returns the best hit score of the page.
func (r *Result) MaxScore() float64 { return r.resp.Hits.MaxScore }

// ScrollID returns the cursor token attached to a scroll-mode response.
func (r *Result) ScrollID() string { return r.resp.ScrollID }

// Profile returns the raw profiler section, if requested.
func (r *Result) Profile() json.RawMessage { return r.resp.Profile }

// Aggregation returns the named top-level aggregation result.
func (r *Result) Aggregation(name string) (*AggregationResult, bool) {
	raw, ok := r.resp.Aggregations[name]
	if !ok {
		return nil, false
	}
	agg, err := parseAggregation(raw)
	if err != nil {
		return nil, false
	}
	return agg, true
}

// RawAggregation returns the named aggregation section unparsed, an escape
// hatch for shapes the typed accessors do not model.
func (r *Result) RawAggregation(name string) (json.RawMessage, bool) {
	raw, ok := r.resp.Aggregations[name]
	return raw, ok
}

// Suggestions returns the flattened options of the named suggester.
func (r *Result) Suggestions(name string) []SuggestOption {
	entries, ok := r.resp.Suggest[name]
	if !ok {
		return nil
	}
	var out []SuggestOption
	for _, e := range entries {
		out = append(out, e.Options...)
	}
	return out
}

// AggregationResult is one parsed aggregation node: bucketed, metric, or a
// filter wrapper with nested aggregations.
type AggregationResult struct {
	DocCount *int64
	Value    *float64
	Buckets  []Bucket

	raw  json.RawMessage
	subs map[string]json.RawMessage
}

func parseAggregation(raw json.RawMessage) (*AggregationResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse aggregation: %w", err)
	}
	a := &AggregationResult{raw: raw, subs: make(map[string]json.RawMessage)}
	for k, v := range fields {
		var err error
		switch k {
		case "doc_count":
			err = json.Unmarshal(v, &a.DocCount)
		case "value":
			err = json.Unmarshal(v, &a.Value)
		case "buckets":
			err = json.Unmarshal(v, &a.Buckets)
		case "doc_count_error_upper_bound", "sum_other_doc_count", "meta", "value_as_string":
			// bookkeeping fields, kept reachable through Raw
		default:
			a.subs[k] = v
		}
		if err != nil {
			return nil, fmt.Errorf("parse aggregation field %q: %w", k, err)
		}
	}
	return a, nil
}

// Raw returns the unparsed aggregation node.
func (a *AggregationResult) Raw() json.RawMessage { return a.raw }

// Aggregation returns a nested aggregation living beside this node's own
// fields, as produced by filter-wrapped aggregations.
func (a *AggregationResult) Aggregation(name string) (*AggregationResult, bool) {
	raw, ok := a.subs[name]
	if !ok {
		return nil, false
	}
	agg, err := parseAggregation(raw)
	if err != nil {
		return nil, false
	}
	return agg, true
}

// Bucket is one bucket of a bucketed aggregation. Keys other than the
// standard bucket fields are nested sub-aggregations.
type Bucket struct {
	Key         any
	KeyAsString string
	DocCount    int64

	subs map[string]json.RawMessage
}

func (b *Bucket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("parse bucket: %w", err)
	}
	b.subs = make(map[string]json.RawMessage)
	for k, v := range fields {
		var err error
		switch k {
		case "key":
			err = json.Unmarshal(v, &b.Key)
		case "key_as_string":
			err = json.Unmarshal(v, &b.KeyAsString)
		case "doc_count":
			err = json.Unmarshal(v, &b.DocCount)
		default:
			b.subs[k] = v
		}
		if err != nil {
			return fmt.Errorf("parse bucket field %q: %w", k, err)
		}
	}
	return nil
}

// Aggregation returns the named sub-aggregation nested under this bucket.
func (b *Bucket) Aggregation(name string) (*AggregationResult, bool) {
	raw, ok := b.subs[name]
	if !ok {
		return nil, false
	}
	agg, err := parseAggregation(raw)
	if err != nil {
		return nil, false
	}
	return agg, true
}
