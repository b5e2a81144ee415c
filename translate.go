package esdex

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/esdex/internal/ordered"
)

// Compat selects wire-format variants for older engine generations.
type Compat struct {
	// LegacyAggregationOrder keeps aggregation "order" options as a plain
	// object. Modern engines take a list of single-key objects when the
	// order references sibling sub-aggregation values.
	LegacyAggregationOrder bool
}

// Render renders the criteria into the engine request body. Identical
// criteria state always renders byte-identical output; clause and key order
// follow build order.
func (c *Criteria) Render() (json.RawMessage, error) {
	return c.RenderCompat(Compat{})
}

// RenderCompat renders the criteria with the given compatibility flags.
func (c *Criteria) RenderCompat(compat Compat) (json.RawMessage, error) {
	body, err := c.body(compat)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("render criteria: %w", err)
	}
	return raw, nil
}

func (c *Criteria) body(compat Compat) (*ordered.Map, error) {
	if c.err != nil {
		return nil, c.err
	}

	m := ordered.NewMap()
	m.Set("query", c.renderQuery())
	if pf, ok := boolCompound(searchMusts(nil, c.postSearch), c.posts, nil, nil); ok {
		m.Set("post_filter", pf)
	}
	if len(c.aggs) > 0 {
		m.Set("aggregations", renderAggs(c.aggs, compat))
	}
	if c.sorts != nil {
		m.Set("sort", c.sorts)
	}
	if c.from != nil {
		m.Set("from", *c.from)
	}
	if c.size != nil {
		m.Set("size", *c.size)
	}
	if c.source.Len() > 0 {
		m.Set("_source", c.source.Keys())
	}
	if c.highlight.Len() > 0 {
		m.Set("highlight", map[string]any{"fields": c.highlight})
	}
	if c.suggests.Len() > 0 {
		m.Set("suggest", c.suggests)
	}
	if c.custom != nil {
		for _, k := range c.custom.Keys() {
			v, _ := c.custom.Get(k)
			m.Set(k, v)
		}
	}
	if c.profile != nil && *c.profile {
		m.Set("profile", true)
	}
	if c.timeout != nil {
		m.Set("timeout", fmt.Sprintf("%dms", c.timeout.Milliseconds()))
	}
	if c.terminateAfter != nil {
		m.Set("terminate_after", *c.terminateAfter)
	}
	return m, nil
}

// renderQuery combines the clause buckets into one boolean compound query,
// falling back to match_all when no clause exists anywhere.
func (c *Criteria) renderQuery() any {
	if b, ok := c.boolClause(); ok {
		return b
	}
	return map[string]any{"match_all": map[string]any{}}
}

// boolClause renders the criteria's main clause buckets without the
// match_all fallback, for contexts (aggregation scoping) where an absent
// clause means "unfiltered".
func (c *Criteria) boolClause() (any, bool) {
	return boolCompound(searchMusts(c.musts, c.search), c.filters, c.shoulds, c.mustNots)
}

// searchMusts appends the rendered query-string clause, if present, as one
// more must clause.
func searchMusts(musts []any, search *queryString) []any {
	if search == nil {
		return musts
	}
	out := make([]any, 0, len(musts)+1)
	out = append(out, musts...)
	return append(out, search.clause())
}

// boolCompound assembles a bool query, omitting empty buckets entirely.
// ok is false when every bucket is empty.
func boolCompound(musts, filters, shoulds, mustNots []any) (any, bool) {
	b := make(map[string]any, 4)
	if len(musts) > 0 {
		b["must"] = musts
	}
	if len(filters) > 0 {
		b["filter"] = filters
	}
	if len(shoulds) > 0 {
		b["should"] = shoulds
	}
	if len(mustNots) > 0 {
		b["must_not"] = mustNots
	}
	if len(b) == 0 {
		return nil, false
	}
	return map[string]any{"bool": b}, true
}

// renderAggs renders the aggregation tree recursively, preserving node
// insertion order. A node's scope criteria contributes a filter wrapper and
// nested child aggregations.
func renderAggs(nodes []*aggNode, compat Compat) *ordered.Map {
	out := ordered.NewMap()
	for _, n := range nodes {
		body := ordered.NewMap()
		for _, k := range sortedKeys(n.def) {
			body.Set(k, compatAggDef(n.def[k], compat))
		}
		if n.sub != nil {
			if q, ok := n.sub.boolClause(); ok {
				body.Set("filter", q)
			}
			if len(n.sub.aggs) > 0 {
				body.Set("aggregations", renderAggs(n.sub.aggs, compat))
			}
		}
		out.Set(n.name, body)
	}
	return out
}

// compatAggDef rewrites an aggregation definition's "order" option per the
// compatibility flag. The stored definition is never mutated.
func compatAggDef(def any, compat Compat) any {
	opts, ok := def.(map[string]any)
	if !ok {
		return def
	}
	order, ok := opts["order"].(map[string]any)
	if !ok || compat.LegacyAggregationOrder {
		return def
	}
	list := make([]map[string]any, 0, len(order))
	for _, k := range sortedKeys(order) {
		list = append(list, map[string]any{k: order[k]})
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	out["order"] = list
	return out
}

// countBody renders the query section only, for _count requests.
func (c *Criteria) countBody() (json.RawMessage, error) {
	if c.err != nil {
		return nil, c.err
	}
	raw, err := json.Marshal(map[string]any{"query": c.renderQuery()})
	if err != nil {
		return nil, fmt.Errorf("render count body: %w", err)
	}
	return raw, nil
}

// scrollBody renders the request body for opening a scroll cursor: the full
// criteria with the batch size forced and offset-based pagination dropped.
func (c *Criteria) scrollBody(batchSize int, compat Compat) (json.RawMessage, error) {
	body, err := c.body(compat)
	if err != nil {
		return nil, err
	}
	body.Delete("from")
	body.Set("size", batchSize)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("render scroll body: %w", err)
	}
	return raw, nil
}
