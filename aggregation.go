package esdex

// aggNode is one named aggregation. def is the aggregation definition
// attached verbatim (e.g. {"terms": {"field": "category"}}); sub is a
// criteria scoping the node: its filter clauses restrict the aggregation
// input and its own aggregations become nested child aggregations.
type aggNode struct {
	name string
	def  map[string]any
	sub  *Criteria
}

func (n *aggNode) clone() *aggNode {
	c := &aggNode{name: n.name, def: copyDef(n.def)}
	if n.sub != nil {
		c.sub = n.sub.clone()
	}
	return c
}

func copyDef(def map[string]any) map[string]any {
	if def == nil {
		return nil
	}
	out := make(map[string]any, len(def))
	for k, v := range def {
		out[k] = v
	}
	return out
}

func copyAggs(nodes []*aggNode) []*aggNode {
	if nodes == nil {
		return nil
	}
	out := make([]*aggNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.clone()
	}
	return out
}

func findAgg(nodes []*aggNode, name string) *aggNode {
	for _, n := range nodes {
		if n.name == name {
			return n
		}
	}
	return nil
}

// mergeAggs deep-merges src nodes into dst: same-name nodes at the same
// level combine, with src definitions and scopes winning on conflict.
// New names keep their insertion order after existing ones.
func mergeAggs(dst, src []*aggNode) []*aggNode {
	for _, s := range src {
		existing := findAgg(dst, s.name)
		if existing == nil {
			dst = append(dst, s.clone())
			continue
		}
		if s.def != nil {
			merged := copyDef(existing.def)
			if merged == nil {
				merged = make(map[string]any, len(s.def))
			}
			for k, v := range s.def {
				merged[k] = v
			}
			existing.def = merged
		}
		if s.sub != nil {
			if existing.sub == nil {
				existing.sub = s.sub.clone()
			} else {
				existing.sub = existing.sub.Merge(s.sub)
			}
		}
	}
	return dst
}

// Aggregate inserts or deep-merges a named aggregation node. definition is
// attached verbatim and may be nil when the node only scopes children.
// When build is supplied it receives a fresh empty criteria; the clauses it
// adds restrict the node's input and its aggregations nest under the node,
// recursively.
func (c *Criteria) Aggregate(name string, definition map[string]any, build ...func(*Criteria) *Criteria) *Criteria {
	d := c.clone()
	if name == "" {
		return d.fail(usageErrorf("aggregation name required"))
	}

	var sub *Criteria
	if len(build) > 0 && build[0] != nil {
		sub = build[0](NewCriteria())
		if sub == nil {
			sub = NewCriteria()
		}
		if sub.err != nil {
			return d.fail(sub.err)
		}
	}

	node := findAgg(d.aggs, name)
	if node == nil {
		node = &aggNode{name: name}
		d.aggs = append(d.aggs, node)
	}
	if definition != nil {
		merged := copyDef(node.def)
		if merged == nil {
			merged = make(map[string]any, len(definition))
		}
		for k, v := range definition {
			merged[k] = v
		}
		node.def = merged
	}
	if sub != nil {
		if node.sub == nil {
			node.sub = sub
		} else {
			node.sub = node.sub.Merge(sub)
		}
	}
	return d
}
