package esdex

import (
	"reflect"
	"sort"
	"time"

	"github.com/kailas-cloud/esdex/internal/ordered"
)

const defaultPerPage = 30

// Range bounds a field between the supplied operators. At least one bound
// must be set; unset bounds are omitted from the rendered clause.
type Range struct {
	GT  any
	GTE any
	LT  any
	LTE any
}

func (r Range) clause(field string) (map[string]any, error) {
	bounds := make(map[string]any, 4)
	if r.GT != nil {
		bounds["gt"] = r.GT
	}
	if r.GTE != nil {
		bounds["gte"] = r.GTE
	}
	if r.LT != nil {
		bounds["lt"] = r.LT
	}
	if r.LTE != nil {
		bounds["lte"] = r.LTE
	}
	if len(bounds) == 0 {
		return nil, usageErrorf("range on %q requires at least one bound", field)
	}
	return map[string]any{"range": map[string]any{field: bounds}}, nil
}

// QueryStringOptions configures a query-string clause set via Search or
// PostSearch. The default operator is AND unless overridden.
type QueryStringOptions struct {
	DefaultOperator string
	DefaultField    string
}

type queryString struct {
	query           string
	defaultOperator string
	defaultField    string
}

func newQueryString(query string, opts []QueryStringOptions) *queryString {
	qs := &queryString{query: query, defaultOperator: "AND"}
	if len(opts) > 0 {
		if opts[0].DefaultOperator != "" {
			qs.defaultOperator = opts[0].DefaultOperator
		}
		qs.defaultField = opts[0].DefaultField
	}
	return qs
}

func (q *queryString) clause() map[string]any {
	body := map[string]any{
		"query":            q.query,
		"default_operator": q.defaultOperator,
	}
	if q.defaultField != "" {
		body["default_field"] = q.defaultField
	}
	return map[string]any{"query_string": body}
}

type scrollOptions struct {
	keepAlive time.Duration
}

// Criteria is an immutable query-building value object. Every chain method
// returns a new Criteria; a previously obtained reference never changes, so
// criteria can be shared freely across goroutines during the build phase.
type Criteria struct {
	err error

	filters  []any
	posts    []any
	musts    []any
	mustNots []any
	shoulds  []any

	search     *queryString
	postSearch *queryString

	aggs []*aggNode

	sorts []any

	from *int
	size *int

	source    *ordered.Map
	highlight *ordered.Map
	suggests  *ordered.Map
	custom    *ordered.Map

	profile        *bool
	failsafe       *bool
	timeout        *time.Duration
	terminateAfter *int

	scroll *scrollOptions
}

// NewCriteria creates an empty criteria matching all documents.
func NewCriteria() *Criteria {
	return &Criteria{}
}

func copyClauses(in []any) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	copy(out, in)
	return out
}

// clone copies the criteria so appends and key assignments on the copy can
// never reach slices or maps shared with the receiver.
func (c *Criteria) clone() *Criteria {
	d := *c
	d.filters = copyClauses(c.filters)
	d.posts = copyClauses(c.posts)
	d.musts = copyClauses(c.musts)
	d.mustNots = copyClauses(c.mustNots)
	d.shoulds = copyClauses(c.shoulds)
	d.sorts = copyClauses(c.sorts)
	d.aggs = copyAggs(c.aggs)
	if c.source != nil {
		d.source = c.source.Clone()
	}
	if c.highlight != nil {
		d.highlight = c.highlight.Clone()
	}
	if c.suggests != nil {
		d.suggests = c.suggests.Clone()
	}
	if c.custom != nil {
		d.custom = c.custom.Clone()
	}
	return &d
}

// fail records a build-time usage error. The first error wins and is
// surfaced by Render and every execution entry point.
func (c *Criteria) fail(err error) *Criteria {
	if c.err == nil {
		c.err = err
	}
	return c
}

// Err returns the build-time error recorded on the criteria, if any.
func (c *Criteria) Err() error {
	return c.err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// whereClause translates one field/value pair by value shape: Range turns
// into a range clause, a slice into a terms clause, nil into a not-exists
// clause, any other scalar into a term clause.
func whereClause(field string, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return map[string]any{
			"bool": map[string]any{
				"must_not": map[string]any{"exists": map[string]any{"field": field}},
			},
		}, nil
	case Range:
		return v.clause(field)
	case *Range:
		if v == nil {
			return nil, usageErrorf("nil *Range for field %q", field)
		}
		return v.clause(field)
	case time.Time:
		return map[string]any{"term": map[string]any{field: v}}, nil
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return map[string]any{"terms": map[string]any{field: value}}, nil
	case reflect.Map, reflect.Struct, reflect.Ptr, reflect.Func, reflect.Chan:
		return nil, usageErrorf("unsupported value shape %T for field %q", value, field)
	default:
		return map[string]any{"term": map[string]any{field: value}}, nil
	}
}

// whereNotClause mirrors whereClause for negated contexts: the clause lands
// in must_not, so nil means "field exists".
func whereNotClause(field string, value any) (any, error) {
	if value == nil {
		return map[string]any{"exists": map[string]any{"field": field}}, nil
	}
	return whereClause(field, value)
}

// Where appends one filter clause per field, translated by value shape.
// Fields are processed in lexical order so identical input always renders
// identically. An empty map is a no-op.
func (c *Criteria) Where(fields map[string]any) *Criteria {
	d := c.clone()
	for _, field := range sortedKeys(fields) {
		clause, err := whereClause(field, fields[field])
		if err != nil {
			return d.fail(err)
		}
		d.filters = append(d.filters, clause)
	}
	return d
}

// WhereNot appends one must_not clause per field, translated by value shape.
func (c *Criteria) WhereNot(fields map[string]any) *Criteria {
	d := c.clone()
	for _, field := range sortedKeys(fields) {
		clause, err := whereNotClause(field, fields[field])
		if err != nil {
			return d.fail(err)
		}
		d.mustNots = append(d.mustNots, clause)
	}
	return d
}

// Range appends a range filter clause on field.
func (c *Criteria) Range(field string, bounds Range) *Criteria {
	d := c.clone()
	clause, err := bounds.clause(field)
	if err != nil {
		return d.fail(err)
	}
	d.filters = append(d.filters, clause)
	return d
}

// Filter appends an already-structured clause verbatim to the filter bucket.
// Escape hatch for expressiveness Where does not cover.
func (c *Criteria) Filter(clause any) *Criteria {
	d := c.clone()
	d.filters = append(d.filters, clause)
	return d
}

// Must appends a raw clause to the must bucket.
func (c *Criteria) Must(clause any) *Criteria {
	d := c.clone()
	d.musts = append(d.musts, clause)
	return d
}

// MustNot appends a raw clause to the must_not bucket.
func (c *Criteria) MustNot(clause any) *Criteria {
	d := c.clone()
	d.mustNots = append(d.mustNots, clause)
	return d
}

// Should appends a raw clause to the should bucket.
func (c *Criteria) Should(clause any) *Criteria {
	d := c.clone()
	d.shoulds = append(d.shoulds, clause)
	return d
}

// Exists appends a field-existence filter clause.
func (c *Criteria) Exists(field string) *Criteria {
	d := c.clone()
	d.filters = append(d.filters, map[string]any{"exists": map[string]any{"field": field}})
	return d
}

// ExistsNot appends a field-existence clause to must_not.
func (c *Criteria) ExistsNot(field string) *Criteria {
	d := c.clone()
	d.mustNots = append(d.mustNots, map[string]any{"exists": map[string]any{"field": field}})
	return d
}

// Search sets the query-string clause, rendered as one more must clause.
func (c *Criteria) Search(query string, opts ...QueryStringOptions) *Criteria {
	d := c.clone()
	if query == "" {
		return d
	}
	d.search = newQueryString(query, opts)
	return d
}

// MatchAll returns an equivalent criteria with no behavioral clause added,
// a valid unfiltered starting point.
func (c *Criteria) MatchAll() *Criteria {
	return c.clone()
}

// PostWhere appends filter clauses evaluated after aggregations are
// computed: they narrow the hit list without narrowing aggregation input.
func (c *Criteria) PostWhere(fields map[string]any) *Criteria {
	d := c.clone()
	for _, field := range sortedKeys(fields) {
		clause, err := whereClause(field, fields[field])
		if err != nil {
			return d.fail(err)
		}
		d.posts = append(d.posts, clause)
	}
	return d
}

// PostWhereNot appends negated post-filter clauses.
func (c *Criteria) PostWhereNot(fields map[string]any) *Criteria {
	d := c.clone()
	for _, field := range sortedKeys(fields) {
		clause, err := whereNotClause(field, fields[field])
		if err != nil {
			return d.fail(err)
		}
		d.posts = append(d.posts, map[string]any{
			"bool": map[string]any{"must_not": clause},
		})
	}
	return d
}

// PostFilter appends a raw clause to the post-filter bucket.
func (c *Criteria) PostFilter(clause any) *Criteria {
	d := c.clone()
	d.posts = append(d.posts, clause)
	return d
}

// PostRange appends a range clause to the post-filter bucket.
func (c *Criteria) PostRange(field string, bounds Range) *Criteria {
	d := c.clone()
	clause, err := bounds.clause(field)
	if err != nil {
		return d.fail(err)
	}
	d.posts = append(d.posts, clause)
	return d
}

// PostExists appends a field-existence clause to the post-filter bucket.
func (c *Criteria) PostExists(field string) *Criteria {
	d := c.clone()
	d.posts = append(d.posts, map[string]any{"exists": map[string]any{"field": field}})
	return d
}

// PostExistsNot appends a negated field-existence post-filter clause.
func (c *Criteria) PostExistsNot(field string) *Criteria {
	d := c.clone()
	d.posts = append(d.posts, map[string]any{
		"bool": map[string]any{
			"must_not": map[string]any{"exists": map[string]any{"field": field}},
		},
	})
	return d
}

// PostSearch sets the post-filter query-string clause.
func (c *Criteria) PostSearch(query string, opts ...QueryStringOptions) *Criteria {
	d := c.clone()
	if query == "" {
		return d
	}
	d.postSearch = newQueryString(query, opts)
	return d
}

// Sort replaces the sort specification. Each entry is attached verbatim:
// a field name string or a structured sort document. Last assignment wins.
func (c *Criteria) Sort(sorts ...any) *Criteria {
	d := c.clone()
	d.sorts = append([]any(nil), sorts...)
	return d
}

// Source adds fields to the _source selection, keeping first-seen order.
func (c *Criteria) Source(fields ...string) *Criteria {
	d := c.clone()
	if d.source == nil {
		d.source = ordered.NewMap()
	}
	for _, f := range fields {
		d.source.Set(f, struct{}{})
	}
	return d
}

// Highlight adds a highlighted field with optional per-field options.
// Later options for the same field overwrite earlier ones.
func (c *Criteria) Highlight(field string, opts map[string]any) *Criteria {
	d := c.clone()
	if d.highlight == nil {
		d.highlight = ordered.NewMap()
	}
	if opts == nil {
		opts = map[string]any{}
	}
	d.highlight.Set(field, opts)
	return d
}

// Suggest adds a named suggester definition.
func (c *Criteria) Suggest(name string, definition map[string]any) *Criteria {
	d := c.clone()
	if d.suggests == nil {
		d.suggests = ordered.NewMap()
	}
	d.suggests.Set(name, definition)
	return d
}

// Custom attaches an arbitrary top-level key to the rendered request.
func (c *Criteria) Custom(key string, value any) *Criteria {
	d := c.clone()
	if d.custom == nil {
		d.custom = ordered.NewMap()
	}
	d.custom.Set(key, value)
	return d
}

// Paginate sets from/size from a 1-based page number and page size.
func (c *Criteria) Paginate(page, perPage int) *Criteria {
	d := c.clone()
	if page < 1 || perPage < 1 {
		return d.fail(usageErrorf("paginate requires page >= 1 and per_page >= 1, got page=%d per_page=%d", page, perPage))
	}
	from := (page - 1) * perPage
	d.from = &from
	d.size = &perPage
	return d
}

// Page moves to the given 1-based page, keeping the current page size.
func (c *Criteria) Page(page int) *Criteria {
	per := defaultPerPage
	if c.size != nil {
		per = *c.size
	}
	return c.Paginate(page, per)
}

// Per sets the page size, keeping the current page position.
func (c *Criteria) Per(perPage int) *Criteria {
	page := 1
	if c.from != nil && c.size != nil && *c.size > 0 {
		page = *c.from / *c.size + 1
	}
	return c.Paginate(page, perPage)
}

// Profile toggles the engine query profiler for this request.
func (c *Criteria) Profile(enabled bool) *Criteria {
	d := c.clone()
	d.profile = &enabled
	return d
}

// Failsafe toggles failsafe mode: transport and response errors raised
// during execution are converted into an empty zero-hit result instead of
// propagating. Build-time usage errors still propagate.
func (c *Criteria) Failsafe(enabled bool) *Criteria {
	d := c.clone()
	d.failsafe = &enabled
	return d
}

func (c *Criteria) failsafeEnabled() bool {
	return c.failsafe != nil && *c.failsafe
}

// Timeout bounds query execution server-side.
func (c *Criteria) Timeout(d time.Duration) *Criteria {
	n := c.clone()
	n.timeout = &d
	return n
}

// TerminateAfter caps the number of documents collected per shard.
func (c *Criteria) TerminateAfter(n int) *Criteria {
	d := c.clone()
	d.terminateAfter = &n
	return d
}

// Scroll marks the criteria for scroll-mode execution with the given cursor
// keepalive. Index.Scroll uses it; zero keepAlive falls back to one minute.
func (c *Criteria) Scroll(keepAlive time.Duration) *Criteria {
	d := c.clone()
	d.scroll = &scrollOptions{keepAlive: keepAlive}
	return d
}

// Merge combines two criteria: list buckets concatenate in receiver-then-
// other order, scalar and mapping fields take other's value when set there,
// mirroring how a single chain of calls overwrites earlier assignments.
func (c *Criteria) Merge(other *Criteria) *Criteria {
	d := c.clone()
	if other == nil {
		return d
	}
	d.filters = append(d.filters, other.filters...)
	d.posts = append(d.posts, other.posts...)
	d.musts = append(d.musts, other.musts...)
	d.mustNots = append(d.mustNots, other.mustNots...)
	d.shoulds = append(d.shoulds, other.shoulds...)

	if other.search != nil {
		d.search = other.search
	}
	if other.postSearch != nil {
		d.postSearch = other.postSearch
	}
	d.aggs = mergeAggs(d.aggs, other.aggs)
	if other.sorts != nil {
		d.sorts = copyClauses(other.sorts)
	}
	if other.from != nil {
		d.from = other.from
	}
	if other.size != nil {
		d.size = other.size
	}
	d.source = mergeOrdered(d.source, other.source)
	d.highlight = mergeOrdered(d.highlight, other.highlight)
	d.suggests = mergeOrdered(d.suggests, other.suggests)
	d.custom = mergeOrdered(d.custom, other.custom)
	if other.profile != nil {
		d.profile = other.profile
	}
	if other.failsafe != nil {
		d.failsafe = other.failsafe
	}
	if other.timeout != nil {
		d.timeout = other.timeout
	}
	if other.terminateAfter != nil {
		d.terminateAfter = other.terminateAfter
	}
	if other.scroll != nil {
		d.scroll = other.scroll
	}
	if d.err == nil {
		d.err = other.err
	}
	return d
}

func mergeOrdered(dst, src *ordered.Map) *ordered.Map {
	if src.Len() == 0 {
		return dst
	}
	if dst == nil {
		dst = ordered.NewMap()
	}
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
	return dst
}

// Scope names a criteria bucket or field resettable via Unscope.
type Scope string

// Scopes accepted by Unscope.
const (
	ScopeFilters      Scope = "filters"
	ScopeMusts        Scope = "musts"
	ScopeMustNots     Scope = "must_nots"
	ScopeShoulds      Scope = "shoulds"
	ScopePosts        Scope = "posts"
	ScopeSearch       Scope = "search"
	ScopePostSearch   Scope = "post_search"
	ScopeAggregations Scope = "aggregations"
	ScopeSort         Scope = "sort"
	ScopePagination   Scope = "pagination"
	ScopeSource       Scope = "source"
	ScopeHighlight    Scope = "highlight"
	ScopeSuggest      Scope = "suggest"
	ScopeCustom       Scope = "custom"
)

// Unscope resets the named buckets or fields to their empty state, leaving
// all others untouched.
func (c *Criteria) Unscope(scopes ...Scope) *Criteria {
	d := c.clone()
	for _, s := range scopes {
		switch s {
		case ScopeFilters:
			d.filters = nil
		case ScopeMusts:
			d.musts = nil
		case ScopeMustNots:
			d.mustNots = nil
		case ScopeShoulds:
			d.shoulds = nil
		case ScopePosts:
			d.posts = nil
		case ScopeSearch:
			d.search = nil
		case ScopePostSearch:
			d.postSearch = nil
		case ScopeAggregations:
			d.aggs = nil
		case ScopeSort:
			d.sorts = nil
		case ScopePagination:
			d.from = nil
			d.size = nil
		case ScopeSource:
			d.source = nil
		case ScopeHighlight:
			d.highlight = nil
		case ScopeSuggest:
			d.suggests = nil
		case ScopeCustom:
			d.custom = nil
		default:
			return d.fail(usageErrorf("unknown scope %q", s))
		}
	}
	return d
}
