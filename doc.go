// Package esdex is a query-criteria composition and execution engine for
// Elasticsearch-compatible search backends.
//
// The central type is Criteria, an immutable chainable builder: every call
// returns a new value, so criteria can be composed, merged, and shared
// across goroutines without locking. An Index handle renders criteria on
// demand and drives execution: plain searches, aggregation-only requests,
// scroll cursors over full result sets, and size/byte-bounded bulk batches
// with per-item failure reporting.
//
//	client, err := esdex.New(esdex.WithURL("http://localhost:9200"))
//	if err != nil { ... }
//
//	products := client.Index("products")
//	res, err := products.Search(ctx, esdex.NewCriteria().
//		Where(map[string]any{"state": "approved"}).
//		Range("price", esdex.Range{LT: 100}).
//		Aggregate("categories", map[string]any{
//			"terms": map[string]any{"field": "category"},
//		}).
//		Paginate(1, 20))
package esdex
