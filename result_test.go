package esdex

import (
	"encoding/json"
	"testing"
	"time"
)

func TestResultParsesModernResponse(t *testing.T) {
	raw := json.RawMessage(`{
		"took": 17,
		"timed_out": false,
		"hits": {
			"total": {"value": 120, "relation": "eq"},
			"max_score": 3.5,
			"hits": [
				{"_index": "products", "_id": "p1", "_score": 3.5,
				 "_source": {"title": "red shoes", "price": 49},
				 "highlight": {"title": ["<em>red</em> shoes"]}},
				{"_index": "products", "_id": "p2", "_score": 1.2,
				 "_source": {"title": "blue shoes", "price": 59}}
			]
		}
	}`)
	res, err := newResult(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if res.Took() != 17*time.Millisecond {
		t.Errorf("took = %v", res.Took())
	}
	if res.TotalHits() != 120 {
		t.Errorf("total = %d", res.TotalHits())
	}
	if res.MaxScore() != 3.5 {
		t.Errorf("max score = %v", res.MaxScore())
	}
	if got := res.IDs(); len(got) != 2 || got[0] != "p1" {
		t.Errorf("ids = %v", got)
	}

	var doc struct {
		Title string `json:"title"`
		Price int    `json:"price"`
	}
	if err := res.Hits()[0].DecodeSource(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "red shoes" || doc.Price != 49 {
		t.Errorf("doc = %+v", doc)
	}
	if hl := res.Hits()[0].Highlight["title"]; len(hl) != 1 || hl[0] != "<em>red</em> shoes" {
		t.Errorf("highlight = %v", hl)
	}
}

func TestResultParsesLegacyBareTotal(t *testing.T) {
	res, err := newResult(json.RawMessage(`{"hits":{"total":57,"hits":[]}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.TotalHits() != 57 {
		t.Errorf("total = %d, want 57", res.TotalHits())
	}
}

func TestEmptyResultAccessors(t *testing.T) {
	res := emptyResult()
	if res.TotalHits() != 0 || len(res.Hits()) != 0 || len(res.IDs()) != 0 {
		t.Error("empty result not empty")
	}
	if res.ScrollID() != "" || res.TimedOut() {
		t.Error("empty result has state")
	}
}

func TestAggregationResults(t *testing.T) {
	raw := json.RawMessage(`{
		"hits": {"total": {"value": 10}, "hits": []},
		"aggregations": {
			"avg_price": {"value": 42.5},
			"categories": {
				"doc_count_error_upper_bound": 0,
				"sum_other_doc_count": 3,
				"buckets": [
					{"key": "shoes", "doc_count": 7,
					 "avg_price": {"value": 55.0}},
					{"key": 1577836800000, "key_as_string": "2020-01-01", "doc_count": 3}
				]
			},
			"recent": {
				"doc_count": 4,
				"top_tags": {"buckets": [{"key": "new", "doc_count": 4}]}
			}
		}
	}`)
	res, err := newResult(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	avg, ok := res.Aggregation("avg_price")
	if !ok || avg.Value == nil || *avg.Value != 42.5 {
		t.Fatalf("avg_price = %+v, ok %v", avg, ok)
	}

	cats, ok := res.Aggregation("categories")
	if !ok || len(cats.Buckets) != 2 {
		t.Fatalf("categories = %+v, ok %v", cats, ok)
	}
	first := cats.Buckets[0]
	if first.Key != "shoes" || first.DocCount != 7 {
		t.Errorf("bucket = %+v", first)
	}
	nested, ok := first.Aggregation("avg_price")
	if !ok || nested.Value == nil || *nested.Value != 55.0 {
		t.Errorf("nested avg = %+v, ok %v", nested, ok)
	}
	if second := cats.Buckets[1]; second.KeyAsString != "2020-01-01" || second.DocCount != 3 {
		t.Errorf("bucket = %+v", second)
	}

	// Filter-wrapped node: doc_count plus a nested aggregation beside it.
	recent, ok := res.Aggregation("recent")
	if !ok || recent.DocCount == nil || *recent.DocCount != 4 {
		t.Fatalf("recent = %+v, ok %v", recent, ok)
	}
	tags, ok := recent.Aggregation("top_tags")
	if !ok || len(tags.Buckets) != 1 || tags.Buckets[0].Key != "new" {
		t.Errorf("top_tags = %+v, ok %v", tags, ok)
	}

	if _, ok := res.Aggregation("missing"); ok {
		t.Error("missing aggregation reported present")
	}
	if raw, ok := res.RawAggregation("avg_price"); !ok || len(raw) == 0 {
		t.Error("raw aggregation missing")
	}
}

func TestSuggestions(t *testing.T) {
	raw := json.RawMessage(`{
		"hits": {"total": {"value": 0}, "hits": []},
		"suggest": {
			"spelling": [
				{"text": "chocolte", "offset": 0, "length": 8,
				 "options": [
					{"text": "chocolate", "score": 0.9, "freq": 12},
					{"text": "chocolates", "score": 0.7, "freq": 4}
				 ]},
				{"text": "cak", "offset": 9, "length": 3,
				 "options": [{"text": "cake", "score": 0.8, "freq": 20}]}
			]
		}
	}`)
	res, err := newResult(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	opts := res.Suggestions("spelling")
	if len(opts) != 3 {
		t.Fatalf("options = %d, want 3", len(opts))
	}
	if opts[0].Text != "chocolate" || opts[0].Score != 0.9 || opts[0].Freq != 12 {
		t.Errorf("option = %+v", opts[0])
	}
	if opts[2].Text != "cake" {
		t.Errorf("option = %+v", opts[2])
	}
	if res.Suggestions("missing") != nil {
		t.Error("missing suggester returned options")
	}
}

func TestProfileSection(t *testing.T) {
	res, err := newResult(json.RawMessage(`{"hits":{"total":{"value":0},"hits":[]},"profile":{"shards":[]}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Profile()) == 0 {
		t.Error("profile section missing")
	}
}
