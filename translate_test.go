package esdex

import (
	"testing"
	"time"
)

func TestRenderMatchAll(t *testing.T) {
	got := render(t, NewCriteria())
	want := `{"query":{"match_all":{}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	c := NewCriteria().
		Where(map[string]any{"b": 2, "a": 1, "c": 3}).
		Custom("min_score", 0.5).
		Custom("track_total_hits", true).
		Aggregate("tags", map[string]any{"terms": map[string]any{"field": "tag", "size": 10}})

	first := render(t, c)
	for i := 0; i < 20; i++ {
		if again := render(t, c); again != first {
			t.Fatalf("render diverged on pass %d:\n%s\n%s", i, first, again)
		}
	}
}

func TestRenderPostFilter(t *testing.T) {
	c := NewCriteria().
		Where(map[string]any{"state": "approved"}).
		PostWhere(map[string]any{"color": "red"})

	got := render(t, c)
	want := `{"query":{"bool":{"filter":[{"term":{"state":"approved"}}]}},` +
		`"post_filter":{"bool":{"filter":[{"term":{"color":"red"}}]}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderPostSearch(t *testing.T) {
	got := render(t, NewCriteria().PostSearch("red"))
	want := `{"query":{"match_all":{}},` +
		`"post_filter":{"bool":{"must":[{"query_string":{"default_operator":"AND","query":"red"}}]}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderSiblingAggregations(t *testing.T) {
	c := NewCriteria().
		Aggregate("a", map[string]any{"terms": map[string]any{"field": "a"}}).
		Aggregate("b", map[string]any{"terms": map[string]any{"field": "b"}})

	got := render(t, c)
	want := `{"query":{"match_all":{}},` +
		`"aggregations":{"a":{"terms":{"field":"a"}},"b":{"terms":{"field":"b"}}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderNestedAggregationWithScope(t *testing.T) {
	c := NewCriteria().Aggregate("cats",
		map[string]any{"terms": map[string]any{"field": "cat"}},
		func(sub *Criteria) *Criteria {
			return sub.
				Where(map[string]any{"state": "approved"}).
				Aggregate("price", map[string]any{"avg": map[string]any{"field": "price"}})
		})

	got := render(t, c)
	want := `{"query":{"match_all":{}},` +
		`"aggregations":{"cats":{"terms":{"field":"cat"},` +
		`"filter":{"bool":{"filter":[{"term":{"state":"approved"}}]}},` +
		`"aggregations":{"price":{"avg":{"field":"price"}}}}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestAggregationOrderCompat(t *testing.T) {
	c := NewCriteria().Aggregate("tags", map[string]any{
		"terms": map[string]any{
			"field": "tag",
			"order": map[string]any{"price.avg": "desc", "_count": "asc"},
		},
	})

	modern := render(t, c)
	wantModern := `{"query":{"match_all":{}},` +
		`"aggregations":{"tags":{"terms":{"field":"tag",` +
		`"order":[{"_count":"asc"},{"price.avg":"desc"}]}}}}`
	if modern != wantModern {
		t.Errorf("modern render = %s, want %s", modern, wantModern)
	}

	legacyRaw, err := c.RenderCompat(Compat{LegacyAggregationOrder: true})
	if err != nil {
		t.Fatalf("render legacy: %v", err)
	}
	wantLegacy := `{"query":{"match_all":{}},` +
		`"aggregations":{"tags":{"terms":{"field":"tag",` +
		`"order":{"_count":"asc","price.avg":"desc"}}}}}`
	if string(legacyRaw) != wantLegacy {
		t.Errorf("legacy render = %s, want %s", legacyRaw, wantLegacy)
	}

	// Rendering with either flag must not mutate the stored definition.
	if again := render(t, c); again != wantModern {
		t.Errorf("second modern render = %s, want %s", again, wantModern)
	}
}

func TestRenderCustomKeysKeepOrder(t *testing.T) {
	c := NewCriteria().
		Custom("track_total_hits", true).
		Custom("min_score", 1.5)

	got := render(t, c)
	want := `{"query":{"match_all":{}},"track_total_hits":true,"min_score":1.5}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderExecutionControls(t *testing.T) {
	c := NewCriteria().
		Profile(true).
		Timeout(2500 * time.Millisecond).
		TerminateAfter(1000)

	got := render(t, c)
	want := `{"query":{"match_all":{}},"profile":true,"timeout":"2500ms","terminate_after":1000}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderSourceAndHighlight(t *testing.T) {
	c := NewCriteria().
		Source("id", "title").
		Source("title", "price").
		Highlight("title", map[string]any{"number_of_fragments": 0})

	got := render(t, c)
	want := `{"query":{"match_all":{}},` +
		`"_source":["id","title","price"],` +
		`"highlight":{"fields":{"title":{"number_of_fragments":0}}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestRenderSuggest(t *testing.T) {
	c := NewCriteria().Suggest("spelling", map[string]any{
		"text": "chocolte",
		"term": map[string]any{"field": "title"},
	})

	got := render(t, c)
	want := `{"query":{"match_all":{}},` +
		`"suggest":{"spelling":{"term":{"field":"title"},"text":"chocolte"}}}`
	if got != want {
		t.Errorf("render = %s, want %s", got, want)
	}
}

func TestScrollBodyDropsOffsetPagination(t *testing.T) {
	c := NewCriteria().
		Where(map[string]any{"state": "approved"}).
		Paginate(3, 25)

	raw, err := c.scrollBody(100, Compat{})
	if err != nil {
		t.Fatalf("scroll body: %v", err)
	}
	want := `{"query":{"bool":{"filter":[{"term":{"state":"approved"}}]}},"size":100}`
	if string(raw) != want {
		t.Errorf("scroll body = %s, want %s", raw, want)
	}
}

func TestCountBodyIsQueryOnly(t *testing.T) {
	c := NewCriteria().
		Where(map[string]any{"state": "approved"}).
		Sort("price").
		Paginate(2, 10).
		Aggregate("tags", map[string]any{"terms": map[string]any{"field": "tag"}})

	raw, err := c.countBody()
	if err != nil {
		t.Fatalf("count body: %v", err)
	}
	want := `{"query":{"bool":{"filter":[{"term":{"state":"approved"}}]}}}`
	if string(raw) != want {
		t.Errorf("count body = %s, want %s", raw, want)
	}
}
