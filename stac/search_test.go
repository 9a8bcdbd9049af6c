package stac

import (
	"encoding/json"
	"testing"
)

func TestSearchRequestQuery(t *testing.T) {
	limit := 10
	req := SearchRequest{
		BBox:        []float64{100.0, 0.0, 105.0, 1.0},
		Datetime:    "2020-01-01T00:00:00Z/..",
		Collections: []string{"a", "b"},
		IDs:         []string{"i1", "i2"},
		Limit:       &limit,
	}

	q := req.Query()
	if got := q.Get("bbox"); got != "100,0,105,1" {
		t.Errorf("bbox = %q", got)
	}
	if got := q.Get("datetime"); got != "2020-01-01T00:00:00Z/.." {
		t.Errorf("datetime = %q", got)
	}
	if got := q.Get("collections"); got != "a,b" {
		t.Errorf("collections = %q", got)
	}
	if got := q.Get("ids"); got != "i1,i2" {
		t.Errorf("ids = %q", got)
	}
	if got := q.Get("limit"); got != "10" {
		t.Errorf("limit = %q", got)
	}
}

func TestSearchRequestRawOverrides(t *testing.T) {
	req := SearchRequest{
		BBox:     []float64{0, 0, 1, 1},
		RawBBox:  "[100.0, 0.0, 105.0, 1.0]",
		RawLimit: "-1",
	}

	q := req.Query()
	if got := q.Get("bbox"); got != "[100.0, 0.0, 105.0, 1.0]" {
		t.Errorf("bbox = %q; raw value should win", got)
	}
	if got := q.Get("limit"); got != "-1" {
		t.Errorf("limit = %q", got)
	}
}

func TestSearchRequestZeroValueIsEmpty(t *testing.T) {
	if q := (SearchRequest{}).Query(); len(q) != 0 {
		t.Errorf("zero value query = %v; want empty", q)
	}

	body, err := SearchRequest{}.Body()
	if err != nil {
		t.Fatalf("Body failed: %v", err)
	}
	if string(body) != "{}" {
		t.Errorf("zero value body = %s; want {}", body)
	}
}

func TestSearchRequestBody(t *testing.T) {
	req := SearchRequest{
		Intersects:  json.RawMessage(`{"type":"Point","coordinates":[0,0]}`),
		Collections: []string{"a"},
	}.WithLimit(5)

	data, err := req.Body()
	if err != nil {
		t.Fatalf("Body failed: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if geom, ok := body["intersects"].(map[string]any); !ok || geom["type"] != "Point" {
		t.Errorf("intersects = %v", body["intersects"])
	}
	if body["limit"] != float64(5) {
		t.Errorf("limit = %v", body["limit"])
	}
}

func TestIntersectsFixtures(t *testing.T) {
	fixtures := IntersectsFixtures()
	if len(fixtures) != 8 {
		t.Fatalf("len(fixtures) = %d; want 8", len(fixtures))
	}

	seen := map[string]bool{}
	for _, f := range fixtures {
		if seen[f.Name] {
			t.Errorf("duplicate fixture name %q", f.Name)
		}
		seen[f.Name] = true

		var geom map[string]any
		if err := json.Unmarshal(f.JSON, &geom); err != nil {
			t.Errorf("fixture %q is not valid JSON: %v", f.Name, err)
		}
		if geom["type"] == "" {
			t.Errorf("fixture %q has no geometry type", f.Name)
		}
	}
	if !seen["geometry-collection"] {
		t.Error("geometry-collection fixture missing")
	}
}

func TestBBoxOverlaps(t *testing.T) {
	tests := []struct {
		name  string
		query []float64
		item  []float64
		want  bool
	}{
		{"contained", []float64{0, 0, 10, 10}, []float64{2, 2, 3, 3}, true},
		{"partial overlap", []float64{0, 0, 10, 10}, []float64{9, 9, 12, 12}, true},
		{"disjoint", []float64{0, 0, 1, 1}, []float64{5, 5, 6, 6}, false},
		{"edge touch", []float64{0, 0, 1, 1}, []float64{1, 1, 2, 2}, true},
		{"3d query", []float64{0, 0, 0, 10, 10, 100}, []float64{2, 2, 3, 3}, true},
		{"3d item", []float64{0, 0, 10, 10}, []float64{2, 2, 0, 3, 3, 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BBoxOverlaps(tt.query, tt.item); got != tt.want {
				t.Errorf("BBoxOverlaps(%v, %v) = %v; want %v", tt.query, tt.item, got, tt.want)
			}
		})
	}
}
