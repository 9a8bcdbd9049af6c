package check

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/cache"
	"github.com/jisantuc/stac-api-validator/config"
	"github.com/jisantuc/stac-api-validator/discovery"
	"github.com/jisantuc/stac-api-validator/probe"
	"github.com/jisantuc/stac-api-validator/schema"
)

// fakeAPI is a small in-memory STAC deployment the batteries probe in
// tests. Its behavior is intentionally conformant; individual tests break
// specific endpoints to provoke findings.
type fakeAPI struct {
	t          *testing.T
	srv        *httptest.Server
	conformsTo []string
	scenarios  *config.Scenarios

	items []map[string]any

	// Mutators for misbehavior.
	searchStatus      int    // nonzero forces this status from /search
	searchBody        string // nonempty overrides the /search body
	dropSearchLink    bool
	dropChildLink     bool
	acceptAnyLimit    bool
	acceptAnyBBox     bool
	acceptAnyDatetime bool
	ignoreIDs         bool
	ignoreSort        bool
	ignoreFields      bool
	ignoreFilter      bool
	paginationLoop    bool
	overlapPages      bool
	failAcceptProbe   bool
	childrenBadType   bool
	denyCreate        bool
	denyRead          bool
	denyDelete        bool

	// duplicateConformance makes /conformance echo its first URI twice.
	duplicateConformance bool

	// omitDescription leaves the landing page parseable for capability
	// discovery while making it an invalid Catalog document.
	omitDescription bool

	// collectionMutator edits the served collection document in place.
	collectionMutator func(map[string]any)
}

func newFakeAPI(t *testing.T, conformsTo ...string) *fakeAPI {
	t.Helper()

	f := &fakeAPI{
		t:          t,
		conformsTo: conformsTo,
		scenarios:  config.MustLoad("1.0.0"),
	}
	for i := 1; i <= 5; i++ {
		f.items = append(f.items, map[string]any{
			"type":         "Feature",
			"stac_version": "1.0.0",
			"id":           fmt.Sprintf("item-%d", i),
			"collection":   "sentinel",
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []float64{100.0 + float64(i), 0.5},
			},
			"bbox": []float64{100.0 + float64(i), 0.5, 100.0 + float64(i), 0.5},
			"properties": map[string]any{
				"datetime": fmt.Sprintf("2020-01-0%dT00:00:00Z", i),
			},
			"links":  []any{},
			"assets": map[string]any{},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleLanding)
	mux.HandleFunc("/conformance", f.handleConformance)
	mux.HandleFunc("/collections", f.handleCollections)
	mux.HandleFunc("/collections/sentinel", f.handleCollection)
	mux.HandleFunc("/collections/sentinel/items/", f.handleItem)
	mux.HandleFunc("/collections/sentinel/items", f.handleItems)
	mux.HandleFunc("/search", f.handleSearch)
	mux.HandleFunc("/children", f.handleChildren)
	mux.HandleFunc("/api", f.handleOpenAPI)
	mux.HandleFunc("/api.html", f.handleDocs)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) url() string { return f.srv.URL }

func writeJSON(w http.ResponseWriter, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) writeItemCollection(w http.ResponseWriter, items []map[string]any) {
	features := make([]any, 0, len(items))
	for _, item := range items {
		features = append(features, item)
	}
	writeJSON(w, "application/geo+json", map[string]any{
		"type":     "FeatureCollection",
		"features": features,
		"links":    []any{},
	})
}

func (f *fakeAPI) links() []map[string]any {
	links := []map[string]any{
		{"rel": "self", "href": f.srv.URL + "/", "type": "application/json"},
		{"rel": "root", "href": f.srv.URL + "/", "type": "application/json"},
		{"rel": "data", "href": f.srv.URL + "/collections", "type": "application/json"},
		{"rel": "conformance", "href": f.srv.URL + "/conformance", "type": "application/json"},
		{"rel": "children", "href": f.srv.URL + "/children", "type": "application/json"},
		{"rel": "service-desc", "href": f.srv.URL + "/api", "type": "application/vnd.oai.openapi+json;version=3.0"},
		{"rel": "service-doc", "href": f.srv.URL + "/api.html", "type": "text/html"},
	}
	if !f.dropChildLink {
		links = append(links, map[string]any{
			"rel": "child", "href": f.srv.URL + "/collections/sentinel", "type": "application/json",
		})
	}
	if !f.dropSearchLink {
		links = append(links, map[string]any{
			"rel": "search", "href": f.srv.URL + "/search", "type": "application/geo+json",
		})
	}
	return links
}

func (f *fakeAPI) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	landing := map[string]any{
		"type":         "Catalog",
		"stac_version": "1.0.0",
		"id":           "fake",
		"description":  "in-memory test deployment",
		"conformsTo":   f.conformsTo,
		"links":        f.links(),
	}
	if f.omitDescription {
		delete(landing, "description")
	}
	writeJSON(w, "application/json", landing)
}

func (f *fakeAPI) handleConformance(w http.ResponseWriter, r *http.Request) {
	conformsTo := f.conformsTo
	if f.duplicateConformance && len(conformsTo) > 0 {
		conformsTo = append([]string{conformsTo[0]}, conformsTo...)
	}
	writeJSON(w, "application/json", map[string]any{"conformsTo": conformsTo})
}

func (f *fakeAPI) collectionDoc() map[string]any {
	doc := map[string]any{
		"type":         "Collection",
		"stac_version": "1.0.0",
		"id":           "sentinel",
		"description":  "test collection",
		"license":      "proprietary",
		"extent": map[string]any{
			"spatial":  map[string]any{"bbox": []any{[]float64{100, 0, 106, 1}}},
			"temporal": map[string]any{"interval": []any{[]any{"2020-01-01T00:00:00Z", nil}}},
		},
		"links": []any{},
	}
	if f.collectionMutator != nil {
		f.collectionMutator(doc)
	}
	return doc
}

func (f *fakeAPI) handleCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, "application/json", map[string]any{
		"collections": []any{f.collectionDoc()},
		"links":       []any{},
	})
}

func (f *fakeAPI) handleCollection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, "application/json", f.collectionDoc())
}

func (f *fakeAPI) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if f.denyCreate {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var item map[string]any
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.items = append(f.items, item)
		w.WriteHeader(http.StatusCreated)
		return
	}
	f.writeItemCollection(w, f.items)
}

func (f *fakeAPI) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/collections/sentinel/items/")
	idx := -1
	for i, item := range f.items {
		if item["id"] == id {
			idx = i
			break
		}
	}
	switch r.Method {
	case http.MethodGet:
		if f.denyRead || idx < 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, "application/geo+json", f.items[idx])
	case http.MethodDelete:
		if f.denyDelete {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if idx < 0 {
			http.NotFound(w, r)
			return
		}
		f.items = append(f.items[:idx], f.items[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeAPI) handleChildren(w http.ResponseWriter, r *http.Request) {
	children := []any{f.collectionDoc()}
	if f.childrenBadType {
		children = []any{map[string]any{"type": "Feature", "id": "not-a-catalog"}}
	}
	writeJSON(w, "application/json", map[string]any{
		"children": children,
		"links":    []any{},
	})
}

func (f *fakeAPI) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, "application/vnd.oai.openapi+json;version=3.0", map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": "fake", "version": "1.0.0"},
		"paths":   map[string]any{},
	})
}

func (f *fakeAPI) handleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body>docs</body></html>")
}

// searchParams is the merged view of the GET query / POST body.
type searchParams struct {
	limit       string
	bbox        string
	datetime    string
	ids         []string
	collections []string
	token       string
	sortby      string
	fields      string
	filter      string
	intersects  json.RawMessage
}

func (f *fakeAPI) params(r *http.Request) (searchParams, bool) {
	if r.Method == http.MethodPost {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return searchParams{}, false
		}
		p := searchParams{}
		if v, ok := body["limit"]; ok {
			p.limit = fmt.Sprintf("%v", v)
		}
		if v, ok := body["bbox"].([]any); ok {
			parts := make([]string, len(v))
			for i, c := range v {
				parts[i] = fmt.Sprintf("%v", c)
			}
			p.bbox = strings.Join(parts, ",")
		}
		if v, ok := body["datetime"].(string); ok {
			p.datetime = v
		}
		for _, id := range anyStrings(body["ids"]) {
			p.ids = append(p.ids, id)
		}
		for _, c := range anyStrings(body["collections"]) {
			p.collections = append(p.collections, c)
		}
		if v, ok := body["intersects"]; ok {
			raw, _ := json.Marshal(v)
			p.intersects = raw
		}
		if v, ok := body["query"]; ok {
			// Equality query on properties.datetime only; enough for the
			// battery.
			q, _ := json.Marshal(v)
			p.filter = string(q)
		}
		return p, true
	}

	q := r.URL.Query()
	p := searchParams{
		limit:    q.Get("limit"),
		bbox:     q.Get("bbox"),
		datetime: q.Get("datetime"),
		token:    q.Get("token"),
		sortby:   q.Get("sortby"),
		fields:   q.Get("fields"),
		filter:   q.Get("filter"),
	}
	if raw := q.Get("intersects"); raw != "" {
		p.intersects = json.RawMessage(raw)
	}
	if ids := q.Get("ids"); ids != "" {
		p.ids = strings.Split(ids, ",")
	}
	if cols := q.Get("collections"); cols != "" {
		p.collections = strings.Split(cols, ",")
	}
	return p, true
}

func anyStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func validBBox(s string) bool {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return false
	}
	coords := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return false
		}
		coords[i] = v
	}
	if len(coords) == 4 {
		return coords[0] <= coords[2] && coords[1] <= coords[3]
	}
	return coords[0] <= coords[3] && coords[1] <= coords[4]
}

func (f *fakeAPI) validDatetime(s string) bool {
	for _, invalid := range f.scenarios.Datetime.Invalid {
		if s == invalid {
			return false
		}
	}
	return true
}

func (f *fakeAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	if f.failAcceptProbe && r.Header.Get("Accept") == "application/xml" {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			f.t.Fatalf("hijacking the Accept probe connection: %v", err)
		}
		conn.Close()
		return
	}
	if f.searchStatus != 0 {
		w.WriteHeader(f.searchStatus)
		return
	}
	if f.searchBody != "" {
		w.Header().Set("Content-Type", "application/geo+json")
		fmt.Fprint(w, f.searchBody)
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" &&
		!strings.Contains(accept, "geo+json") && !strings.Contains(accept, "json") && !strings.Contains(accept, "*/*") {
		w.WriteHeader(http.StatusNotAcceptable)
		return
	}

	p, ok := f.params(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	limit := 10
	if p.limit != "" && !f.acceptAnyLimit {
		v, err := strconv.Atoi(p.limit)
		if err != nil || v < 1 || v > f.scenarios.Limit.Max {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit = v
	}
	if p.bbox != "" && !f.acceptAnyBBox && !validBBox(p.bbox) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if p.datetime != "" && !f.acceptAnyDatetime && !f.validDatetime(p.datetime) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(p.intersects) > 0 {
		var geom map[string]any
		if err := json.Unmarshal(p.intersects, &geom); err != nil || geom["type"] == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	matched := f.filterItems(p)

	if p.sortby != "" && !f.ignoreSort {
		desc := strings.HasPrefix(p.sortby, "-")
		sort.Slice(matched, func(i, j int) bool {
			a, _ := matched[i]["id"].(string)
			b, _ := matched[j]["id"].(string)
			if desc {
				return a > b
			}
			return a < b
		})
	}

	offset := 0
	if p.token != "" {
		offset, _ = strconv.Atoi(p.token)
	}
	if f.overlapPages && offset > 0 {
		// Later pages slide back one position, repeating the last item of
		// the previous page while still introducing new ones.
		offset--
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := matched[offset:end]

	if p.fields != "" && !f.ignoreFields {
		page = projectFields(page, strings.Split(p.fields, ","))
	}

	links := []any{}
	if end < len(matched) {
		nextToken := end
		if f.paginationLoop {
			nextToken = 0
		}
		links = append(links, map[string]any{
			"rel":    "next",
			"href":   f.srv.URL + "/search?limit=" + strconv.Itoa(limit) + "&token=" + strconv.Itoa(nextToken),
			"type":   "application/geo+json",
			"method": "GET",
		})
	}

	writeJSON(w, "application/geo+json", map[string]any{
		"type":     "FeatureCollection",
		"features": page,
		"links":    links,
	})
}

func (f *fakeAPI) filterItems(p searchParams) []map[string]any {
	var out []map[string]any
	for _, item := range f.items {
		if len(p.ids) > 0 && !f.ignoreIDs && !containsString(p.ids, item["id"].(string)) {
			continue
		}
		if len(p.collections) > 0 && !containsString(p.collections, item["collection"].(string)) {
			continue
		}
		if p.datetime != "" && !strings.Contains(p.datetime, "/") {
			props := item["properties"].(map[string]any)
			if props["datetime"] != p.datetime {
				continue
			}
		}
		if p.filter != "" && !f.ignoreFilter {
			if !f.matchesFilter(item, p.filter) {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

func (f *fakeAPI) matchesFilter(item map[string]any, filter string) bool {
	// cql2-text equality on collection, or the query-extension JSON body.
	if strings.HasPrefix(filter, "collection=") {
		want := strings.Trim(strings.TrimPrefix(filter, "collection="), "'")
		return item["collection"] == want
	}
	var q map[string]map[string]any
	if err := json.Unmarshal([]byte(filter), &q); err == nil {
		if dt, ok := q["datetime"]; ok {
			props := item["properties"].(map[string]any)
			return props["datetime"] == dt["eq"]
		}
	}
	return true
}

func projectFields(items []map[string]any, fields []string) []map[string]any {
	keep := map[string]bool{"type": true, "links": true, "stac_version": true}
	for _, f := range fields {
		keep[strings.TrimSpace(f)] = true
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		projected := map[string]any{}
		for k, v := range item {
			if keep[k] {
				projected[k] = v
			}
		}
		projected["properties"] = map[string]any{}
		projected["geometry"] = item["geometry"]
		out = append(out, projected)
	}
	return out
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// newContext discovers the fake deployment and builds a battery context
// bound to the given class URI.
func newContext(t *testing.T, f *fakeAPI, classURI string) *Context {
	t.Helper()

	client := probe.NewClient(probe.WithRetryPolicy(probe.NoRetryPolicy()))
	disc, err := discovery.New(client).Discover(context.Background(), f.url())
	if err != nil {
		t.Fatalf("discovery against the fake deployment failed: %v", err)
	}

	cctx := &Context{
		Client:    client,
		Discovery: disc,
		Scenarios: f.scenarios,
		Schema:    schema.NewValidator(),
		MaxPages:  10,
		Samples:   cache.New[int, []map[string]any](16),
	}
	return cctx.WithClass(classURI)
}

const (
	coreURI        = "https://api.stacspec.org/v1.0.0/core"
	featuresURI    = "https://api.stacspec.org/v1.0.0/ogcapi-features"
	itemSearchURI  = "https://api.stacspec.org/v1.0.0/item-search"
	fieldsURI      = "https://api.stacspec.org/v1.0.0/item-search#fields"
	sortURI        = "https://api.stacspec.org/v1.0.0/item-search#sort"
	queryURI       = "https://api.stacspec.org/v1.0.0/item-search#query"
	filterURI      = "https://api.stacspec.org/v1.0.0/item-search#filter"
	childrenURI    = "https://api.stacspec.org/v1.0.0/children"
	browseableURI  = "https://api.stacspec.org/v1.0.0/browseable"
	transactionURI = "https://api.stacspec.org/v1.0.0/ogcapi-features/extensions/transaction"
)

func allConformsTo() []string {
	return []string{coreURI, featuresURI, itemSearchURI, fieldsURI, sortURI, queryURI, filterURI, childrenURI, browseableURI, transactionURI}
}

// severityCounts tallies findings by severity for assertions.
func severityCounts(findings []sv.Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		counts[string(f.Severity)]++
	}
	return counts
}

func findRule(findings []sv.Finding, rule string) (sv.Finding, bool) {
	for _, f := range findings {
		if f.RuleID == rule {
			return f, true
		}
	}
	return sv.Finding{}, false
}

func requireNoFailures(t *testing.T, findings []sv.Finding) {
	t.Helper()
	for _, f := range findings {
		if f.Severity == sv.SeverityFail {
			t.Errorf("unexpected failure: %s", f)
		}
	}
}
