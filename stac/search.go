package stac

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// SearchRequest is a structured item-search query. The zero value searches
// with no parameters. Raw* fields carry deliberately malformed values for
// negative scenarios; when set they take precedence over the structured
// field in the GET encoding.
type SearchRequest struct {
	BBox        []float64
	Datetime    string
	Intersects  json.RawMessage
	Collections []string
	IDs         []string
	Limit       *int
	Token       string

	// RawBBox overrides BBox with an unparsed string, e.g. a bracketed
	// array a deployment must reject with a 400.
	RawBBox string

	// RawLimit overrides Limit with an unparsed string.
	RawLimit string
}

// Query encodes the request as GET query parameters.
func (s SearchRequest) Query() url.Values {
	q := url.Values{}

	switch {
	case s.RawBBox != "":
		q.Set("bbox", s.RawBBox)
	case len(s.BBox) > 0:
		coords := make([]string, len(s.BBox))
		for i, c := range s.BBox {
			coords[i] = strconv.FormatFloat(c, 'f', -1, 64)
		}
		q.Set("bbox", strings.Join(coords, ","))
	}

	if s.Datetime != "" {
		q.Set("datetime", s.Datetime)
	}
	if len(s.Intersects) > 0 {
		q.Set("intersects", string(s.Intersects))
	}
	if len(s.Collections) > 0 {
		q.Set("collections", strings.Join(s.Collections, ","))
	}
	if len(s.IDs) > 0 {
		q.Set("ids", strings.Join(s.IDs, ","))
	}

	switch {
	case s.RawLimit != "":
		q.Set("limit", s.RawLimit)
	case s.Limit != nil:
		q.Set("limit", strconv.Itoa(*s.Limit))
	}

	if s.Token != "" {
		q.Set("token", s.Token)
	}
	return q
}

// Body encodes the request as a POST JSON body. Raw overrides do not apply;
// POST negative scenarios construct bodies directly.
func (s SearchRequest) Body() ([]byte, error) {
	body := make(map[string]any)
	if len(s.BBox) > 0 {
		body["bbox"] = s.BBox
	}
	if s.Datetime != "" {
		body["datetime"] = s.Datetime
	}
	if len(s.Intersects) > 0 {
		body["intersects"] = s.Intersects
	}
	if len(s.Collections) > 0 {
		body["collections"] = s.Collections
	}
	if len(s.IDs) > 0 {
		body["ids"] = s.IDs
	}
	if s.Limit != nil {
		body["limit"] = *s.Limit
	}
	if s.Token != "" {
		body["token"] = s.Token
	}
	return json.Marshal(body)
}

// WithLimit returns a copy of the request with the limit set.
func (s SearchRequest) WithLimit(limit int) SearchRequest {
	s.Limit = &limit
	return s
}
