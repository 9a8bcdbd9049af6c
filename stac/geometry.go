package stac

import "encoding/json"

// GeoJSON geometry fixtures exercised by the intersects scenarios. One
// fixture per geometry type the search specification requires support for.

// Geometry is a named GeoJSON geometry fixture.
type Geometry struct {
	Name string
	JSON json.RawMessage
}

// IntersectsFixtures returns the geometry fixtures for intersects probing,
// in a stable order.
func IntersectsFixtures() []Geometry {
	return []Geometry{
		{"point", json.RawMessage(`{"type":"Point","coordinates":[102.0,0.5]}`)},
		{"linestring", json.RawMessage(`{"type":"LineString","coordinates":[[102.0,0.0],[103.0,1.0],[104.0,0.0],[105.0,1.0]]}`)},
		{"polygon", json.RawMessage(`{"type":"Polygon","coordinates":[[[100.0,0.0],[101.0,0.0],[101.0,1.0],[100.0,1.0],[100.0,0.0]]]}`)},
		{"polygon-with-hole", json.RawMessage(`{"type":"Polygon","coordinates":[[[100.0,0.0],[101.0,0.0],[101.0,1.0],[100.0,1.0],[100.0,0.0]],[[100.8,0.8],[100.8,0.2],[100.2,0.2],[100.2,0.8],[100.8,0.8]]]}`)},
		{"multipoint", json.RawMessage(`{"type":"MultiPoint","coordinates":[[100.0,0.0],[101.0,1.0]]}`)},
		{"multilinestring", json.RawMessage(`{"type":"MultiLineString","coordinates":[[[100.0,0.0],[101.0,1.0]],[[102.0,2.0],[103.0,3.0]]]}`)},
		{"multipolygon", json.RawMessage(`{"type":"MultiPolygon","coordinates":[[[[102.0,2.0],[103.0,2.0],[103.0,3.0],[102.0,3.0],[102.0,2.0]]],[[[100.0,0.0],[101.0,0.0],[101.0,1.0],[100.0,1.0],[100.0,0.0]]]]}`)},
		{"geometry-collection", json.RawMessage(`{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[100.0,0.0]},{"type":"LineString","coordinates":[[101.0,0.0],[102.0,1.0]]}]}`)},
	}
}

// BBoxOverlaps reports whether a GeoJSON bbox ([minx, miny, maxx, maxy], or
// the 6-element 3D form) overlaps the query bbox. Used by the bbox
// parameter-semantics rule.
func BBoxOverlaps(query, item []float64) bool {
	qx1, qy1, qx2, qy2, ok := bbox2D(query)
	if !ok {
		return false
	}
	ix1, iy1, ix2, iy2, ok := bbox2D(item)
	if !ok {
		return false
	}
	return qx1 <= ix2 && ix1 <= qx2 && qy1 <= iy2 && iy1 <= qy2
}

func bbox2D(b []float64) (x1, y1, x2, y2 float64, ok bool) {
	switch len(b) {
	case 4:
		return b[0], b[1], b[2], b[3], true
	case 6:
		return b[0], b[1], b[3], b[4], true
	default:
		return 0, 0, 0, 0, false
	}
}
