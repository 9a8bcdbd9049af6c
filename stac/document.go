package stac

import (
	"encoding/json"
	"fmt"
)

// DocumentType is the closed set of STAC document variants.
type DocumentType string

// Document variants, dispatched on the declared "type" field.
const (
	TypeCatalog        DocumentType = "Catalog"
	TypeCollection     DocumentType = "Collection"
	TypeItem           DocumentType = "Feature"
	TypeItemCollection DocumentType = "FeatureCollection"
)

// IsValid reports whether the type is one of the four document variants.
func (t DocumentType) IsValid() bool {
	switch t {
	case TypeCatalog, TypeCollection, TypeItem, TypeItemCollection:
		return true
	default:
		return false
	}
}

// Document is a parsed STAC document tagged with its declared type and
// version, retaining the raw map for schema validation.
type Document struct {
	Type        DocumentType
	STACVersion string
	Raw         map[string]any
}

// ParseDocument decodes a STAC document and dispatches on its declared type.
// An unrecognized or missing type is an error, never undefined behavior.
func ParseDocument(data []byte) (*Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return DocumentFromMap(raw)
}

// DocumentFromMap dispatches an already-decoded document.
func DocumentFromMap(raw map[string]any) (*Document, error) {
	typ, _ := raw["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("document has no 'type' field")
	}

	dt := DocumentType(typ)
	if !dt.IsValid() {
		return nil, fmt.Errorf("unrecognized document type %q", typ)
	}

	version, _ := raw["stac_version"].(string)
	if version == "" && dt == TypeItemCollection {
		// ItemCollections commonly omit stac_version; inherit from the
		// first feature when present.
		if features, ok := raw["features"].([]any); ok && len(features) > 0 {
			if first, ok := features[0].(map[string]any); ok {
				version, _ = first["stac_version"].(string)
			}
		}
	}

	return &Document{Type: dt, STACVersion: version, Raw: raw}, nil
}

// ID returns the document's id field, empty when absent.
func (d *Document) ID() string {
	id, _ := d.Raw["id"].(string)
	return id
}

// ItemCollection accessors.

// Features returns the feature maps of an ItemCollection document.
func (d *Document) Features() []map[string]any {
	raw, ok := d.Raw["features"].([]any)
	if !ok {
		return nil
	}
	features := make([]map[string]any, 0, len(raw))
	for _, f := range raw {
		if m, ok := f.(map[string]any); ok {
			features = append(features, m)
		}
	}
	return features
}

// FeatureIDs returns the ids of an ItemCollection's features, in order.
func (d *Document) FeatureIDs() []string {
	features := d.Features()
	ids := make([]string, 0, len(features))
	for _, f := range features {
		if id, ok := f["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Links returns the document's links.
func (d *Document) Links() []Link {
	raw, ok := d.Raw["links"].([]any)
	if !ok {
		return nil
	}
	links := make([]Link, 0, len(raw))
	for _, l := range raw {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		link := Link{}
		link.Rel, _ = m["rel"].(string)
		link.Href, _ = m["href"].(string)
		link.Type, _ = m["type"].(string)
		link.Method, _ = m["method"].(string)
		if body, ok := m["body"].(map[string]any); ok {
			link.Body = body
		}
		links = append(links, link)
	}
	return links
}

// NextLink returns the pagination link, or nil on the final page.
func (d *Document) NextLink() *Link {
	for _, l := range d.Links() {
		if l.Rel == RelNext {
			link := l
			return &link
		}
	}
	return nil
}
