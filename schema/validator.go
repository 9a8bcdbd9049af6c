// Package schema validates STAC documents against the embedded specification
// schemas. A bundle of compiled schemas exists per supported STAC version;
// documents select their bundle by declared type and stac_version.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/stac"
)

//go:embed schemas/*/*.json
var schemaFS embed.FS

// schema ids match the published STAC schema URLs so $ref resolution stays
// offline against the embedded copies.
const schemaIDBase = "https://schemas.stacspec.org/v"

var schemaFiles = map[stac.DocumentType]string{
	stac.TypeCatalog:        "catalog.json",
	stac.TypeCollection:     "collection.json",
	stac.TypeItem:           "item.json",
	stac.TypeItemCollection: "itemcollection.json",
}

var schemaIDs = map[stac.DocumentType]string{
	stac.TypeCatalog:        "catalog-spec/json-schema/catalog.json",
	stac.TypeCollection:     "collection-spec/json-schema/collection.json",
	stac.TypeItem:           "item-spec/json-schema/item.json",
	stac.TypeItemCollection: "item-spec/json-schema/itemcollection.json",
}

// Bundle holds the compiled schemas for one STAC version.
type Bundle struct {
	version string
	schemas map[stac.DocumentType]*jsonschema.Schema
}

// Validator selects and applies schema bundles.
type Validator struct {
	mu      sync.Mutex
	bundles map[string]*Bundle
}

// NewValidator creates a Validator. Bundles compile lazily on first use per
// version.
func NewValidator() *Validator {
	return &Validator{bundles: make(map[string]*Bundle)}
}

// bundle returns the compiled bundle for a version, compiling it on first
// use. Returns UnsupportedVersion when no embedded schemas exist for it.
func (v *Validator) bundle(version string) (*Bundle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if b, ok := v.bundles[version]; ok {
		return b, nil
	}

	dir := "schemas/" + version
	if _, err := schemaFS.ReadDir(dir); err != nil {
		return nil, &sv.UnsupportedVersion{Version: version}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	for docType, file := range schemaFiles {
		data, err := schemaFS.ReadFile(dir + "/" + file)
		if err != nil {
			return nil, fmt.Errorf("reading embedded schema %s: %w", file, err)
		}
		id := schemaIDBase + version + "/" + schemaIDs[docType]
		if err := compiler.AddResource(id, strings.NewReader(string(data))); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", id, err)
		}
	}

	b := &Bundle{version: version, schemas: make(map[stac.DocumentType]*jsonschema.Schema, len(schemaFiles))}
	for docType := range schemaFiles {
		id := schemaIDBase + version + "/" + schemaIDs[docType]
		compiled, err := compiler.Compile(id)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", id, err)
		}
		b.schemas[docType] = compiled
	}

	v.bundles[version] = b
	return b, nil
}

// Validate checks a document against the schema for its declared type and
// version. A nil error means the document is valid. An *UnsupportedVersion
// error degrades the one check that hit it; a *SchemaValidationError carries
// the first failing path and message.
func (v *Validator) Validate(doc *stac.Document) error {
	version := doc.STACVersion
	if version == "" {
		version = string(sv.V1_0_0)
	}

	b, err := v.bundle(version)
	if err != nil {
		return err
	}

	compiled, ok := b.schemas[doc.Type]
	if !ok {
		return &sv.SchemaValidationError{
			DocumentType: string(doc.Type),
			Path:         "type",
			Message:      fmt.Sprintf("no schema for document type %q", doc.Type),
		}
	}

	if err := compiled.Validate(normalize(doc.Raw)); err != nil {
		var ve *jsonschema.ValidationError
		if vErr, ok := err.(*jsonschema.ValidationError); ok {
			ve = leafCause(vErr)
			return &sv.SchemaValidationError{
				DocumentType: string(doc.Type),
				Path:         ve.InstanceLocation,
				Message:      ve.Message,
			}
		}
		return &sv.SchemaValidationError{
			DocumentType: string(doc.Type),
			Path:         "/",
			Message:      err.Error(),
		}
	}
	return nil
}

// ValidateBytes parses and validates raw document bytes.
func (v *Validator) ValidateBytes(data []byte) error {
	doc, err := stac.ParseDocument(data)
	if err != nil {
		return &sv.SchemaValidationError{
			DocumentType: "document",
			Path:         "/",
			Message:      err.Error(),
		}
	}
	return v.Validate(doc)
}

// leafCause walks to the deepest cause for a precise error location.
func leafCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// normalize round-trips the map through JSON so numeric types decode the way
// the schema library expects.
func normalize(raw map[string]any) any {
	data, err := json.Marshal(raw)
	if err != nil {
		return raw
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return raw
	}
	return out
}
