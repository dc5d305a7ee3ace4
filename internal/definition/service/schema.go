package service

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
)

// compileSchema parses and resolves a stored JSON Schema document.
// The $schema keyword is ignored so that draft-07 style documents validate under 2020-12 rules.
func compileSchema(raw []byte) (*jsonschema.Resolved, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s.Schema = ""
	return s.Resolve(nil)
}

// conforms reports whether payload satisfies schema. A malformed schema or payload does not conform.
// An absent payload is validated as JSON null.
func conforms(schema, payload jsonblob.Blob) bool {
	if schema.IsInvalid() || payload.IsInvalid() {
		return false
	}
	rs, err := compileSchema(schema.Bytes())
	if err != nil {
		return false
	}
	var instance any
	if payload.IsPresent() {
		if err := payload.Decode(&instance); err != nil {
			return false
		}
	}
	return rs.Validate(instance) == nil
}
