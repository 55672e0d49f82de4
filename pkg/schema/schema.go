// Package schema bridges Go record types and the JSON-schema strings that
// structured-output prompts embed. It also provides the strict decoding used
// to validate model responses against those records.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/packhound/packhound/pkg/domain"
)

// For returns the compact JSON-schema string for the given record value.
// The schema is inlined (no $ref indirection) because it is pasted verbatim
// into a formatter prompt for a small model to follow.
func For(v any) (string, error) {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}

// Decode strictly unmarshals data into out. Unknown fields and malformed
// JSON are reported as domain.ErrSchemaMismatch so the caller's retry loop
// can classify the failure as structural rather than transport-level.
func Decode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSchemaMismatch, err)
	}
	return nil
}

// ExtractObject trims a model response down to the JSON object it contains.
// Formatter models frequently wrap their output in markdown fences or add a
// short preamble despite instructions not to.
func ExtractObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
