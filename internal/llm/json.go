package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedOutput marks model output that could not be normalized into
// the requested shape.
var ErrMalformedOutput = eris.New("llm: malformed model output")

// CleanJSON strips markdown fences and surrounding prose from a model
// answer, returning the outermost JSON object.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// Schema is a compiled JSON Schema used to check model output.
type Schema struct {
	name    string
	schema  *jsonschema.Schema
	shape   any
	lenient bool
}

// CompileSchema compiles a schema document given as a Go value (usually a
// map literal).
func CompileSchema(name string, doc any) (*Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: marshal schema %s", name)
	}

	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, eris.Wrapf(err, "llm: add schema %s", name)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: compile schema %s", name)
	}
	var shape any
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, eris.Wrapf(err, "llm: decode schema %s", name)
	}
	return &Schema{name: name, schema: s, shape: shape}, nil
}

// Lenient returns a copy of s that repairs an answer before validating it.
// Numbers and booleans in string fields become strings, an object given for
// a string list becomes "key: value" entries, and any other value of the
// wrong shape is dropped so that field alone falls back to its default.
func (s *Schema) Lenient() *Schema {
	c := *s
	c.lenient = true
	return &c
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(name string, doc any) *Schema {
	s, err := CompileSchema(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks an already-decoded JSON value.
func (s *Schema) Validate(v any) error {
	if err := s.schema.Validate(v); err != nil {
		return eris.Wrapf(ErrMalformedOutput, "schema %s: %v", s.name, err)
	}
	return nil
}

// DecodeJSON normalizes text, validates it against schema (when non-nil)
// and decodes it into out.
func DecodeJSON(text string, schema *Schema, out any) error {
	cleaned := CleanJSON(text)

	var generic any
	if err := json.Unmarshal([]byte(cleaned), &generic); err != nil {
		return eris.Wrapf(ErrMalformedOutput, "decode: %v", err)
	}
	if _, ok := generic.(map[string]any); !ok {
		return eris.Wrap(ErrMalformedOutput, "decode: not a JSON object")
	}
	raw := []byte(cleaned)
	if schema != nil {
		if schema.lenient {
			generic = coerce(schema.shape, generic)
			var err error
			if raw, err = json.Marshal(generic); err != nil {
				return eris.Wrapf(ErrMalformedOutput, "decode: %v", err)
			}
		}
		if err := schema.Validate(generic); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrapf(ErrMalformedOutput, "decode: %v", err)
	}
	return nil
}

// GenerateJSON runs req and decodes the answer into T. The Response is
// returned even when decoding fails so callers can log what came back.
func GenerateJSON[T any](ctx context.Context, g Generator, req Request, schema *Schema) (T, *Response, error) {
	var out T
	resp, err := g.Generate(ctx, req)
	if err != nil {
		return out, nil, err
	}
	if err := DecodeJSON(resp.Text, schema, &out); err != nil {
		return out, resp, eris.Wrapf(err, "llm: %s", req.Operation)
	}
	return out, resp, nil
}

// coerce bends v toward shape. It returns nil for a value that cannot be
// repaired; object keys holding nil are removed.
func coerce(shape, v any) any {
	sh, ok := shape.(map[string]any)
	if !ok || v == nil {
		return v
	}
	kinds := typesOf(sh)
	switch {
	case kinds["object"]:
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		props, _ := sh["properties"].(map[string]any)
		for k, p := range props {
			val, present := m[k]
			if !present {
				continue
			}
			if c := coerce(p, val); c != nil {
				m[k] = c
			} else {
				delete(m, k)
			}
		}
		return m
	case kinds["array"]:
		var items []any
		switch t := v.(type) {
		case []any:
			items = t
		case map[string]any:
			items = entries(t)
		case string:
			items = []any{t}
		default:
			return nil
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			if c := coerce(sh["items"], it); c != nil {
				out = append(out, c)
			}
		}
		return out
	case kinds["string"]:
		return scalar(v)
	}
	return v
}

func typesOf(shape map[string]any) map[string]bool {
	kinds := make(map[string]bool)
	switch t := shape["type"].(type) {
	case string:
		kinds[t] = true
	case []any:
		for _, k := range t {
			if s, ok := k.(string); ok {
				kinds[s] = true
			}
		}
	}
	return kinds
}

// scalar renders a JSON scalar as a string; composites yield nil.
func scalar(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return nil
	}
}

// entries flattens an object into sorted "key: value" strings.
func entries(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		if s, ok := scalar(m[k]).(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, fmt.Sprintf("%s: %s", k, s))
		}
	}
	return out
}
