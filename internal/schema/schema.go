// Package schema compiles embedded JSON Schemas and reports validation
// failures as a flat list of issues addressed by JSON pointer.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Issue is one failed schema keyword.
type Issue struct {
	Path    string // instance location, e.g. "/tags/2"; empty for the document root
	Message string
	Keyword string // last element of the failing keyword path
}

// String renders the issue as "path: message".
func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Schema is an embedded schema document compiled on first use.
type Schema struct {
	compile func() (*jsonschema.Schema, error)
}

// New returns a Schema for doc, registered under name.
func New(name string, doc []byte) *Schema {
	return &Schema{compile: sync.OnceValues(func() (*jsonschema.Schema, error) {
		parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
		if err != nil {
			return nil, fmt.Errorf("unmarshaling schema %s: %w", name, err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, parsed); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", name, err)
		}
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		return s, nil
	})}
}

// Compile compiles the schema, or returns the result of the first call.
func (s *Schema) Compile() (*jsonschema.Schema, error) { return s.compile() }

// Check validates v, which must encode to JSON. A nil slice means v is
// valid; the error is reserved for encoding or compilation failures.
func (s *Schema) Check(v any) ([]Issue, error) {
	compiled, err := s.compile()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("preparing document: %w", err)
	}

	err = compiled.Validate(inst)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validating document: %w", err)
	}
	var issues []Issue
	collect(ve, &issues)
	if len(issues) == 0 {
		return []Issue{{Message: ve.Error()}}, nil
	}
	return dedupe(issues), nil
}

// containers wrap other failures and say nothing on their own.
var containers = map[string]bool{"": true, "$ref": true, "allOf": true, "oneOf": true}

func collect(ve *jsonschema.ValidationError, issues *[]Issue) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collect(cause, issues)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}
	var keyword string
	if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
		keyword = kw[len(kw)-1]
	}
	if containers[keyword] {
		return
	}
	var path string
	if len(ve.InstanceLocation) > 0 {
		path = "/" + strings.Join(ve.InstanceLocation, "/")
	}
	*issues = append(*issues, Issue{
		Path:    path,
		Message: ve.ErrorKind.LocalizedString(printer),
		Keyword: keyword,
	})
}

func dedupe(issues []Issue) []Issue {
	seen := make(map[Issue]bool, len(issues))
	out := issues[:0]
	for _, is := range issues {
		if !seen[is] {
			seen[is] = true
			out = append(out, is)
		}
	}
	return out
}

// FromYAML decodes a YAML document into values json.Marshal accepts.
// Non-string map keys become strings.
func FromYAML(data []byte) (any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return normalize(raw), nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = normalize(e)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range val {
			val[i] = normalize(e)
		}
		return val
	default:
		return val
	}
}
