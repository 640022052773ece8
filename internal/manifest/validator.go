package manifest

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/chainpkg/chainpkg/internal/schema"
)

//go:embed schema/metadata.schema.json
var schemaBytes []byte

var metadataSchema = schema.New("metadata.schema.json", schemaBytes)

// Limits enforced by the metadata schema.
const (
	MaxTags              = 20
	MaxTagLength         = 32
	MaxDescriptionLength = 500
)

// metadataFields are the keys chainpkg.yaml accepts, in documentation order.
var metadataFields = []string{"description", "kind", "tags", "homepage", "repository", "license"}

// ValidationResult is the outcome of checking a chainpkg.yaml document.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is one problem found in chainpkg.yaml.
type ValidationIssue = schema.Issue

// Validate checks raw chainpkg.yaml bytes. Malformed YAML and schema
// compilation failures are errors; everything else is reported as issues
// whose messages name the offending field.
func Validate(data []byte) (*ValidationResult, error) {
	doc, err := schema.FromYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	issues, err := metadataSchema.Check(doc)
	if err != nil {
		return nil, fmt.Errorf("checking metadata: %w", err)
	}
	for i := range issues {
		issues[i].Message = describe(doc, issues[i])
	}
	return &ValidationResult{Valid: len(issues) == 0, Issues: issues}, nil
}

// ValidateFile reads and validates a chainpkg.yaml file.
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return Validate(data)
}

// describe rewrites a schema message in terms of the chainpkg.yaml field.
// Failures without a dedicated message keep the schema's wording.
func describe(doc any, is ValidationIssue) string {
	field, rest, _ := strings.Cut(strings.TrimPrefix(is.Path, "/"), "/")
	switch field + " " + is.Keyword {
	case " additionalProperties":
		return fmt.Sprintf("unknown field %s; chainpkg.yaml accepts %s",
			strings.Join(unknownFields(doc), ", "), strings.Join(metadataFields, ", "))
	case "kind pattern":
		return fmt.Sprintf("kind %q must start with a letter and use only letters, digits and hyphens (for example library, token or defi)",
			lookup(doc, field, ""))
	case "tags pattern":
		return fmt.Sprintf("tag %q must be lowercase letters, digits and hyphens, at most %d characters, not starting with a hyphen",
			lookup(doc, field, rest), MaxTagLength)
	case "tags maxItems":
		return fmt.Sprintf("at most %d tags are allowed", MaxTags)
	case "tags uniqueItems":
		return "tags must not repeat"
	case "homepage pattern":
		return fmt.Sprintf("homepage %q must be an http:// or https:// URL", lookup(doc, field, ""))
	case "repository pattern":
		return fmt.Sprintf("repository %q must be an http(s), git or ssh URL", lookup(doc, field, ""))
	case "description maxLength":
		return fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength)
	case "license minLength":
		return "license must not be empty"
	}
	if field != "" && is.Keyword == "type" {
		return field + ": " + is.Message
	}
	return is.Message
}

func unknownFields(doc any) []string {
	m, _ := doc.(map[string]any)
	var out []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(metadataFields, k) {
			out = append(out, strconv.Quote(k))
		}
	}
	return out
}

// lookup returns doc[field], or doc[field][index] when index is set, as text.
func lookup(doc any, field, index string) string {
	m, _ := doc.(map[string]any)
	v := m[field]
	if index != "" {
		list, _ := v.([]any)
		i, err := strconv.Atoi(index)
		if err != nil || i < 0 || i >= len(list) {
			return ""
		}
		v = list[i]
	}
	return fmt.Sprint(v)
}
